// Package config loads run settings from flags, ISSUETAG_* environment
// variables, an optional config.yaml and defaults, in that precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/steveyegge/issuetag/internal/debug"
)

// DirName is the per-project configuration directory.
const DirName = ".issuetag"

const (
	defaultIncludeFile = "include.json"
	defaultExcludeFile = "exclude.json"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	// Precedence: project .issuetag/config.yaml > ~/.config/issuetag/config.yaml
	if path := findConfigFile(); path != "" {
		v.SetConfigFile(path)
	}

	// ISSUETAG_JIRA_URL maps to jira.url, ISSUETAG_STORE_BACKEND to store.backend.
	v.SetEnvPrefix("ISSUETAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("jira.url", "")
	v.SetDefault("jira.query", "")
	v.SetDefault("jira.username", "")
	v.SetDefault("jira.api_token", "")
	v.SetDefault("jira.api_version", 2)
	v.SetDefault("jira.timeout", "30s")

	v.SetDefault("fetch.page_size", 50)
	v.SetDefault("fetch.concurrency", 1)

	v.SetDefault("tags.include", defaultIncludeFile)
	v.SetDefault("tags.exclude", defaultExcludeFile)

	v.SetDefault("store.backend", "dolt-server")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.host", "127.0.0.1")
	v.SetDefault("store.port", 3307)
	v.SetDefault("store.user", "root")
	v.SetDefault("store.password", "")
	v.SetDefault("store.database", "issuetag")
	v.SetDefault("store.tls", false)
	v.SetDefault("store.path", filepath.Join(DirName, "db"))
	v.SetDefault("store.batch_transaction", false)
	v.SetDefault("store.connect_timeout", "30s")

	// Credentials are commonly exported under their Jira names.
	_ = v.BindEnv("jira.username", "ISSUETAG_JIRA_USERNAME", "JIRA_USERNAME")
	_ = v.BindEnv("jira.api_token", "ISSUETAG_JIRA_API_TOKEN", "JIRA_API_TOKEN")

	if v.ConfigFileUsed() != "" {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
		debug.Logf("Debug: loaded config from %s\n", v.ConfigFileUsed())
	} else {
		debug.Logf("Debug: no config.yaml found; using defaults and environment variables\n")
	}

	return nil
}

// findConfigFile walks up from the working directory looking for
// .issuetag/config.yaml, then falls back to the user config directory.
func findConfigFile() string {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; dir = filepath.Dir(dir) {
			path := filepath.Join(dir, DirName, "config.yaml")
			if _, err := os.Stat(path); err == nil {
				return path
			}
			if dir == filepath.Dir(dir) {
				break
			}
		}
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		path := filepath.Join(configDir, "issuetag", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// BindFlag makes a command-line flag take precedence over key.
func BindFlag(key string, flag *pflag.Flag) error {
	if v == nil {
		return errors.New("config not initialized")
	}
	if flag == nil {
		return fmt.Errorf("no flag to bind for %s", key)
	}
	return v.BindPFlag(key, flag)
}

// Set overrides a value for the rest of the process.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// ResetForTesting clears the singleton so tests can re-run Initialize.
func ResetForTesting() {
	v = nil
}

// JiraSettings configures the query service client.
type JiraSettings struct {
	URL        string        `json:"url"`
	Query      string        `json:"query"`
	Username   string        `json:"username,omitempty"`
	APIToken   string        `json:"-"`
	APIVersion int           `json:"api_version"`
	Timeout    time.Duration `json:"timeout"`
}

// FetchSettings configures paging.
type FetchSettings struct {
	PageSize    int `json:"page_size"`
	Concurrency int `json:"concurrency"`
}

// TagSettings locates the rule files. An empty ExcludePath means no
// exclusions.
type TagSettings struct {
	IncludePath string `json:"include"`
	ExcludePath string `json:"exclude,omitempty"`
}

// StoreSettings selects and configures the relational backend.
type StoreSettings struct {
	Backend          string        `json:"backend"`
	DSN              string        `json:"-"`
	Host             string        `json:"host,omitempty"`
	Port             int           `json:"port,omitempty"`
	User             string        `json:"user,omitempty"`
	Password         string        `json:"-"`
	Database         string        `json:"database,omitempty"`
	TLS              bool          `json:"tls,omitempty"`
	Path             string        `json:"path,omitempty"`
	BatchTransaction bool          `json:"batch_transaction"`
	ConnectTimeout   time.Duration `json:"connect_timeout"`
}

// Settings is the typed view of the whole configuration.
type Settings struct {
	Jira  JiraSettings  `json:"jira"`
	Fetch FetchSettings `json:"fetch"`
	Tags  TagSettings   `json:"tags"`
	Store StoreSettings `json:"store"`
}

// Load returns the current settings. It does not require the Jira keys;
// commands that contact Jira call Settings.RequireJira.
func Load() (*Settings, error) {
	if v == nil {
		return nil, errors.New("config not initialized")
	}

	jiraTimeout, err := duration("jira.timeout")
	if err != nil {
		return nil, err
	}
	connectTimeout, err := duration("store.connect_timeout")
	if err != nil {
		return nil, err
	}

	s := &Settings{
		Jira: JiraSettings{
			URL:        v.GetString("jira.url"),
			Query:      v.GetString("jira.query"),
			Username:   v.GetString("jira.username"),
			APIToken:   v.GetString("jira.api_token"),
			APIVersion: v.GetInt("jira.api_version"),
			Timeout:    jiraTimeout,
		},
		Fetch: FetchSettings{
			PageSize:    v.GetInt("fetch.page_size"),
			Concurrency: v.GetInt("fetch.concurrency"),
		},
		Tags: TagSettings{
			IncludePath: v.GetString("tags.include"),
			ExcludePath: excludePath(v.GetString("tags.exclude")),
		},
		Store: StoreSettings{
			Backend:          strings.ToLower(v.GetString("store.backend")),
			DSN:              v.GetString("store.dsn"),
			Host:             v.GetString("store.host"),
			Port:             v.GetInt("store.port"),
			User:             v.GetString("store.user"),
			Password:         v.GetString("store.password"),
			Database:         v.GetString("store.database"),
			TLS:              v.GetBool("store.tls"),
			Path:             v.GetString("store.path"),
			BatchTransaction: v.GetBool("store.batch_transaction"),
			ConnectTimeout:   connectTimeout,
		},
	}

	if s.Jira.APIVersion != 2 && s.Jira.APIVersion != 3 {
		return nil, fmt.Errorf("jira.api_version must be 2 or 3, got %d", s.Jira.APIVersion)
	}
	if s.Fetch.PageSize < 1 {
		return nil, fmt.Errorf("fetch.page_size must be at least 1, got %d", s.Fetch.PageSize)
	}
	if s.Fetch.Concurrency < 1 {
		s.Fetch.Concurrency = 1
	}
	return s, nil
}

// RequireJira reports missing query service settings.
func (s *Settings) RequireJira() error {
	var missing []string
	if s.Jira.URL == "" {
		missing = append(missing, "jira.url")
	}
	if s.Jira.Query == "" {
		missing = append(missing, "jira.query")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s (set in %s/config.yaml or ISSUETAG_* environment)",
			strings.Join(missing, ", "), DirName)
	}
	return nil
}

func duration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// excludePath drops the default exclude file when it does not exist. Any
// other path is kept so a typo fails the rule load.
func excludePath(path string) string {
	if path == defaultExcludeFile {
		if _, err := os.Stat(path); err != nil {
			return ""
		}
	}
	return path
}
