package tags

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// patternList is one entry of a rule file: a tag name and its patterns.
type patternList struct {
	Name     string
	Patterns []string
}

// LoadRuleSet reads the include file and, when excludePath is non-empty,
// the exclude file, and joins them by tag name in include-file order. Every
// exclude entry must name a tag of the include file.
func LoadRuleSet(includePath, excludePath string) (*RuleSet, error) {
	include, err := readPatternFile(includePath)
	if err != nil {
		return nil, fmt.Errorf("load include rules: %w", err)
	}
	var exclude []patternList
	if excludePath != "" {
		exclude, err = readPatternFile(excludePath)
		if err != nil {
			return nil, fmt.Errorf("load exclude rules: %w", err)
		}
	}
	return buildRuleSet(include, exclude)
}

func buildRuleSet(include, exclude []patternList) (*RuleSet, error) {
	rules := make([]Rule, len(include))
	byName := make(map[string]int, len(include))
	for i, pl := range include {
		rules[i] = Rule{Name: pl.Name, Include: pl.Patterns}
		byName[pl.Name] = i
	}
	for _, pl := range exclude {
		i, ok := byName[pl.Name]
		if !ok {
			return nil, fmt.Errorf("exclude rules name unknown tag %q", pl.Name)
		}
		rules[i].Exclude = pl.Patterns
	}
	return NewRuleSet(rules...)
}

func readPatternFile(path string) ([]patternList, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, err
	}

	var lists []patternList
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", "":
		lists, err = decodeJSON(data)
	case ".yaml", ".yml":
		lists, err = decodeYAML(data)
	case ".toml":
		lists, err = decodeTOML(data)
	default:
		return nil, fmt.Errorf("%s: unsupported rule file format %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	seen := make(map[string]bool, len(lists))
	for _, pl := range lists {
		if seen[pl.Name] {
			return nil, fmt.Errorf("%s: duplicate tag %q", path, pl.Name)
		}
		seen[pl.Name] = true
	}
	return lists, nil
}

// decodeJSON reads an object of tag -> [patterns] keeping key order, which
// map decoding would lose.
func decodeJSON(data []byte) ([]patternList, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("parse JSON: rule file must be an object of tag name to pattern list")
	}

	var lists []patternList
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse JSON: %w", err)
		}
		name, _ := keyTok.(string)
		var patterns []string
		if err := dec.Decode(&patterns); err != nil {
			return nil, fmt.Errorf("parse JSON: tag %q: %w", name, err)
		}
		lists = append(lists, patternList{Name: name, Patterns: patterns})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parse JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("parse JSON: trailing data after rule object")
	}
	return lists, nil
}

func decodeYAML(data []byte) ([]patternList, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("parse YAML: empty document")
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, errors.New("parse YAML: rule file must be a mapping of tag name to pattern list")
	}

	var lists []patternList
	for i := 0; i+1 < len(root.Content); i += 2 {
		name := root.Content[i].Value
		var patterns []string
		if err := root.Content[i+1].Decode(&patterns); err != nil {
			return nil, fmt.Errorf("parse YAML: tag %q: %w", name, err)
		}
		lists = append(lists, patternList{Name: name, Patterns: patterns})
	}
	return lists, nil
}

func decodeTOML(data []byte) ([]patternList, error) {
	var raw map[string][]string
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}

	var lists []patternList
	for _, key := range md.Keys() {
		if len(key) != 1 {
			continue
		}
		name := key[0]
		lists = append(lists, patternList{Name: name, Patterns: raw[name]})
	}
	return lists, nil
}
