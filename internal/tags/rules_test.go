package tags

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestNewRuleSetValidation(t *testing.T) {
	tests := []struct {
		name    string
		rules   []Rule
		wantErr string
	}{
		{"valid", []Rule{{Name: "isTest", Include: []string{"test"}}}, ""},
		{"empty set", nil, ""},
		{"bad identifier", []Rule{{Name: "is-test"}}, "invalid tag name"},
		{"leading digit", []Rule{{Name: "1tag"}}, "invalid tag name"},
		{"fixed column", []Rule{{Name: "Summary"}}, "collides with a fixed issue column"},
		{"duplicate", []Rule{{Name: "a"}, {Name: "a"}}, "duplicate tag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRuleSet(tt.rules...)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	_, err := NewRuleSet(Rule{Name: "bad name"})
	if !errors.Is(err, ErrInvalidTagName) {
		t.Errorf("expected ErrInvalidTagName, got %v", err)
	}
}

func TestRuleSetAccessors(t *testing.T) {
	rs, err := NewRuleSet(
		Rule{Name: "zeta", Include: []string{"z"}},
		Rule{Name: "alpha", Include: []string{"a"}, Exclude: []string{"b"}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if rs.Len() != 2 {
		t.Errorf("Len() = %d", rs.Len())
	}
	if got := rs.Names(); !reflect.DeepEqual(got, []string{"zeta", "alpha"}) {
		t.Errorf("Names() = %v, want insertion order", got)
	}
	r, ok := rs.Rule("alpha")
	if !ok || !reflect.DeepEqual(r.Exclude, []string{"b"}) {
		t.Errorf("Rule(alpha) = %+v, %v", r, ok)
	}
	if _, ok := rs.Rule("missing"); ok {
		t.Error("Rule(missing) should not be found")
	}

	// Rules returns a copy.
	rules := rs.Rules()
	rules[0].Name = "changed"
	if rs.Names()[0] != "zeta" {
		t.Error("mutating Rules() result changed the set")
	}

	var nilSet *RuleSet
	if nilSet.Len() != 0 || nilSet.Names() != nil {
		t.Error("nil rule set should be empty")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRuleSetFormats(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		include string
		exclude string
	}{
		{
			"json",
			writeFile(t, dir, "include.json", `{"isTest": ["test", "junit"], "isBuild": ["maven", "pom.xml"], "isDocs": []}`),
			writeFile(t, dir, "exclude.json", `{"isBuild": ["snapshot"]}`),
		},
		{
			"yaml",
			writeFile(t, dir, "include.yaml", "isTest:\n  - test\n  - junit\nisBuild: [maven, pom.xml]\nisDocs: []\n"),
			writeFile(t, dir, "exclude.yml", "isBuild:\n  - snapshot\n"),
		},
		{
			"toml",
			writeFile(t, dir, "include.toml", "isTest = [\"test\", \"junit\"]\nisBuild = [\"maven\", \"pom.xml\"]\nisDocs = []\n"),
			writeFile(t, dir, "exclude.toml", "isBuild = [\"snapshot\"]\n"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rs, err := LoadRuleSet(tt.include, tt.exclude)
			if err != nil {
				t.Fatalf("LoadRuleSet: %v", err)
			}
			if got := rs.Names(); !reflect.DeepEqual(got, []string{"isTest", "isBuild", "isDocs"}) {
				t.Errorf("Names() = %v", got)
			}
			build, _ := rs.Rule("isBuild")
			if !reflect.DeepEqual(build.Include, []string{"maven", "pom.xml"}) {
				t.Errorf("isBuild include = %v", build.Include)
			}
			if !reflect.DeepEqual(build.Exclude, []string{"snapshot"}) {
				t.Errorf("isBuild exclude = %v", build.Exclude)
			}
			test, _ := rs.Rule("isTest")
			if len(test.Exclude) != 0 {
				t.Errorf("isTest should have no excludes, got %v", test.Exclude)
			}
			docs, _ := rs.Rule("isDocs")
			if len(docs.Include) != 0 {
				t.Errorf("isDocs should have no includes, got %v", docs.Include)
			}
		})
	}
}

func TestLoadRuleSetWithoutExclude(t *testing.T) {
	include := writeFile(t, t.TempDir(), "include.json", `{"isTest": ["test"]}`)
	rs, err := LoadRuleSet(include, "")
	if err != nil {
		t.Fatalf("LoadRuleSet: %v", err)
	}
	if rs.Len() != 1 {
		t.Errorf("Len() = %d", rs.Len())
	}
}

func TestLoadRuleSetErrors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.json", `{"isTest": ["test"]}`)

	tests := []struct {
		name    string
		include string
		exclude string
		wantErr string
	}{
		{"missing include", filepath.Join(dir, "nope.json"), "", "load include rules"},
		{"missing exclude", good, filepath.Join(dir, "nope.json"), "load exclude rules"},
		{"malformed json", writeFile(t, dir, "bad.json", `{"isTest": ["test"`), "", "parse JSON"},
		{"not an object", writeFile(t, dir, "array.json", `["test"]`), "", "must be an object"},
		{"patterns not strings", writeFile(t, dir, "nums.json", `{"isTest": [1, 2]}`), "", "tag \"isTest\""},
		{"trailing data", writeFile(t, dir, "trail.json", `{"a": []} {"b": []}`), "", "trailing data"},
		{"duplicate key", writeFile(t, dir, "dup.json", `{"a": ["x"], "a": ["y"]}`), "", "duplicate tag"},
		{"orphan exclude", good, writeFile(t, dir, "orphan.json", `{"isBuild": ["x"]}`), "unknown tag \"isBuild\""},
		{"invalid tag name", writeFile(t, dir, "name.json", `{"is test": ["x"]}`), "", "invalid tag name"},
		{"yaml not mapping", writeFile(t, dir, "list.yaml", "- test\n"), "", "must be a mapping"},
		{"unsupported format", writeFile(t, dir, "rules.ini", "isTest=test"), "", "unsupported rule file format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRuleSet(tt.include, tt.exclude)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
