// Package tags classifies stored issues with boolean tag columns derived
// from text-pattern rules matched against the issue summary.
package tags

import (
	"errors"
	"fmt"

	"github.com/steveyegge/issuetag/internal/storage"
)

// ErrInvalidTagName is returned for a tag name that cannot be a column.
var ErrInvalidTagName = errors.New("invalid tag name")

// Rule is one tag: the issues whose summary matches any Include pattern and
// no Exclude pattern get the tag. Patterns are case-insensitive substring
// matches where % matches any run of characters and . any single character.
type Rule struct {
	Name    string   `json:"name"`
	Include []string `json:"include"`
	Exclude []string `json:"exclude,omitempty"`
}

// RuleSet is an ordered, validated collection of rules.
type RuleSet struct {
	rules []Rule
	index map[string]int
}

// NewRuleSet validates rules and keeps them in the given order.
func NewRuleSet(rules ...Rule) (*RuleSet, error) {
	rs := &RuleSet{index: make(map[string]int, len(rules))}
	for _, r := range rules {
		if err := validateName(r.Name); err != nil {
			return nil, err
		}
		if _, dup := rs.index[r.Name]; dup {
			return nil, fmt.Errorf("duplicate tag %q", r.Name)
		}
		rs.index[r.Name] = len(rs.rules)
		rs.rules = append(rs.rules, Rule{
			Name:    r.Name,
			Include: append([]string(nil), r.Include...),
			Exclude: append([]string(nil), r.Exclude...),
		})
	}
	return rs, nil
}

func validateName(name string) error {
	if !storage.ValidIdentifier(name) {
		return fmt.Errorf("%w %q: must be a valid column identifier", ErrInvalidTagName, name)
	}
	if storage.IsReservedColumn(name) {
		return fmt.Errorf("%w %q: collides with a fixed issue column", ErrInvalidTagName, name)
	}
	return nil
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Names returns the tag names in rule order.
func (rs *RuleSet) Names() []string {
	if rs == nil {
		return nil
	}
	names := make([]string, len(rs.rules))
	for i, r := range rs.rules {
		names[i] = r.Name
	}
	return names
}

// Rules returns a copy of the rules in order.
func (rs *RuleSet) Rules() []Rule {
	if rs == nil {
		return nil
	}
	return append([]Rule(nil), rs.rules...)
}

// Rule returns the rule named name.
func (rs *RuleSet) Rule(name string) (Rule, bool) {
	if rs == nil {
		return Rule{}, false
	}
	i, ok := rs.index[name]
	if !ok {
		return Rule{}, false
	}
	return rs.rules[i], true
}
