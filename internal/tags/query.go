package tags

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/steveyegge/issuetag/internal/storage"
)

// likeEscape is the LIKE escape character used for literal _ and !.
const likeEscape = '!'

// An empty include list leaves "1 = 0", which matches nothing; an empty
// exclude list leaves "NOT (1 = 0)", which excludes nothing.
var updateTemplate = template.Must(template.New("classify").Parse(
	`UPDATE {{.Table}} SET {{.Tag}} = TRUE WHERE (` +
		`{{range .Include}}lower({{$.Column}}) LIKE {{.}} ESCAPE '!' OR {{end}}1 = 0)` +
		` AND NOT ({{range .Exclude}}lower({{$.Column}}) LIKE {{.}} ESCAPE '!' OR {{end}}1 = 0)`))

// LikePattern converts a rule pattern into a LIKE pattern: lower-cased,
// wrapped in % for substring matching, with . as the single-character
// wildcard and LIKE's own _ and the escape character taken literally.
func LikePattern(p string) string {
	var sb strings.Builder
	sb.Grow(len(p) + 4)
	sb.WriteByte('%')
	for _, r := range strings.ToLower(p) {
		switch r {
		case likeEscape:
			sb.WriteRune(likeEscape)
			sb.WriteRune(likeEscape)
		case '_':
			sb.WriteRune(likeEscape)
			sb.WriteRune('_')
		case '.':
			sb.WriteRune('_')
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('%')
	return sb.String()
}

// Statement renders the classification UPDATE for one rule.
func Statement(d storage.Dialect, r Rule) (string, error) {
	if err := validateName(r.Name); err != nil {
		return "", err
	}
	quote := func(patterns []string) []string {
		out := make([]string, len(patterns))
		for i, p := range patterns {
			out[i] = d.Quote(LikePattern(p))
		}
		return out
	}

	var sb strings.Builder
	err := updateTemplate.Execute(&sb, struct {
		Table   string
		Column  string
		Tag     string
		Include []string
		Exclude []string
	}{storage.TableIssue, storage.ColSummary, r.Name, quote(r.Include), quote(r.Exclude)})
	if err != nil {
		return "", fmt.Errorf("render classify statement for %s: %w", r.Name, err)
	}
	return sb.String(), nil
}
