package tags

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/issuetag/internal/storage"
	"github.com/steveyegge/issuetag/internal/testutil/teststore"
	"github.com/steveyegge/issuetag/internal/types"
)

type fakeExecer struct {
	stmts  []string
	failOn int
}

type rowsResult int64

func (r rowsResult) LastInsertId() (int64, error) { return 0, nil }
func (r rowsResult) RowsAffected() (int64, error) { return int64(r), nil }

func (f *fakeExecer) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	f.stmts = append(f.stmts, query)
	if f.failOn > 0 && len(f.stmts) == f.failOn {
		return nil, errors.New("boom")
	}
	return rowsResult(3), nil
}

func mustRuleSet(t *testing.T, rules ...Rule) *RuleSet {
	t.Helper()
	rs, err := NewRuleSet(rules...)
	require.NoError(t, err)
	return rs
}

func TestEngineStatementsInOrder(t *testing.T) {
	rs := mustRuleSet(t,
		Rule{Name: "b", Include: []string{"x"}},
		Rule{Name: "a", Include: []string{"y"}},
	)
	stmts, err := NewEngine(rs, storage.MySQL, nil).Statements()
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "SET b = TRUE")
	assert.Contains(t, stmts[1], "SET a = TRUE")
}

func TestEngineClassifyStopsOnFailure(t *testing.T) {
	rs := mustRuleSet(t,
		Rule{Name: "one", Include: []string{"x"}},
		Rule{Name: "two", Include: []string{"y"}},
		Rule{Name: "three", Include: []string{"z"}},
	)
	ex := &fakeExecer{failOn: 2}
	counts, err := NewEngine(rs, storage.MySQL, nil).Classify(context.Background(), ex)
	require.Error(t, err)

	var stmtErr *storage.StatementError
	assert.True(t, errors.As(err, &stmtErr))
	assert.Contains(t, err.Error(), "classify two")
	assert.Len(t, ex.stmts, 2, "no statement after the failing one")
	assert.Equal(t, []TagCount{{Tag: "one", Rows: 3}}, counts)
}

var backends = []struct {
	name string
	open func(testing.TB) *storage.Store
}{
	{"sqlite", teststore.SQLite},
	{"dolt", teststore.Dolt},
}

// classifyFixture stores issues with the given summaries in store and
// classifies them.
func classifyFixture(t *testing.T, store *storage.Store, rs *RuleSet, summaries ...string) []TagCount {
	t.Helper()
	issues := make([]*types.Issue, len(summaries))
	for i, s := range summaries {
		issues[i] = &types.Issue{ID: int64(i + 1), Key: "PROJ-" + string(rune('A'+i)), Summary: s}
	}
	env := teststore.NewEnv(t, store)
	env.Persist(rs.Names(), issues...)

	var counts []TagCount
	err := store.Unit(env.Ctx, func(ctx context.Context, ex storage.Execer) error {
		var err error
		counts, err = NewEngine(rs, store.Dialect(), nil).Classify(ctx, ex)
		return err
	})
	require.NoError(t, err)
	return counts
}

// tagged returns the summaries whose tag column is TRUE.
func tagged(t *testing.T, store *storage.Store, tag string) []string {
	t.Helper()
	rows, err := store.DB().Query("SELECT summary FROM issue WHERE " + tag + " = TRUE ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()
	var out []string
	for rows.Next() {
		var s string
		require.NoError(t, rows.Scan(&s))
		out = append(out, s)
	}
	require.NoError(t, rows.Err())
	return out
}

func TestClassifyAgainstStore(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			testClassify(t, b.open(t))
		})
	}
}

func testClassify(t *testing.T, store *storage.Store) {
	rs := mustRuleSet(t,
		Rule{Name: "isTest", Include: []string{"test"}, Exclude: []string{"latest"}},
		Rule{Name: "isBuild", Include: []string{"pom.xml"}},
		Rule{Name: "isNothing"},
	)
	counts := classifyFixture(t, store, rs,
		"Add TEST coverage",
		"Upgrade to latest test runner",
		"Edit pomXxml",
		"Fix build",
	)

	assert.Equal(t, []string{"Add TEST coverage"}, tagged(t, store, "isTest"), "case-insensitive and exclusion wins")
	assert.Equal(t, []string{"Edit pomXxml"}, tagged(t, store, "isBuild"), ". matches any single character")
	assert.Empty(t, tagged(t, store, "isNothing"), "empty include matches nothing")

	require.Len(t, counts, 3)
	assert.Equal(t, TagCount{Tag: "isTest", Rows: 1}, counts[0])
	assert.Equal(t, TagCount{Tag: "isNothing", Rows: 0}, counts[2])

	var nulls int
	require.NoError(t, store.DB().QueryRow("SELECT COUNT(*) FROM issue WHERE isTest IS NULL").Scan(&nulls))
	assert.Equal(t, 3, nulls, "unmatched rows are left NULL, never FALSE")
}

func TestClassifyUnderscoreIsLiteral(t *testing.T) {
	rs := mustRuleSet(t, Rule{Name: "isSnake", Include: []string{"a_b"}})
	store := teststore.SQLite(t)
	classifyFixture(t, store, rs, "rename a_b", "rename axb")
	assert.Equal(t, []string{"rename a_b"}, tagged(t, store, "isSnake"))
}

func TestClassifyFoldsNonASCIICase(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			rs := mustRuleSet(t, Rule{Name: "isAnnoyance", Include: []string{"ÄRGER"}})
			classifyFixture(t, store, rs, "ÄRGER im build", "ärger im build", "arger im build")
			assert.Equal(t, []string{"ÄRGER im build", "ärger im build"}, tagged(t, store, "isAnnoyance"))
		})
	}
}
