package storage

import (
	"strconv"
	"time"

	"github.com/steveyegge/issuetag/internal/types"
)

// NullLiteral is the literal null marker.
const NullLiteral = "NULL"

// TimestampLayout is the fixed rendering wrapped by Dialect.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05.000"

// Value is a typed column value. The set of variants is closed: every kind
// of attribute written by the persister is one of the constructors below,
// and each variant renders itself for a dialect.
type Value interface {
	literal(d Dialect) string
}

type nullValue struct{}

type textValue string

type entityValue string

type countValue struct{ n int }

type intValue int64

type timestampValue struct{ t time.Time }

func (nullValue) literal(Dialect) string { return NullLiteral }

func (v textValue) literal(d Dialect) string { return d.Quote(string(v)) }

func (v entityValue) literal(d Dialect) string { return d.Quote(string(v)) }

func (v countValue) literal(Dialect) string { return strconv.Itoa(v.n) }

func (v intValue) literal(Dialect) string { return strconv.FormatInt(int64(v), 10) }

func (v timestampValue) literal(d Dialect) string {
	return d.Timestamp(v.t.UTC().Format(TimestampLayout))
}

// Literal renders v as store-ready literal text. A nil Value is NULL.
func Literal(d Dialect, v Value) string {
	if v == nil {
		return NullLiteral
	}
	return v.literal(d)
}

// Null is the null marker.
func Null() Value { return nullValue{} }

// Text is a plain text value.
func Text(s string) Value { return textValue(s) }

// OptionalText is Text, or Null when s is nil.
func OptionalText(s *string) Value {
	if s == nil {
		return Null()
	}
	return Text(*s)
}

// Entity renders a named entity by its display name only.
func Entity(e *types.NamedEntity) Value {
	if e == nil {
		return Null()
	}
	return entityValue(e.Name)
}

// User renders a user by display name, falling back to the login name.
func User(u *types.User) Value {
	if u == nil {
		return Null()
	}
	if u.DisplayName == "" && u.Name != "" {
		return entityValue(u.Name)
	}
	return entityValue(u.DisplayName)
}

// Count is the number of non-null elements of c, or Null when c is absent.
func Count(c types.Collection) Value {
	if !c.Present() {
		return Null()
	}
	return countValue{n: c.Len()}
}

// Int is an integer value.
func Int(n int64) Value { return intValue(n) }

// OptionalInt is Int, or Null when n is nil.
func OptionalInt(n *int64) Value {
	if n == nil {
		return Null()
	}
	return Int(*n)
}

// Timestamp is a point in time rendered in UTC, or Null when t is nil.
func Timestamp(t *time.Time) Value {
	if t == nil {
		return Null()
	}
	return timestampValue{t: *t}
}
