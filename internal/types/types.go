// Package types defines the records ingested from the issue tracker.
package types

import (
	"bytes"
	"encoding/json"
	"time"
)

// Issue is a single tracker issue as retrieved from the query service.
type Issue struct {
	ID          int64        `json:"id"`
	Key         string       `json:"key"`
	Summary     string       `json:"summary"`
	Description *string      `json:"description,omitempty"`
	Assignee    *User        `json:"assignee,omitempty"`
	Reporter    *User        `json:"reporter,omitempty"`
	Created     *time.Time   `json:"created,omitempty"`
	Updated     *time.Time   `json:"updated,omitempty"`
	IssueType   *NamedEntity `json:"issue_type,omitempty"`
	Priority    *NamedEntity `json:"priority,omitempty"`
	Resolution  *NamedEntity `json:"resolution,omitempty"`
	Status      *NamedEntity `json:"status,omitempty"`
	Watchers    *int64       `json:"watchers,omitempty"`

	// List-valued fields are only ever counted.
	AffectedVersions Collection `json:"affected_versions,omitempty"`
	FixVersions      Collection `json:"fix_versions,omitempty"`
	Changelog        Collection `json:"changelog,omitempty"`
	IssueLinks       Collection `json:"issue_links,omitempty"`
	Labels           Collection `json:"labels,omitempty"`
	Subtasks         Collection `json:"subtasks,omitempty"`
	Worklogs         Collection `json:"worklogs,omitempty"`

	// Populated by the per-issue secondary fetch, not by search.
	Comments    []*Comment    `json:"comments,omitempty"`
	Attachments []*Attachment `json:"attachments,omitempty"`
}

// User is a tracker account. Only the display name is persisted.
type User struct {
	AccountID   string `json:"account_id,omitempty"`
	Name        string `json:"name,omitempty"`
	DisplayName string `json:"display_name"`
}

// NamedEntity is a status, priority, resolution or issue type reference.
type NamedEntity struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Comment is a comment attached to an issue.
type Comment struct {
	ID       int64      `json:"id"`
	IssueKey string     `json:"issue_key"`
	Author   *User      `json:"author,omitempty"`
	Body     *string    `json:"body,omitempty"`
	Created  *time.Time `json:"created,omitempty"`
}

// Attachment is a file attached to an issue. Filenames are unique per issue.
type Attachment struct {
	IssueKey   string     `json:"issue_key"`
	Filename   string     `json:"filename"`
	ContentURI *string    `json:"content_uri,omitempty"`
	Author     *User      `json:"author,omitempty"`
	MimeType   *string    `json:"mime_type,omitempty"`
	Size       int64      `json:"size"`
	Created    *time.Time `json:"created,omitempty"`
}

// Collection holds the raw elements of a list-valued field.
// A nil Collection means the field was absent from the response.
type Collection []json.RawMessage

var jsonNull = []byte("null")

// Len returns the number of non-null elements.
func (c Collection) Len() int {
	n := 0
	for _, el := range c {
		if len(el) == 0 || bytes.Equal(bytes.TrimSpace(el), jsonNull) {
			continue
		}
		n++
	}
	return n
}

// Present reports whether the field was present in the response.
func (c Collection) Present() bool {
	return c != nil
}

// SearchPage is one page of a search result.
type SearchPage struct {
	Total  int
	Issues []*Issue
}

// Batch is the unit handed from the fetcher to the persister: the issues of
// one page in retrieval order, with their comments and attachments by key.
type Batch struct {
	Issues      []*Issue
	Comments    map[string][]*Comment
	Attachments map[string][]*Attachment
}

// NewBatch returns an empty batch ready for Add.
func NewBatch() *Batch {
	return &Batch{
		Comments:    make(map[string][]*Comment),
		Attachments: make(map[string][]*Attachment),
	}
}

// Add appends an issue with its comments and attachments.
func (b *Batch) Add(issue *Issue, comments []*Comment, attachments []*Attachment) {
	b.Issues = append(b.Issues, issue)
	b.Comments[issue.Key] = comments
	b.Attachments[issue.Key] = attachments
}

// Len returns the number of issues in the batch.
func (b *Batch) Len() int {
	return len(b.Issues)
}

// CommentCount returns the number of comments across all issues.
func (b *Batch) CommentCount() int {
	n := 0
	for _, cs := range b.Comments {
		n += len(cs)
	}
	return n
}

// AttachmentCount returns the number of attachments across all issues.
func (b *Batch) AttachmentCount() int {
	n := 0
	for _, as := range b.Attachments {
		n += len(as)
	}
	return n
}
