// Package jira is a read-only client for the Jira REST search and issue
// endpoints, mapping responses onto the ingested record types.
package jira

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/steveyegge/issuetag/internal/types"
)

// wireIssue is an issue as returned by search and issue endpoints.
type wireIssue struct {
	ID        string         `json:"id"`
	Key       string         `json:"key"`
	Fields    wireFields     `json:"fields"`
	Changelog *wireChangelog `json:"changelog"`
}

type wireFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description"` // plain string (v2) or ADF (v3)
	Assignee    *wireUser       `json:"assignee"`
	Reporter    *wireUser       `json:"reporter"`
	Created     string          `json:"created"`
	Updated     string          `json:"updated"`
	IssueType   *wireEntity     `json:"issuetype"`
	Priority    *wireEntity     `json:"priority"`
	Resolution  *wireEntity     `json:"resolution"`
	Status      *wireEntity     `json:"status"`
	Watches     *wireWatches    `json:"watches"`

	Versions    types.Collection `json:"versions"`
	FixVersions types.Collection `json:"fixVersions"`
	IssueLinks  types.Collection `json:"issuelinks"`
	Labels      types.Collection `json:"labels"`
	Subtasks    types.Collection `json:"subtasks"`
	Worklog     *wireWorklog     `json:"worklog"`

	Comment    *wireComments    `json:"comment"`
	Attachment []wireAttachment `json:"attachment"`
}

type wireUser struct {
	AccountID   string `json:"accountId"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

type wireEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type wireWatches struct {
	WatchCount int64 `json:"watchCount"`
}

type wireWorklog struct {
	Worklogs types.Collection `json:"worklogs"`
}

type wireChangelog struct {
	Histories types.Collection `json:"histories"`
}

type wireComments struct {
	Comments []wireComment `json:"comments"`
}

type wireComment struct {
	ID      string          `json:"id"`
	Author  *wireUser       `json:"author"`
	Body    json.RawMessage `json:"body"`
	Created string          `json:"created"`
}

type wireAttachment struct {
	Filename string    `json:"filename"`
	Content  string    `json:"content"`
	Author   *wireUser `json:"author"`
	MimeType string    `json:"mimeType"`
	Size     int64     `json:"size"`
	Created  string    `json:"created"`
}

// wireSearch is a JQL search response page.
type wireSearch struct {
	StartAt    int         `json:"startAt"`
	MaxResults int         `json:"maxResults"`
	Total      int         `json:"total"`
	Issues     []wireIssue `json:"issues"`
}

func (u *wireUser) toUser() *types.User {
	if u == nil {
		return nil
	}
	return &types.User{AccountID: u.AccountID, Name: u.Name, DisplayName: u.DisplayName}
}

func (e *wireEntity) toEntity() *types.NamedEntity {
	if e == nil {
		return nil
	}
	return &types.NamedEntity{ID: e.ID, Name: e.Name}
}

// optionalTime parses ts, treating empty or unparseable values as absent.
func optionalTime(ts string) *time.Time {
	if ts == "" {
		return nil
	}
	t, err := ParseTimestamp(ts)
	if err != nil {
		return nil
	}
	return &t
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// toIssue maps a wire issue. Comments and attachments are mapped only when
// the response carried them.
func (w *wireIssue) toIssue() (*types.Issue, error) {
	id, err := strconv.ParseInt(w.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("issue %s: invalid id %q: %w", w.Key, w.ID, err)
	}
	f := &w.Fields
	issue := &types.Issue{
		ID:               id,
		Key:              w.Key,
		Summary:          f.Summary,
		Assignee:         f.Assignee.toUser(),
		Reporter:         f.Reporter.toUser(),
		Created:          optionalTime(f.Created),
		Updated:          optionalTime(f.Updated),
		IssueType:        f.IssueType.toEntity(),
		Priority:         f.Priority.toEntity(),
		Resolution:       f.Resolution.toEntity(),
		Status:           f.Status.toEntity(),
		AffectedVersions: f.Versions,
		FixVersions:      f.FixVersions,
		IssueLinks:       f.IssueLinks,
		Labels:           f.Labels,
		Subtasks:         f.Subtasks,
	}
	if hasValue(f.Description) {
		text := DescriptionToPlainText(f.Description)
		issue.Description = &text
	}
	if f.Watches != nil {
		n := f.Watches.WatchCount
		issue.Watchers = &n
	}
	if f.Worklog != nil {
		issue.Worklogs = f.Worklog.Worklogs
	}
	if w.Changelog != nil {
		issue.Changelog = w.Changelog.Histories
	}

	if f.Comment != nil {
		issue.Comments = make([]*types.Comment, 0, len(f.Comment.Comments))
		for _, c := range f.Comment.Comments {
			cid, err := strconv.ParseInt(c.ID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("issue %s: invalid comment id %q: %w", w.Key, c.ID, err)
			}
			comment := &types.Comment{
				ID:       cid,
				IssueKey: w.Key,
				Author:   c.Author.toUser(),
				Created:  optionalTime(c.Created),
			}
			if hasValue(c.Body) {
				body := DescriptionToPlainText(c.Body)
				comment.Body = &body
			}
			issue.Comments = append(issue.Comments, comment)
		}
	}
	if f.Attachment != nil {
		issue.Attachments = make([]*types.Attachment, 0, len(f.Attachment))
		for _, a := range f.Attachment {
			issue.Attachments = append(issue.Attachments, &types.Attachment{
				IssueKey:   w.Key,
				Filename:   a.Filename,
				ContentURI: optionalString(a.Content),
				Author:     a.Author.toUser(),
				MimeType:   optionalString(a.MimeType),
				Size:       a.Size,
				Created:    optionalTime(a.Created),
			})
		}
	}
	return issue, nil
}

func hasValue(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}
