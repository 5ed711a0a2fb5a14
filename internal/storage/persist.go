package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/steveyegge/issuetag/internal/types"
)

// Persister writes batches through an Execer.
type Persister struct {
	dialect  Dialect
	tagNames []string
	logger   *slog.Logger
}

// NewPersister returns a persister rendering in dialect d. tagNames are the
// tag columns the issue table must carry.
func NewPersister(d Dialect, tagNames []string, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = DiscardLogger()
	}
	return &Persister{dialect: d, tagNames: tagNames, logger: logger}
}

// PersistResult counts the rows written for one batch.
type PersistResult struct {
	Issues      int
	Comments    int
	Attachments int
}

// Persist ensures the schema, then upserts every comment, every attachment
// and finally every issue of the batch. Issue comment and attachment counts
// come from the batch itself. The first failing statement aborts the batch.
func (p *Persister) Persist(ctx context.Context, ex Execer, batch *types.Batch) (PersistResult, error) {
	var res PersistResult
	if err := EnsureSchema(ctx, ex, p.dialect, p.tagNames, p.logger); err != nil {
		return res, fmt.Errorf("ensure schema: %w", err)
	}

	for _, issue := range batch.Issues {
		for _, c := range batch.Comments[issue.Key] {
			if err := p.upsert(ctx, ex, TableComment, commentRow(c)); err != nil {
				return res, fmt.Errorf("persist comment %d of %s: %w", c.ID, issue.Key, err)
			}
			res.Comments++
		}
	}

	for _, issue := range batch.Issues {
		for _, a := range batch.Attachments[issue.Key] {
			if err := p.upsert(ctx, ex, TableAttachment, attachmentRow(a)); err != nil {
				return res, fmt.Errorf("persist attachment %s of %s: %w", a.Filename, issue.Key, err)
			}
			res.Attachments++
		}
	}

	for _, issue := range batch.Issues {
		row := issueRow(issue, len(batch.Comments[issue.Key]), len(batch.Attachments[issue.Key]))
		if err := p.upsert(ctx, ex, TableIssue, row); err != nil {
			return res, fmt.Errorf("persist issue %s: %w", issue.Key, err)
		}
		res.Issues++
	}

	return res, nil
}

func (p *Persister) upsert(ctx context.Context, ex Execer, table string, row *Row) error {
	stmt, err := Upsert(p.dialect, table, primaryKeys[table], row)
	if err != nil {
		return err
	}
	_, err = Exec(ctx, ex, p.logger, stmt)
	return err
}

func commentRow(c *types.Comment) *Row {
	return NewRow().
		Set(ColCommentID, Int(c.ID)).
		Set(ColIssueKey, Text(c.IssueKey)).
		Set(ColAuthor, User(c.Author)).
		Set(ColBody, OptionalText(c.Body)).
		Set(ColCreationDate, Timestamp(c.Created))
}

func attachmentRow(a *types.Attachment) *Row {
	return NewRow().
		Set(ColIssueKey, Text(a.IssueKey)).
		Set(ColFilename, Text(a.Filename)).
		Set(ColContentURI, OptionalText(a.ContentURI)).
		Set(ColAuthor, User(a.Author)).
		Set(ColMimeType, OptionalText(a.MimeType)).
		Set(ColSize, Int(a.Size)).
		Set(ColCreationDate, Timestamp(a.Created))
}

// issueRow leaves tag columns out, so a re-ingested issue keeps the tags it
// was already given.
func issueRow(i *types.Issue, numComments, numAttachments int) *Row {
	return NewRow().
		Set(ColID, Int(i.ID)).
		Set(ColIssueKey, Text(i.Key)).
		Set(ColSummary, Text(i.Summary)).
		Set(ColDescription, OptionalText(i.Description)).
		Set(ColAssignee, User(i.Assignee)).
		Set(ColReporter, User(i.Reporter)).
		Set(ColCreationDate, Timestamp(i.Created)).
		Set(ColUpdateDate, Timestamp(i.Updated)).
		Set(ColIssueType, Entity(i.IssueType)).
		Set(ColPriority, Entity(i.Priority)).
		Set(ColResolution, Entity(i.Resolution)).
		Set(ColStatus, Entity(i.Status)).
		Set(ColWatchers, OptionalInt(i.Watchers)).
		Set(ColNumAffectedVersions, Count(i.AffectedVersions)).
		Set(ColNumFixVersions, Count(i.FixVersions)).
		Set(ColNumAttachments, Int(int64(numAttachments))).
		Set(ColNumChangelogs, Count(i.Changelog)).
		Set(ColNumComments, Int(int64(numComments))).
		Set(ColNumIssueLinks, Count(i.IssueLinks)).
		Set(ColNumLabels, Count(i.Labels)).
		Set(ColNumSubtasks, Count(i.Subtasks)).
		Set(ColNumWorkLogs, Count(i.Worklogs))
}
