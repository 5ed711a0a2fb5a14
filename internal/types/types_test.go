package types

import (
	"encoding/json"
	"testing"
)

func TestCollectionLen(t *testing.T) {
	tests := []struct {
		name    string
		c       Collection
		want    int
		present bool
	}{
		{"absent", nil, 0, false},
		{"empty", Collection{}, 0, true},
		{"values", Collection{json.RawMessage(`"a"`), json.RawMessage(`{"id":"1"}`)}, 2, true},
		{"nulls skipped", Collection{json.RawMessage(`null`), json.RawMessage(`"x"`), json.RawMessage(` null `)}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Len(); got != tt.want {
				t.Errorf("Len() = %d, want %d", got, tt.want)
			}
			if got := tt.c.Present(); got != tt.present {
				t.Errorf("Present() = %v, want %v", got, tt.present)
			}
		})
	}
}

func TestBatchAdd(t *testing.T) {
	b := NewBatch()
	b.Add(&Issue{ID: 1, Key: "PROJ-1"}, []*Comment{{ID: 10, IssueKey: "PROJ-1"}}, nil)
	b.Add(&Issue{ID: 2, Key: "PROJ-2"}, nil, []*Attachment{{IssueKey: "PROJ-2", Filename: "a.txt"}})

	if b.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", b.Len())
	}
	if b.Issues[0].Key != "PROJ-1" || b.Issues[1].Key != "PROJ-2" {
		t.Errorf("issues out of order: %s, %s", b.Issues[0].Key, b.Issues[1].Key)
	}
	if b.CommentCount() != 1 {
		t.Errorf("CommentCount() = %d, want 1", b.CommentCount())
	}
	if b.AttachmentCount() != 1 {
		t.Errorf("AttachmentCount() = %d, want 1", b.AttachmentCount())
	}
}
