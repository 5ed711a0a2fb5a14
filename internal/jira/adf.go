package jira

import (
	"encoding/json"
	"strings"
)

// adfNode is one node of an Atlassian Document Format tree.
type adfNode struct {
	Type    string    `json:"type"`
	Text    string    `json:"text"`
	Content []adfNode `json:"content"`
}

// DescriptionToPlainText extracts plain text from a description or comment
// body. API v2 returns plain strings; v3 returns ADF documents, whose
// top-level blocks become lines.
func DescriptionToPlainText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var doc adfNode
	if err := json.Unmarshal(raw, &doc); err != nil || doc.Type != "doc" {
		return string(raw)
	}

	var parts []string
	for _, block := range doc.Content {
		var sb strings.Builder
		block.writeText(&sb)
		if sb.Len() > 0 {
			parts = append(parts, sb.String())
		}
	}
	return strings.Join(parts, "\n")
}

func (n *adfNode) writeText(sb *strings.Builder) {
	switch n.Type {
	case "text":
		sb.WriteString(n.Text)
		return
	case "hardBreak":
		sb.WriteByte(' ')
		return
	}
	for i := range n.Content {
		n.Content[i].writeText(sb)
	}
}
