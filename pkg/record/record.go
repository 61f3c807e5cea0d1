// Package record reads work-item records from a plan directory.
//
// A record is either a markdown file with YAML frontmatter (the body becomes
// the item's description) or a JSON file holding one work item object.
package record

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/workviz/workviz/pkg/model"
)

// frontmatterDelim separates YAML frontmatter from the markdown body.
var frontmatterDelim = []byte("---")

// ParseRecord reads a single record file into a work item. The item's
// SourcePath is set to the given path; callers that scan a tree rewrite it
// to be relative to the plan root.
func ParseRecord(path string) (*model.WorkItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var item *model.WorkItem
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md":
		item, err = parseMarkdown(data)
	case ".json":
		item, err = parseJSON(data)
	default:
		return nil, fmt.Errorf("unsupported record type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	item.Status = model.NormalizeStatus(item.Status)
	item.SourcePath = path
	if err := item.Validate(); err != nil {
		return nil, err
	}
	return item, nil
}

// parseMarkdown splits a record into YAML frontmatter and markdown body.
// The frontmatter must open on the first line:
//
//	---
//	id: story-101
//	type: story
//	---
//	Free-form description.
func parseMarkdown(data []byte) (*model.WorkItem, error) {
	data = stripBOM(data)

	rest, ok := cutDelimLine(data)
	if !ok {
		return nil, fmt.Errorf("record has no frontmatter")
	}
	idx := closingDelim(rest)
	if idx < 0 {
		return nil, fmt.Errorf("record frontmatter is not terminated")
	}
	front, body := rest[:idx], rest[idx:]
	if _, ok := cutDelimLine(body); ok {
		body = body[len(frontmatterDelim):]
		if i := bytes.IndexByte(body, '\n'); i >= 0 {
			body = body[i+1:]
		} else {
			body = nil
		}
	}

	var item model.WorkItem
	if err := yaml.Unmarshal(front, &item); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		item.Description = text
	}
	return &item, nil
}

func parseJSON(data []byte) (*model.WorkItem, error) {
	var item model.WorkItem
	if err := json.Unmarshal(stripBOM(data), &item); err != nil {
		return nil, fmt.Errorf("invalid JSON record: %w", err)
	}
	return &item, nil
}

// cutDelimLine reports whether data opens with a bare "---" line and returns
// everything after it.
func cutDelimLine(data []byte) ([]byte, bool) {
	if !bytes.HasPrefix(data, frontmatterDelim) {
		return nil, false
	}
	rest := data[len(frontmatterDelim):]
	if len(rest) == 0 {
		return nil, false
	}
	switch rest[0] {
	case '\n':
		return rest[1:], true
	case '\r':
		if len(rest) > 1 && rest[1] == '\n' {
			return rest[2:], true
		}
	}
	return nil, false
}

// closingDelim returns the offset of the line holding the closing "---", or
// -1 when the frontmatter never closes.
func closingDelim(data []byte) int {
	offset := 0
	for offset <= len(data) {
		line := data[offset:]
		if i := bytes.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		if bytes.Equal(bytes.TrimRight(line, "\r"), frontmatterDelim) {
			return offset
		}
		i := bytes.IndexByte(data[offset:], '\n')
		if i < 0 {
			break
		}
		offset += i + 1
	}
	return -1
}

// stripBOM removes the UTF-8 Byte Order Mark if present
func stripBOM(b []byte) []byte {
	if bytes.HasPrefix(b, []byte{0xEF, 0xBB, 0xBF}) {
		return b[3:]
	}
	return b
}
