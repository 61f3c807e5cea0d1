// Package model defines the core work-item types shared by all wv packages.
package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ItemType classifies a work item record.
type ItemType string

const (
	TypeProject ItemType = "project"
	TypeEpic    ItemType = "epic"
	TypeFeature ItemType = "feature"
	TypeStory   ItemType = "story"
	TypeBug     ItemType = "bug"
	TypeSpec    ItemType = "spec"
	TypePhase   ItemType = "phase"
)

// ValidTypes lists every accepted item type.
var ValidTypes = []ItemType{
	TypeProject, TypeEpic, TypeFeature, TypeStory, TypeBug, TypeSpec, TypePhase,
}

// Status is the authoritative workflow state of a work item. The viewer only
// reads statuses; changing one is an edit to the underlying record.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInPlanning Status = "in_planning"
	StatusReady      Status = "ready"
	StatusInProgress Status = "in_progress"
	StatusBlocked    Status = "blocked"
	StatusCompleted  Status = "completed"
	StatusArchived   Status = "archived"
)

// ValidStatuses lists every accepted status.
var ValidStatuses = []Status{
	StatusNotStarted, StatusInPlanning, StatusReady,
	StatusInProgress, StatusBlocked, StatusCompleted, StatusArchived,
}

// NormalizeStatus maps user spellings ("In Progress", "in-progress") onto the
// canonical snake_case form. Unknown values pass through unchanged so the
// caller can decide whether to reject them.
func NormalizeStatus(s Status) Status {
	trimmed := strings.TrimSpace(string(s))
	if trimmed == "" {
		return StatusNotStarted
	}
	norm := strings.ToLower(trimmed)
	norm = strings.ReplaceAll(norm, "-", "_")
	norm = strings.ReplaceAll(norm, " ", "_")
	return Status(norm)
}

// WorkItem is an immutable snapshot of one record on disk. It is re-created
// from the record whenever the record changes; nothing mutates a WorkItem in
// place after parsing.
type WorkItem struct {
	ID          string    `json:"id" yaml:"id"`
	Title       string    `json:"title" yaml:"title"`
	Type        ItemType  `json:"type" yaml:"type"`
	Status      Status    `json:"status" yaml:"status"`
	Priority    int       `json:"priority" yaml:"priority"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Owner       string    `json:"owner,omitempty" yaml:"owner,omitempty"`
	Labels      []string  `json:"labels,omitempty" yaml:"labels,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`

	// SourcePath is the record's path relative to the plan root. It is the
	// unique cache key and encodes the item's ancestry.
	SourcePath string `json:"source_path" yaml:"-"`
}

// Validate checks the minimal invariants a parsed record must satisfy.
func (w *WorkItem) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("work item has no id")
	}
	if !isValidType(w.Type) {
		return fmt.Errorf("work item %s has unknown type %q", w.ID, w.Type)
	}
	if !isValidStatus(w.Status) {
		return fmt.Errorf("work item %s has unknown status %q", w.ID, w.Status)
	}
	return nil
}

func isValidType(t ItemType) bool {
	for _, v := range ValidTypes {
		if t == v {
			return true
		}
	}
	return false
}

func isValidStatus(s Status) bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// TypeRank returns the sibling sort rank for an item type.
// Lower ranks sort first: project < epic < feature < story = bug < spec < phase.
func TypeRank(t ItemType) int {
	switch t {
	case TypeProject:
		return 0
	case TypeEpic:
		return 1
	case TypeFeature:
		return 2
	case TypeStory, TypeBug:
		return 3
	case TypeSpec:
		return 4
	case TypePhase:
		return 5
	default:
		return 6
	}
}

// IsContainer reports whether the type can own countable children.
func (t ItemType) IsContainer() bool {
	switch t {
	case TypeProject, TypeEpic, TypeFeature:
		return true
	default:
		return false
	}
}

// NumericID extracts the numeric suffix of a type-prefixed ID ("story-12" →
// 12). IDs without a numeric suffix sort after numbered ones.
func NumericID(id string) int {
	idx := strings.LastIndexByte(id, '-')
	if idx < 0 || idx == len(id)-1 {
		return int(^uint(0) >> 1)
	}
	n, err := strconv.Atoi(id[idx+1:])
	if err != nil {
		return int(^uint(0) >> 1)
	}
	return n
}

// ProgressInfo is the derived completion statistic for a container node,
// computed over its direct countable children only.
type ProgressInfo struct {
	Completed  int    `json:"completed"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
	Display    string `json:"display"`
}

// NewProgressInfo builds a ProgressInfo, clamping degenerate counts rather
// than failing the read.
func NewProgressInfo(completed, total int) ProgressInfo {
	if total < 0 {
		total = 0
	}
	if completed < 0 {
		completed = 0
	}
	if completed > total {
		completed = total
	}
	pct := 0
	if total > 0 {
		pct = (completed*100 + total/2) / total
	}
	return ProgressInfo{
		Completed:  completed,
		Total:      total,
		Percentage: pct,
		Display:    fmt.Sprintf("%d/%d (%d%%)", completed, total, pct),
	}
}
