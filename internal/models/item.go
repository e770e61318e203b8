// Package models defines the domain types for itemdesk.
package models

import (
	"sort"
	"strings"
	"time"
)

// Priority is the urgency of an item.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists the accepted priority values, most urgent first.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// legacyPriorities maps values written by older clients.
var legacyPriorities = map[string]Priority{
	"alta":  PriorityHigh,
	"media": PriorityMedium,
	"média": PriorityMedium,
	"baixa": PriorityLow,
}

// PrioritySpellings returns every stored value ParsePriority accepts: the
// canonical priorities first, then the legacy aliases in sorted order.
func PrioritySpellings() []string {
	out := make([]string, 0, len(Priorities)+len(legacyPriorities))
	for _, p := range Priorities {
		out = append(out, string(p))
	}
	legacy := make([]string, 0, len(legacyPriorities))
	for k := range legacyPriorities {
		legacy = append(legacy, k)
	}
	sort.Strings(legacy)
	return append(out, legacy...)
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ParsePriority normalises s to a Priority. Legacy values are accepted.
// The second return value is false when s is not recognised.
func ParsePriority(s string) (Priority, bool) {
	v := strings.ToLower(strings.TrimSpace(s))
	if p := Priority(v); p.Valid() {
		return p, true
	}
	if p, ok := legacyPriorities[v]; ok {
		return p, true
	}
	return Priority(v), false
}

// Item is a tracked record.
type Item struct {
	ID          int64     `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description" yaml:"description"`
	Priority    Priority  `json:"priority" yaml:"priority"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}
