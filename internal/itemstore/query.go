package itemstore

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starford/itemdesk/internal/apperr"
	"github.com/starford/itemdesk/internal/models"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// SortOrder orders list results by updatedAt.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
)

// ParseSort maps a query value to a SortOrder. Empty means newest.
func ParseSort(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(SortNewest), "desc":
		return SortNewest, nil
	case string(SortOldest), "asc":
		return SortOldest, nil
	}
	return "", fmt.Errorf("unknown sort %q: %w", s, apperr.ErrInvalid)
}

// Filter narrows a list. Zero fields match everything.
type Filter struct {
	Name     string
	Priority models.Priority
}

func (f Filter) match(it models.Item) bool {
	if f.Priority != "" && it.Priority != f.Priority {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(it.Name), strings.ToLower(f.Name)) {
		return false
	}
	return true
}

// Query describes a filtered, sorted, paginated view.
type Query struct {
	Filter   Filter
	Sort     SortOrder
	Page     int
	PageSize int
}

// Page is one page of list results.
type Page struct {
	Items      []models.Item `json:"items"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	Total      int           `json:"total"`
	TotalPages int           `json:"totalPages"`
}

// normalize clamps paging values: page below 1 becomes 1, a non-positive
// page size becomes the default and sizes above MaxPageSize are capped.
func (q Query) normalize() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	if q.Sort == "" {
		q.Sort = SortNewest
	}
	return q
}

// Apply computes the view of items described by q without modifying items.
// A page past the end yields no items but still reports the totals.
func Apply(items []models.Item, q Query) Page {
	q = q.normalize()

	matched := make([]models.Item, 0, len(items))
	for _, it := range items {
		if q.Filter.match(it) {
			matched = append(matched, it)
		}
	}

	asc := q.Sort == SortOldest
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			if asc {
				return a.UpdatedAt.Before(b.UpdatedAt)
			}
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if asc {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	total := len(matched)
	out := Page{
		Items:      []models.Item{},
		Page:       q.Page,
		PageSize:   q.PageSize,
		Total:      total,
		TotalPages: (total + q.PageSize - 1) / q.PageSize,
	}
	start := (q.Page - 1) * q.PageSize
	if start < total {
		end := min(start+q.PageSize, total)
		out.Items = matched[start:end]
	}
	return out
}

// List returns the view of the current collection described by q.
func (s *Store) List(q Query) Page {
	s.mu.RLock()
	items := s.snapshot()
	s.mu.RUnlock()
	return Apply(items, q)
}
