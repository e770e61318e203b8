package itemstore

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/itemdesk/internal/apperr"
	"github.com/starford/itemdesk/internal/models"
)

func fixture(n int) []models.Item {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	items := make([]models.Item, n)
	for i := range items {
		ts := base.Add(time.Duration(i) * time.Minute)
		items[i] = models.Item{
			ID:          int64(i + 1),
			Name:        fmt.Sprintf("Item %02d", i+1),
			Description: "d",
			Priority:    models.Priorities[i%3],
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}
	}
	return items
}

func ids(items []models.Item) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestApplyFilterPriority(t *testing.T) {
	page := Apply(fixture(9), Query{Filter: Filter{Priority: models.PriorityHigh}})
	require.Equal(t, 3, page.Total)
	for _, it := range page.Items {
		assert.Equal(t, models.PriorityHigh, it.Priority)
	}
}

func TestApplyFilterNameCaseInsensitive(t *testing.T) {
	items := fixture(3)
	items[1].Name = "Groceries"
	page := Apply(items, Query{Filter: Filter{Name: "cERi"}})
	assert.Equal(t, []int64{2}, ids(page.Items))
}

func TestApplyFiltersCombine(t *testing.T) {
	items := fixture(6)
	page := Apply(items, Query{Filter: Filter{Name: "item 0", Priority: models.PriorityMedium}})
	assert.Equal(t, []int64{5, 2}, ids(page.Items))
}

func TestApplySortReverses(t *testing.T) {
	items := fixture(5)
	newest := Apply(items, Query{Sort: SortNewest})
	oldest := Apply(items, Query{Sort: SortOldest})

	assert.Equal(t, []int64{5, 4, 3, 2, 1}, ids(newest.Items))
	rev := ids(oldest.Items)
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	assert.Equal(t, ids(newest.Items), rev)
}

func TestApplySortTiesByID(t *testing.T) {
	items := fixture(3)
	for i := range items {
		items[i].UpdatedAt = items[0].UpdatedAt
	}
	assert.Equal(t, []int64{3, 2, 1}, ids(Apply(items, Query{Sort: SortNewest}).Items))
	assert.Equal(t, []int64{1, 2, 3}, ids(Apply(items, Query{Sort: SortOldest}).Items))
}

func TestApplyPagination(t *testing.T) {
	items := fixture(23)

	first := Apply(items, Query{Sort: SortOldest})
	assert.Len(t, first.Items, DefaultPageSize)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 23, first.Total)
	assert.Equal(t, 3, first.TotalPages)

	last := Apply(items, Query{Sort: SortOldest, Page: 3})
	assert.Equal(t, []int64{21, 22, 23}, ids(last.Items))

	past := Apply(items, Query{Page: 9})
	assert.Empty(t, past.Items)
	assert.NotNil(t, past.Items)
	assert.Equal(t, 3, past.TotalPages)
}

func TestApplyPageClamping(t *testing.T) {
	items := fixture(3)
	p := Apply(items, Query{Page: -2, PageSize: 1000})
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.PageSize)

	p = Apply(nil, Query{PageSize: -1})
	assert.Equal(t, DefaultPageSize, p.PageSize)
	assert.Zero(t, p.TotalPages)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	items := fixture(4)
	_ = Apply(items, Query{Sort: SortNewest})
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(items))
}

func TestParseSort(t *testing.T) {
	for in, want := range map[string]SortOrder{"": SortNewest, "NEWEST": SortNewest, "oldest": SortOldest, "asc": SortOldest} {
		got, err := ParseSort(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseSort("sideways")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestStoreList(t *testing.T) {
	s := New(WithItems(fixture(12)))
	page := s.List(Query{Sort: SortNewest, PageSize: 5, Page: 2})
	assert.Equal(t, []int64{7, 6, 5, 4, 3}, ids(page.Items))
	assert.Equal(t, 3, page.TotalPages)
}
