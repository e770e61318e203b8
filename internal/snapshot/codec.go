// Package snapshot serializes the item collection to and from its persisted
// form: the JSON array held in a storage slot, and the import/export
// documents used by the CLI.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/itemdesk/internal/models"
)

// record mirrors models.Item with a raw priority so legacy values can be
// normalised while decoding.
type record struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Encode renders items as a compact JSON array. A nil slice encodes as [].
func Encode(items []models.Item) ([]byte, error) {
	if items == nil {
		items = []models.Item{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return data, nil
}

// Decode parses a JSON array of items. Empty input and a JSON null both
// decode to an empty collection.
func Decode(data []byte) ([]models.Item, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []models.Item{}, nil
	}

	var recs []record
	if err := json.Unmarshal(trimmed, &recs); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	return fromRecords(recs)
}

func fromRecords(recs []record) ([]models.Item, error) {
	out := make([]models.Item, 0, len(recs))
	for i, r := range recs {
		p, ok := models.ParsePriority(r.Priority)
		if !ok {
			return nil, fmt.Errorf("snapshot: item %d (id %d): unknown priority %q", i, r.ID, r.Priority)
		}
		out = append(out, models.Item{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Priority:    p,
			CreatedAt:   r.CreatedAt.UTC(),
			UpdatedAt:   r.UpdatedAt.UTC(),
		})
	}
	return out, nil
}
