package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"server/internal/domain"
)

// Catalog holds the curated style records. It is loaded once at process
// start and read-only afterwards, so lookups need no locking.
type Catalog struct {
	styles []domain.StyleRecord
	byID   map[string]int
}

// Load reads a JSON array of style records from path. Duplicate or empty
// ids are rejected so the recommendation flow can trust id lookups.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a catalog from raw JSON bytes.
func Parse(data []byte) (*Catalog, error) {
	var styles []domain.StyleRecord
	if err := json.Unmarshal(data, &styles); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}
	byID := make(map[string]int, len(styles))
	for i, s := range styles {
		if s.ID == "" {
			return nil, fmt.Errorf("catalog: record %d has no id", i)
		}
		if _, ok := byID[s.ID]; ok {
			return nil, fmt.Errorf("catalog: duplicate id %q", s.ID)
		}
		byID[s.ID] = i
	}
	return &Catalog{styles: styles, byID: byID}, nil
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	return len(c.styles)
}

// All returns a copy of every record in catalog order.
func (c *Catalog) All() []domain.StyleRecord {
	out := make([]domain.StyleRecord, len(c.styles))
	copy(out, c.styles)
	return out
}

// ByID returns the record with the given id.
func (c *Catalog) ByID(id string) (domain.StyleRecord, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.StyleRecord{}, false
	}
	return c.styles[i], true
}

// ByName returns the first record with the given display name. The quick
// fitting flow selects styles by name rather than id.
func (c *Catalog) ByName(name string) (domain.StyleRecord, bool) {
	for _, s := range c.styles {
		if s.Name == name {
			return s, true
		}
	}
	return domain.StyleRecord{}, false
}

// FilterGender returns the records matching the given filter
// ("male", "female", "all" or empty) in catalog order.
func (c *Catalog) FilterGender(filter string) []domain.StyleRecord {
	var out []domain.StyleRecord
	for _, s := range c.styles {
		if s.MatchesGender(filter) {
			out = append(out, s)
		}
	}
	return out
}
