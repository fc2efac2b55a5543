package record

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Filter selects records for ListRecords.
type Filter struct {
	// BoatTypeID restricts results to one boat type. Empty means all types.
	BoatTypeID string `json:"boatTypeId"`

	// RecordID restricts results to a single record.
	RecordID string `json:"recordId,omitempty"`
}

// Matches reports whether r passes the filter.
func (f Filter) Matches(r Record) bool {
	if f.BoatTypeID != "" && r.BoatTypeID != f.BoatTypeID {
		return false
	}
	if f.RecordID != "" && r.ID != f.RecordID {
		return false
	}
	return true
}

// Service is the remote record store.
// Implementations must be safe for concurrent use.
type Service interface {
	// ListRecords returns the records matching filter, ordered by name then ID.
	// An empty result is not an error.
	ListRecords(ctx context.Context, filter Filter) ([]Record, error)

	// ApplyEdits persists every edit in set or none of them.
	// Failures carry a message suitable for showing to the user.
	ApplyEdits(ctx context.Context, set EditSet) error
}

// Seeder inserts or replaces whole records. Backends implement it so that
// fixtures and seed files can be loaded without going through edits.
type Seeder interface {
	Put(ctx context.Context, records ...Record) error
}

// Sentinel errors for record operations.
var (
	// ErrNotFound indicates an edit referenced a record that doesn't exist.
	ErrNotFound = errors.New("record not found")

	// ErrClosed indicates the service has been closed.
	ErrClosed = errors.New("record service closed")

	// ErrMissingID indicates a record without an ID was offered to Put.
	ErrMissingID = errors.New("record ID is required")
)

// Seed loads records into any backend that supports Put.
func Seed(ctx context.Context, s Seeder, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := s.Put(ctx, records...); err != nil {
		return fmt.Errorf("seed records: %w", err)
	}
	return nil
}

// applyEdits runs every edit in set against current and returns the
// records that changed, keyed by ID. current is not modified. The first
// failing edit aborts the whole batch.
func applyEdits(current map[string]Record, set EditSet) (map[string]Record, error) {
	changed := make(map[string]Record, len(set.RecordIDs()))

	for _, e := range set.Edits() {
		r, ok := changed[e.RecordID]
		if !ok {
			r, ok = current[e.RecordID]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, e.RecordID)
			}
		}

		updated, err := r.With(e.Field, e.Value)
		if err != nil {
			return nil, err
		}
		changed[e.RecordID] = updated
	}
	return changed, nil
}

// sortRecords orders records by name then ID.
func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Name != records[j].Name {
			return records[i].Name < records[j].Name
		}
		return records[i].ID < records[j].ID
	})
}
