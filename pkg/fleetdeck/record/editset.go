package record

// Edit is a single field-level change to a record.
type Edit struct {
	RecordID string `json:"recordId"`
	Field    string `json:"field"`
	Value    any    `json:"value"`
}

// EditSet is an ordered batch of pending edits.
//
// EditSet is a value: Apply returns a new set and never mutates the
// receiver, so a snapshot handed to a remote call cannot change under it.
// The zero value is an empty set.
type EditSet struct {
	edits []Edit
}

// NewEditSet folds edits into a set with Apply.
func NewEditSet(edits ...Edit) EditSet {
	var s EditSet
	for _, e := range edits {
		s = s.Apply(e)
	}
	return s
}

// Apply is the EditSet reducer. An edit to a (RecordID, Field) pair already
// present replaces its value in place; otherwise it is appended.
func (s EditSet) Apply(e Edit) EditSet {
	next := make([]Edit, len(s.edits), len(s.edits)+1)
	copy(next, s.edits)

	for i := range next {
		if next[i].RecordID == e.RecordID && next[i].Field == e.Field {
			next[i].Value = e.Value
			return EditSet{edits: next}
		}
	}
	return EditSet{edits: append(next, e)}
}

// Len returns the number of distinct (record, field) entries.
func (s EditSet) Len() int {
	return len(s.edits)
}

// IsEmpty reports whether the set has no entries.
func (s EditSet) IsEmpty() bool {
	return len(s.edits) == 0
}

// Edits returns a copy of the entries in order.
func (s EditSet) Edits() []Edit {
	out := make([]Edit, len(s.edits))
	copy(out, s.edits)
	return out
}

// Get returns the pending value for a (record, field) pair.
func (s EditSet) Get(recordID, field string) (any, bool) {
	for _, e := range s.edits {
		if e.RecordID == recordID && e.Field == field {
			return e.Value, true
		}
	}
	return nil, false
}

// RecordIDs returns the distinct record IDs touched, in first-edit order.
func (s EditSet) RecordIDs() []string {
	seen := make(map[string]bool, len(s.edits))
	var ids []string
	for _, e := range s.edits {
		if !seen[e.RecordID] {
			seen[e.RecordID] = true
			ids = append(ids, e.RecordID)
		}
	}
	return ids
}
