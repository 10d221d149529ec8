package domain

import "time"

// MeasurementEntry is one snapshot in a customer's measurement history.
// Entries are immutable once appended; the only mutation is whole-entry
// removal by position. Insertion order is chronological order, and positions
// shift down after a delete, so indices must not be cached across deletes.
type MeasurementEntry struct {
	Fields     map[string]float64 `bson:"fields" json:"fields"`
	ImageKeys  []string           `bson:"imageKeys,omitempty" json:"imageKeys,omitempty"`
	RecordedAt time.Time          `bson:"recordedAt" json:"recordedAt"`
}
