package domain

// Plan is a subscription tier with an advisory occupancy counter.
//
// OccupancyCount tracks how many active accounts currently reference the plan.
// It is mutated only through the catalog's atomic adjust; it is never
// read-then-blind-written by callers.
type Plan struct {
	ID             string `bson:"_id" json:"id"`
	Name           string `bson:"name,omitempty" json:"name,omitempty"`
	OccupancyCount int    `bson:"occupancyCount" json:"occupancyCount"`
}
