package domain

// DocumentKind distinguishes the two plan documents a customer carries.
// Each kind is replaced wholesale on upload; there is no versioning beyond
// the single current copy and its timestamp.
type DocumentKind string

const (
	DocumentTrainingPlan DocumentKind = "training_plan"
	DocumentFoodPlan     DocumentKind = "food_plan"
)
