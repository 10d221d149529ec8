package domain

import (
	"time"
)

// Role type to distinguish between account roles
type Role string

// Define constants for roles
const (
	RoleTrainer  Role = "trainer"
	RoleCustomer Role = "customer"
)

// Membership status values stored on the profile record.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Account represents a membership profile record (either a Trainer or a
// Customer). The account ID is caller-supplied and doubles as the document key
// in the role's profile collection; the credential record for the same account
// lives with the identity provider and is keyed by email.
type Account struct {
	ID               string    `bson:"_id" json:"id"`
	Name             string    `bson:"name" json:"name"`
	Email            string    `bson:"email" json:"email"` // Unique within the role's namespace
	PhoneNumber      string    `bson:"phoneNumber" json:"phoneNumber"`
	Role             Role      `bson:"role" json:"role"`
	PlanID           string    `bson:"planId" json:"planId"`
	MembershipStatus string    `bson:"membershipStatus" json:"membershipStatus"`
	JoinedAt         time.Time `bson:"joinedAt" json:"joinedAt"`
	ExpirationAt     time.Time `bson:"expirationAt" json:"expirationAt"`

	// --- Trainer-specific ---
	TraineeCount int    `bson:"traineeCount,omitempty" json:"traineeCount,omitempty"`
	Description  string `bson:"description,omitempty" json:"description,omitempty"`
	Location     string `bson:"location,omitempty" json:"location,omitempty"`
	ImageKey     string `bson:"imageKey,omitempty" json:"imageKey,omitempty"`
	FirstLogin   int    `bson:"firstLogin,omitempty" json:"firstLogin,omitempty"`

	// --- Customer-specific ---
	// TrainerID references the owning trainer's account; it is a reference,
	// not ownership, so deleting a trainer does not cascade here.
	TrainerID             string             `bson:"trainerId,omitempty" json:"trainerId,omitempty"`
	Measurements          []MeasurementEntry `bson:"measurements,omitempty" json:"measurements,omitempty"`
	TrainingPlanKey       string             `bson:"trainingPlanKey,omitempty" json:"trainingPlanKey,omitempty"`
	FoodPlanKey           string             `bson:"foodPlanKey,omitempty" json:"foodPlanKey,omitempty"`
	TrainingPlanUpdatedAt time.Time          `bson:"trainingPlanUpdatedAt,omitempty" json:"trainingPlanUpdatedAt,omitempty"`
	FoodPlanUpdatedAt     time.Time          `bson:"foodPlanUpdatedAt,omitempty" json:"foodPlanUpdatedAt,omitempty"`
}

func (a *Account) IsTrainer() bool {
	return a.Role == RoleTrainer
}

func (a *Account) IsCustomer() bool {
	return a.Role == RoleCustomer
}
