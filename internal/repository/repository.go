package repository

import (
	"context"
	"fitpanel/member-app/internal/domain"
	"time"
)

// Error constants for the repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicateKey = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// ProfileUpdate carries the optional profile fields a partial update may set.
// Nil pointers are left untouched.
type ProfileUpdate struct {
	Name         *string
	PhoneNumber  *string
	Email        *string
	PlanID       *string
	ExpirationAt *time.Time
	ImageKey     *string
	Description  *string
	Location     *string
	FirstLogin   *int
}

// AccountRepository is the profile store. Trainers and customers live in
// separate namespaces (collections); every lookup is parameterized by role.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, role domain.Role, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, role domain.Role, email string) (*domain.Account, error)
	List(ctx context.Context, role domain.Role) ([]domain.Account, error)
	ListByTrainer(ctx context.Context, trainerID string) ([]domain.Account, error)
	UpdateFields(ctx context.Context, role domain.Role, id string, update ProfileUpdate) error
	SetMembershipStatus(ctx context.Context, role domain.Role, id, status string) error
	Delete(ctx context.Context, role domain.Role, id string) error
	CountByPlan(ctx context.Context, role domain.Role, planID string) (int64, error)

	// AdjustTraineeCount atomically applies max(traineeCount+delta, 0) to a
	// trainer profile and returns the new value. Same primitive as the plan
	// catalog's occupancy adjust.
	AdjustTraineeCount(ctx context.Context, trainerID string, delta int) (int, error)

	// Measurement history, embedded in the customer document. Replace is a
	// whole-sequence write; concurrent replaces can lose one of the two
	// updates, which is an accepted consistency boundary for this data.
	GetMeasurements(ctx context.Context, customerID string) ([]domain.MeasurementEntry, error)
	ReplaceMeasurements(ctx context.Context, customerID string, entries []domain.MeasurementEntry) error

	// SetPlanDocument stores the object key for one document kind and stamps
	// BOTH plan timestamps with updatedAt (source behavior, kept as-is).
	SetPlanDocument(ctx context.Context, customerID string, kind domain.DocumentKind, objectKey string, updatedAt time.Time) error
}

// PlanRepository is the plan catalog.
type PlanRepository interface {
	GetByID(ctx context.Context, planID string) (*domain.Plan, error)
	List(ctx context.Context) ([]domain.Plan, error)

	// AdjustOccupancy atomically applies max(occupancyCount+delta, 0) and
	// returns the new value. Two concurrent adjustments to the same plan
	// serialize inside the store; callers never read-then-blind-write.
	AdjustOccupancy(ctx context.Context, planID string, delta int) (int, error)

	// SetOccupancy overwrites the counter. Reserved for the reconciliation
	// pass that re-derives occupancy from actual membership.
	SetOccupancy(ctx context.Context, planID string, count int) error
}
