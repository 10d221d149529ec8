package service

import (
	"context"
	"errors"
	"fitpanel/member-app/internal/annotate"
	"fitpanel/member-app/internal/domain"
	"fitpanel/member-app/internal/identity"
	"fitpanel/member-app/internal/repository"
	"fitpanel/member-app/internal/storage"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"
)

// --- Error Definitions ---
var (
	ErrAccountIDTaken  = errors.New("account id is already taken")
	ErrEmailInUse      = errors.New("email is already in use")
	ErrAccountNotFound = errors.New("account not found")
	ErrTrainerNotFound = errors.New("trainer not found")
	ErrPlanNotFound    = errors.New("plan not found")
	ErrMissingFields   = errors.New("missing required fields")
)

// CreateState names how far an account-creation attempt got. Committed is the
// only success terminal; a PartialFailure carries the last state reached so
// the caller can decide whether to retry or reconcile by hand.
type CreateState string

const (
	StateValidating      CreateState = "validating"
	StateIdentityCreated CreateState = "identity_created"
	StateProfileWritten  CreateState = "profile_written"
	StateCounterAdjusted CreateState = "counter_adjusted"
	StateCommitted       CreateState = "committed"
)

// PartialFailure reports a multi-step operation whose earlier, authoritative
// steps succeeded while a later one did not. The applied side effects are NOT
// rolled back; Step names exactly what still needs reconciling.
type PartialFailure struct {
	Op    string
	State CreateState
	Step  string
	Err   error
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("%s: partial failure at step %q (state %s): %v", e.Op, e.Step, e.State, e.Err)
}

func (e *PartialFailure) Unwrap() error {
	return e.Err
}

// CreateAccountInput carries everything needed to create either role.
type CreateAccountInput struct {
	Role             domain.Role
	AccountID        string
	Email            string
	Name             string
	PhoneNumber      string
	PlanID           string
	MembershipStatus string

	// Trainer-only
	Description  string
	Location     string
	TraineeCount int
	ImageBytes   []byte
	ImageType    string

	// Customer-only
	TrainerID    string
	TrainingPlan []byte
	FoodPlan     []byte
}

// DeleteResult reports a completed deletion. The profile removal is the
// authoritative "account gone" signal; a failed identity deletion downgrades
// to a warning instead of failing the operation.
type DeleteResult struct {
	IdentityDeleted bool   `json:"identityDeleted"`
	Warning         string `json:"warning,omitempty"`
}

// LifecycleService orchestrates the multi-step account operations across the
// identity provider, the profile store, and the plan catalog.
type LifecycleService interface {
	CreateAccount(ctx context.Context, in CreateAccountInput) (*domain.Account, error)
	ChangePlan(ctx context.Context, role domain.Role, accountID, oldPlanID, newPlanID string) (*domain.Account, error)
	DeleteAccount(ctx context.Context, role domain.Role, accountID, email, trainerID string) (*DeleteResult, error)
	UpdateAccountFields(ctx context.Context, role domain.Role, accountID string, update repository.ProfileUpdate, imageBytes []byte, imageType string) error
	SetMembershipStatus(ctx context.Context, role domain.Role, accountID, status string) error
	UploadPlanDocuments(ctx context.Context, customerID, ownerName string, trainingBytes, foodBytes []byte) (*domain.Account, error)
	ReconcileOccupancy(ctx context.Context, planID string) (int, error)

	GetAccount(ctx context.Context, role domain.Role, accountID string) (*domain.Account, error)
	GetByEmailAnyRole(ctx context.Context, email string) (*domain.Account, error)
	ListTrainers(ctx context.Context) ([]domain.Account, error)
	ListCustomersByTrainer(ctx context.Context, trainerID string) ([]domain.Account, error)
	ListPlans(ctx context.Context) ([]domain.Plan, error)
}

// lifecycleService implements the LifecycleService interface.
type lifecycleService struct {
	accountRepo repository.AccountRepository
	planRepo    repository.PlanRepository
	idp         identity.Provider
	fileStorage storage.FileStorage
	annotator   annotate.Annotator
	logger      zerolog.Logger
	now         func() time.Time
}

// NewLifecycleService creates a new instance of lifecycleService.
func NewLifecycleService(
	accountRepo repository.AccountRepository,
	planRepo repository.PlanRepository,
	idp identity.Provider,
	fileStorage storage.FileStorage,
	annotator annotate.Annotator,
	logger zerolog.Logger,
) LifecycleService {
	return &lifecycleService{
		accountRepo: accountRepo,
		planRepo:    planRepo,
		idp:         idp,
		fileStorage: fileStorage,
		annotator:   annotator,
		logger:      logger,
		now:         time.Now,
	}
}

// planTerm is the plan-tier duration table. Every code path computing an
// expiration goes through here; an unrecognized plan falls back to a two-week
// grace window.
func planTerm(planID string, from time.Time) time.Time {
	switch planID {
	case "111":
		return from.AddDate(0, 1, 0)
	case "211":
		return from.AddDate(0, 3, 0)
	case "241":
		return from.AddDate(0, 6, 0)
	default:
		return from.AddDate(0, 0, 14)
	}
}

// CreateAccount walks the creation state machine:
//
//	Validating -> IdentityCreated -> ProfileWritten -> CounterAdjusted -> Committed
//
// The credential is created before any profile write, so a failed credential
// creation never leaves an orphaned profile. Failures after the profile write
// surface as *PartialFailure without rolling back the earlier steps.
func (s *lifecycleService) CreateAccount(ctx context.Context, in CreateAccountInput) (*domain.Account, error) {
	if in.AccountID == "" || in.Email == "" || in.Name == "" || in.Role == "" {
		return nil, ErrMissingFields
	}

	// State: Validating. The id pre-check is check-then-act and therefore
	// racy against a concurrent create of the same id; the identity
	// provider's unique email index is the authoritative guard.
	_, err := s.accountRepo.GetByID(ctx, in.Role, in.AccountID)
	if err == nil {
		return nil, ErrAccountIDTaken
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	// Credential first. The initial secret is the account id; members change
	// it on first login.
	if _, err := s.idp.CreateCredential(ctx, in.Email, in.AccountID); err != nil {
		if errors.Is(err, identity.ErrEmailAlreadyInUse) {
			return nil, ErrEmailInUse
		}
		return nil, err
	}
	// State: IdentityCreated.

	now := s.now().UTC()
	account := &domain.Account{
		ID:               in.AccountID,
		Name:             in.Name,
		Email:            in.Email,
		PhoneNumber:      in.PhoneNumber,
		Role:             in.Role,
		PlanID:           in.PlanID,
		MembershipStatus: in.MembershipStatus,
		JoinedAt:         now,
		ExpirationAt:     planTerm(in.PlanID, now),
	}

	switch in.Role {
	case domain.RoleTrainer:
		account.Description = in.Description
		account.Location = in.Location
		account.TraineeCount = in.TraineeCount
		account.FirstLogin = 1
	case domain.RoleCustomer:
		account.TrainerID = in.TrainerID
	}

	// Supplied files are stored before the profile write so the written
	// profile already carries their references.
	if in.Role == domain.RoleTrainer && len(in.ImageBytes) > 0 {
		key := path.Join("Users", in.AccountID)
		if err := s.fileStorage.Upload(ctx, key, in.ImageBytes, in.ImageType); err != nil {
			return nil, fmt.Errorf("storing profile image: %w", err)
		}
		account.ImageKey = key
	}
	if in.Role == domain.RoleCustomer {
		if len(in.TrainingPlan) > 0 {
			key := path.Join("TrainingPlans", in.AccountID)
			if err := s.fileStorage.Upload(ctx, key, in.TrainingPlan, "application/pdf"); err != nil {
				return nil, fmt.Errorf("storing training plan: %w", err)
			}
			account.TrainingPlanKey = key
			account.TrainingPlanUpdatedAt = now
		}
		if len(in.FoodPlan) > 0 {
			key := path.Join("FoodPlans", in.AccountID)
			if err := s.fileStorage.Upload(ctx, key, in.FoodPlan, "application/pdf"); err != nil {
				return nil, fmt.Errorf("storing food plan: %w", err)
			}
			account.FoodPlanKey = key
			account.FoodPlanUpdatedAt = now
		}
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			// Lost the pre-check race. The credential already exists; the
			// caller must reconcile rather than blindly retry.
			return nil, &PartialFailure{
				Op:    "CreateAccount",
				State: StateIdentityCreated,
				Step:  "profile write",
				Err:   ErrAccountIDTaken,
			}
		}
		return nil, &PartialFailure{
			Op:    "CreateAccount",
			State: StateIdentityCreated,
			Step:  "profile write",
			Err:   err,
		}
	}
	// State: ProfileWritten.

	if in.PlanID != "" {
		if _, err := s.planRepo.AdjustOccupancy(ctx, in.PlanID, +1); err != nil {
			return account, &PartialFailure{
				Op:    "CreateAccount",
				State: StateProfileWritten,
				Step:  "plan occupancy increment",
				Err:   err,
			}
		}
	}
	// State: CounterAdjusted.

	if in.Role == domain.RoleCustomer && in.TrainerID != "" {
		if _, err := s.accountRepo.AdjustTraineeCount(ctx, in.TrainerID, +1); err != nil {
			return account, &PartialFailure{
				Op:    "CreateAccount",
				State: StateCounterAdjusted,
				Step:  "trainee count increment",
				Err:   err,
			}
		}
	}

	// State: Committed.
	return account, nil
}

// ChangePlan adjusts the two occupancy counters as independent atomic
// operations, then updates the profile. The store's atomicity is per
// document, so a failure between the two adjustments leaves the counters
// momentarily inconsistent; occupancy is advisory, not capacity-enforcing,
// and the reconciliation pass restores it.
func (s *lifecycleService) ChangePlan(ctx context.Context, role domain.Role, accountID, oldPlanID, newPlanID string) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, role, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if oldPlanID != "" {
		if _, err := s.planRepo.AdjustOccupancy(ctx, oldPlanID, -1); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, &PartialFailure{
				Op:   "ChangePlan",
				Step: "old plan decrement",
				Err:  err,
			}
		}
	}
	if newPlanID != "" {
		if _, err := s.planRepo.AdjustOccupancy(ctx, newPlanID, +1); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, &PartialFailure{
				Op:   "ChangePlan",
				Step: "new plan increment",
				Err:  err,
			}
		}
	}

	if newPlanID != "" {
		expiration := planTerm(newPlanID, s.now().UTC())
		update := repository.ProfileUpdate{
			PlanID:       &newPlanID,
			ExpirationAt: &expiration,
		}
		if err := s.accountRepo.UpdateFields(ctx, role, accountID, update); err != nil {
			return nil, &PartialFailure{
				Op:   "ChangePlan",
				Step: "profile plan update",
				Err:  err,
			}
		}
		account.PlanID = newPlanID
		account.ExpirationAt = expiration
	}

	return account, nil
}

// DeleteAccount removes the profile first: profile removal is the
// user-visible effect and must not be blocked by identity-provider
// flakiness. A failed identity deletion is logged, surfaced as a warning on
// an otherwise successful result, and left for a later reconciliation sweep.
func (s *lifecycleService) DeleteAccount(ctx context.Context, role domain.Role, accountID, email, trainerID string) (*DeleteResult, error) {
	account, err := s.accountRepo.GetByID(ctx, role, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	if err := s.accountRepo.Delete(ctx, role, accountID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}

	result := &DeleteResult{IdentityDeleted: true}
	if err := s.deleteCredentialByEmail(ctx, email); err != nil {
		s.logger.Warn().
			Str("accountId", accountID).
			Str("email", email).
			Err(err).
			Msg("profile deleted but credential deletion failed; stale credential left for reconciliation")
		result.IdentityDeleted = false
		result.Warning = fmt.Sprintf("credential for %s could not be deleted: %v", email, err)
	}

	if account.PlanID != "" {
		if _, err := s.planRepo.AdjustOccupancy(ctx, account.PlanID, -1); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return result, &PartialFailure{
				Op:   "DeleteAccount",
				Step: "plan occupancy decrement",
				Err:  err,
			}
		}
	}

	if role == domain.RoleCustomer && trainerID != "" {
		if _, err := s.accountRepo.AdjustTraineeCount(ctx, trainerID, -1); err != nil && !errors.Is(err, repository.ErrNotFound) {
			return result, &PartialFailure{
				Op:   "DeleteAccount",
				Step: "trainee count decrement",
				Err:  err,
			}
		}
	}

	return result, nil
}

func (s *lifecycleService) deleteCredentialByEmail(ctx context.Context, email string) error {
	cred, err := s.idp.LookupByEmail(ctx, email)
	if err != nil {
		return err
	}
	return s.idp.DeleteCredential(ctx, cred.UID)
}

// UpdateAccountFields applies a partial profile update, storing a new profile
// image first when one was supplied.
func (s *lifecycleService) UpdateAccountFields(ctx context.Context, role domain.Role, accountID string, update repository.ProfileUpdate, imageBytes []byte, imageType string) error {
	if len(imageBytes) > 0 {
		key := path.Join("Users", accountID)
		if err := s.fileStorage.Upload(ctx, key, imageBytes, imageType); err != nil {
			return fmt.Errorf("storing profile image: %w", err)
		}
		update.ImageKey = &key
	}

	// A plan change through this path gets its expiration recomputed from
	// the shared term table.
	if update.PlanID != nil && update.ExpirationAt == nil {
		expiration := planTerm(*update.PlanID, s.now().UTC())
		update.ExpirationAt = &expiration
	}

	err := s.accountRepo.UpdateFields(ctx, role, accountID, update)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrAccountNotFound
	}
	return err
}

func (s *lifecycleService) SetMembershipStatus(ctx context.Context, role domain.Role, accountID, status string) error {
	err := s.accountRepo.SetMembershipStatus(ctx, role, accountID, status)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrAccountNotFound
	}
	return err
}

// UploadPlanDocuments annotates whichever of the two plan documents was
// supplied, stores the stamped copy, and refreshes both plan timestamps.
// Refreshing the kind that was not re-uploaded is long-standing source
// behavior and is preserved here.
func (s *lifecycleService) UploadPlanDocuments(ctx context.Context, customerID, ownerName string, trainingBytes, foodBytes []byte) (*domain.Account, error) {
	if _, err := s.accountRepo.GetByID(ctx, domain.RoleCustomer, customerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	now := s.now().UTC()

	store := func(kind domain.DocumentKind, folder string, raw []byte) error {
		stamped, err := s.annotator.Annotate(raw, ownerName, now)
		if err != nil {
			return err
		}
		key := path.Join(folder, customerID)
		if err := s.fileStorage.Upload(ctx, key, stamped, "application/pdf"); err != nil {
			return err
		}
		return s.accountRepo.SetPlanDocument(ctx, customerID, kind, key, now)
	}

	if len(trainingBytes) > 0 {
		if err := store(domain.DocumentTrainingPlan, "TrainingPlans", trainingBytes); err != nil {
			return nil, err
		}
	}
	if len(foodBytes) > 0 {
		if err := store(domain.DocumentFoodPlan, "FoodPlans", foodBytes); err != nil {
			return nil, err
		}
	}

	return s.accountRepo.GetByID(ctx, domain.RoleCustomer, customerID)
}

// ReconcileOccupancy re-derives a plan's occupancy from the set of profiles
// actually referencing it and writes the counter back. Idempotent; intended
// as a maintenance operation after partial failures.
func (s *lifecycleService) ReconcileOccupancy(ctx context.Context, planID string) (int, error) {
	if _, err := s.planRepo.GetByID(ctx, planID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrPlanNotFound
		}
		return 0, err
	}

	trainers, err := s.accountRepo.CountByPlan(ctx, domain.RoleTrainer, planID)
	if err != nil {
		return 0, err
	}
	customers, err := s.accountRepo.CountByPlan(ctx, domain.RoleCustomer, planID)
	if err != nil {
		return 0, err
	}

	count := int(trainers + customers)
	if err := s.planRepo.SetOccupancy(ctx, planID, count); err != nil {
		return 0, err
	}
	return count, nil
}

// --- Pass-through reads ---

func (s *lifecycleService) GetAccount(ctx context.Context, role domain.Role, accountID string) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, role, accountID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return account, err
}

// GetByEmailAnyRole resolves a profile from either namespace, trainers first.
func (s *lifecycleService) GetByEmailAnyRole(ctx context.Context, email string) (*domain.Account, error) {
	account, err := s.accountRepo.GetByEmail(ctx, domain.RoleTrainer, email)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	account, err = s.accountRepo.GetByEmail(ctx, domain.RoleCustomer, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	return account, err
}

func (s *lifecycleService) ListTrainers(ctx context.Context) ([]domain.Account, error) {
	return s.accountRepo.List(ctx, domain.RoleTrainer)
}

func (s *lifecycleService) ListCustomersByTrainer(ctx context.Context, trainerID string) ([]domain.Account, error) {
	return s.accountRepo.ListByTrainer(ctx, trainerID)
}

func (s *lifecycleService) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	return s.planRepo.List(ctx)
}
