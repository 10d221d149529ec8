package service

import (
	"context"
	"errors"
	"fitpanel/member-app/internal/domain"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lifecycleFixture struct {
	accounts *memAccountRepo
	plans    *memPlanRepo
	idp      *memIdentity
	storage  *memStorage
	svc      *lifecycleService
}

func newLifecycleFixture(t *testing.T, planIDs ...string) *lifecycleFixture {
	t.Helper()
	f := &lifecycleFixture{
		accounts: newMemAccountRepo(),
		plans:    newMemPlanRepo(planIDs...),
		idp:      newMemIdentity(),
		storage:  newMemStorage(),
	}
	svc := NewLifecycleService(f.accounts, f.plans, f.idp, f.storage, memAnnotator{}, zerolog.Nop())
	f.svc = svc.(*lifecycleService)
	return f
}

func (f *lifecycleFixture) freezeClock(at time.Time) {
	f.svc.now = func() time.Time { return at }
}

func trainerInput(id, email, planID string) CreateAccountInput {
	return CreateAccountInput{
		Role:             domain.RoleTrainer,
		AccountID:        id,
		Email:            email,
		Name:             "Dana Levi",
		PhoneNumber:      "050-0000000",
		PlanID:           planID,
		MembershipStatus: domain.StatusActive,
		Location:         "Haifa",
	}
}

func TestCreateAccount_TrainerCommitsAndCounts(t *testing.T) {
	f := newLifecycleFixture(t, "111")
	f.freezeClock(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC))

	before := f.plans.occupancy("111")

	account, err := f.svc.CreateAccount(context.Background(), trainerInput("t-100", "dana@example.com", "111"))
	require.NoError(t, err)

	// Plan "111" carries a one-month term.
	assert.Equal(t, time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC), account.ExpirationAt)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), account.JoinedAt)

	// Identity and profile exist as a pair, and occupancy moved by exactly 1.
	assert.True(t, f.idp.has("dana@example.com"))
	_, err = f.accounts.GetByID(context.Background(), domain.RoleTrainer, "t-100")
	require.NoError(t, err)
	assert.Equal(t, before+1, f.plans.occupancy("111"))
}

func TestCreateAccount_UnknownPlanFallsBackToGraceWindow(t *testing.T) {
	f := newLifecycleFixture(t, "999")
	f.freezeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	account, err := f.svc.CreateAccount(context.Background(), trainerInput("t-101", "noa@example.com", "999"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), account.ExpirationAt)
}

func TestCreateAccount_AccountIDTakenHasNoSideEffects(t *testing.T) {
	f := newLifecycleFixture(t, "111")

	_, err := f.svc.CreateAccount(context.Background(), trainerInput("t-1", "first@example.com", "111"))
	require.NoError(t, err)
	occupancyBefore := f.plans.occupancy("111")

	_, err = f.svc.CreateAccount(context.Background(), trainerInput("t-1", "second@example.com", "111"))
	require.ErrorIs(t, err, ErrAccountIDTaken)

	// No credential was created and the counter did not move.
	assert.False(t, f.idp.has("second@example.com"))
	assert.Equal(t, occupancyBefore, f.plans.occupancy("111"))
}

func TestCreateAccount_EmailInUseAbortsBeforeProfileWrite(t *testing.T) {
	f := newLifecycleFixture(t, "111")

	_, err := f.svc.CreateAccount(context.Background(), trainerInput("t-1", "shared@example.com", "111"))
	require.NoError(t, err)

	_, err = f.svc.CreateAccount(context.Background(), trainerInput("t-2", "shared@example.com", "111"))
	require.ErrorIs(t, err, ErrEmailInUse)

	_, err = f.accounts.GetByID(context.Background(), domain.RoleTrainer, "t-2")
	assert.Error(t, err)
	assert.Equal(t, 1, f.plans.occupancy("111"))
}

func TestCreateAccount_IdentityOutageLeavesNoProfile(t *testing.T) {
	f := newLifecycleFixture(t, "111")
	f.idp.failCreate = errors.New("identity provider unavailable")

	_, err := f.svc.CreateAccount(context.Background(), trainerInput("t-1", "dana@example.com", "111"))
	require.Error(t, err)

	var pf *PartialFailure
	assert.False(t, errors.As(err, &pf))
	_, err = f.accounts.GetByID(context.Background(), domain.RoleTrainer, "t-1")
	assert.Error(t, err)
	assert.Equal(t, 0, f.plans.occupancy("111"))
}

func TestCreateAccount_CounterFailureIsPartialNotRolledBack(t *testing.T) {
	f := newLifecycleFixture(t, "111")
	f.plans.failAdjust = errors.New("catalog unavailable")

	account, err := f.svc.CreateAccount(context.Background(), trainerInput("t-1", "dana@example.com", "111"))

	var pf *PartialFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, StateProfileWritten, pf.State)
	assert.Equal(t, "plan occupancy increment", pf.Step)

	// Identity and profile survive for reconciliation; the account is returned.
	require.NotNil(t, account)
	assert.True(t, f.idp.has("dana@example.com"))
	_, err = f.accounts.GetByID(context.Background(), domain.RoleTrainer, "t-1")
	assert.NoError(t, err)
}

func TestCreateAccount_CustomerIncrementsTraineeCount(t *testing.T) {
	f := newLifecycleFixture(t, "111", "211")

	_, err := f.svc.CreateAccount(context.Background(), trainerInput("trainer-1", "coach@example.com", "111"))
	require.NoError(t, err)

	customer := CreateAccountInput{
		Role:             domain.RoleCustomer,
		AccountID:        "cust-1",
		Email:            "lia@example.com",
		Name:             "Lia Mor",
		PhoneNumber:      "052-1111111",
		PlanID:           "211",
		MembershipStatus: domain.StatusActive,
		TrainerID:        "trainer-1",
		TrainingPlan:     []byte("%PDF raw"),
	}
	account, err := f.svc.CreateAccount(context.Background(), customer)
	require.NoError(t, err)

	trainer, err := f.accounts.GetByID(context.Background(), domain.RoleTrainer, "trainer-1")
	require.NoError(t, err)
	assert.Equal(t, 1, trainer.TraineeCount)
	assert.Equal(t, 1, f.plans.occupancy("211"))

	// The supplied plan file was stored and referenced before commit.
	assert.Equal(t, "TrainingPlans/cust-1", account.TrainingPlanKey)
	assert.Contains(t, f.storage.objects, "TrainingPlans/cust-1")
}

func TestChangePlan_MovesBothCountersAndExpiration(t *testing.T) {
	f := newLifecycleFixture(t, "111", "241")
	f.freezeClock(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))

	_, err := f.svc.CreateAccount(context.Background(), trainerInput("t-1", "dana@example.com", "111"))
	require.NoError(t, err)

	account, err := f.svc.ChangePlan(context.Background(), domain.RoleTrainer, "t-1", "111", "241")
	require.NoError(t, err)

	assert.Equal(t, 0, f.plans.occupancy("111"))
	assert.Equal(t, 1, f.plans.occupancy("241"))
	assert.Equal(t, "241", account.PlanID)
	assert.Equal(t, time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), account.ExpirationAt)

	stored, err := f.accounts.GetByID(context.Background(), domain.RoleTrainer, "t-1")
	require.NoError(t, err)
	assert.Equal(t, "241", stored.PlanID)
}

func TestChangePlan_MissingOldPlanIsSkipped(t *testing.T) {
	f := newLifecycleFixture(t, "241")

	_, err := f.svc.CreateAccount(context.Background(), trainerInput("t-1", "dana@example.com", "241"))
	require.NoError(t, err)

	// The old plan document no longer exists; the change still goes through.
	_, err = f.svc.ChangePlan(context.Background(), domain.RoleTrainer, "t-1", "gone-plan", "241")
	require.NoError(t, err)
}

func TestDeleteAccount_ProfileGoneDespiteIdentityFailure(t *testing.T) {
	f := newLifecycleFixture(t, "111", "211")

	_, err := f.svc.CreateAccount(context.Background(), trainerInput("trainer-1", "coach@example.com", "111"))
	require.NoError(t, err)
	_, err = f.svc.CreateAccount(context.Background(), CreateAccountInput{
		Role:             domain.RoleCustomer,
		AccountID:        "cust-1",
		Email:            "lia@example.com",
		Name:             "Lia Mor",
		PhoneNumber:      "052-1111111",
		PlanID:           "211",
		MembershipStatus: domain.StatusActive,
		TrainerID:        "trainer-1",
	})
	require.NoError(t, err)

	f.idp.failLookup = errors.New("provider unreachable")

	result, err := f.svc.DeleteAccount(context.Background(), domain.RoleCustomer, "cust-1", "lia@example.com", "trainer-1")
	require.NoError(t, err)

	// Overall success with a warning; the profile is the authoritative signal.
	assert.False(t, result.IdentityDeleted)
	assert.NotEmpty(t, result.Warning)
	_, err = f.accounts.GetByID(context.Background(), domain.RoleCustomer, "cust-1")
	assert.Error(t, err)

	trainer, err := f.accounts.GetByID(context.Background(), domain.RoleTrainer, "trainer-1")
	require.NoError(t, err)
	assert.Equal(t, 0, trainer.TraineeCount)
	assert.Equal(t, 0, f.plans.occupancy("211"))
}

func TestDeleteAccount_TraineeCountClampsAtZero(t *testing.T) {
	f := newLifecycleFixture(t, "111", "211")

	_, err := f.svc.CreateAccount(context.Background(), trainerInput("trainer-1", "coach@example.com", "111"))
	require.NoError(t, err)
	_, err = f.svc.CreateAccount(context.Background(), CreateAccountInput{
		Role:             domain.RoleCustomer,
		AccountID:        "cust-1",
		Email:            "lia@example.com",
		Name:             "Lia Mor",
		PhoneNumber:      "052-1111111",
		PlanID:           "211",
		MembershipStatus: domain.StatusActive,
		TrainerID:        "trainer-1",
	})
	require.NoError(t, err)

	// Force the counter to zero before deleting, as if a prior reconcile ran.
	f.accounts.accounts[domain.RoleTrainer]["trainer-1"].TraineeCount = 0

	_, err = f.svc.DeleteAccount(context.Background(), domain.RoleCustomer, "cust-1", "lia@example.com", "trainer-1")
	require.NoError(t, err)

	trainer, err := f.accounts.GetByID(context.Background(), domain.RoleTrainer, "trainer-1")
	require.NoError(t, err)
	assert.Equal(t, 0, trainer.TraineeCount)
}

func TestDeleteAccount_NotFound(t *testing.T) {
	f := newLifecycleFixture(t, "111")
	_, err := f.svc.DeleteAccount(context.Background(), domain.RoleTrainer, "missing", "x@example.com", "")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestUploadPlanDocuments_StampsAndTimestampsBothKinds(t *testing.T) {
	f := newLifecycleFixture(t, "111", "211")
	f.freezeClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	_, err := f.svc.CreateAccount(context.Background(), trainerInput("trainer-1", "coach@example.com", "111"))
	require.NoError(t, err)
	_, err = f.svc.CreateAccount(context.Background(), CreateAccountInput{
		Role:             domain.RoleCustomer,
		AccountID:        "cust-1",
		Email:            "lia@example.com",
		Name:             "Lia Mor",
		PhoneNumber:      "052-1111111",
		PlanID:           "211",
		MembershipStatus: domain.StatusActive,
		TrainerID:        "trainer-1",
	})
	require.NoError(t, err)

	later := time.Date(2024, 6, 2, 9, 30, 0, 0, time.UTC)
	f.freezeClock(later)

	account, err := f.svc.UploadPlanDocuments(context.Background(), "cust-1", "Lia Mor", []byte("training pdf"), nil)
	require.NoError(t, err)

	assert.Equal(t, []byte("stamped:training pdf"), f.storage.objects["TrainingPlans/cust-1"])
	assert.Equal(t, "TrainingPlans/cust-1", account.TrainingPlanKey)

	// Both timestamps move even though only the training plan was uploaded.
	assert.Equal(t, later, account.TrainingPlanUpdatedAt)
	assert.Equal(t, later, account.FoodPlanUpdatedAt)
}

func TestUploadPlanDocuments_CustomerNotFound(t *testing.T) {
	f := newLifecycleFixture(t, "111")
	_, err := f.svc.UploadPlanDocuments(context.Background(), "missing", "Nobody", []byte("pdf"), nil)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}

func TestReconcileOccupancy_RestoresCounterFromMembership(t *testing.T) {
	f := newLifecycleFixture(t, "111")

	for _, in := range []CreateAccountInput{
		trainerInput("t-1", "a@example.com", "111"),
		trainerInput("t-2", "b@example.com", "111"),
	} {
		_, err := f.svc.CreateAccount(context.Background(), in)
		require.NoError(t, err)
	}

	// Simulate counter drift from a partial failure.
	f.plans.plans["111"].OccupancyCount = 7

	count, err := f.svc.ReconcileOccupancy(context.Background(), "111")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, 2, f.plans.occupancy("111"))
}

func TestAdjustOccupancy_ZeroDeltaLeavesCounter(t *testing.T) {
	f := newLifecycleFixture(t, "111")

	_, err := f.svc.CreateAccount(context.Background(), trainerInput("t-1", "dana@example.com", "111"))
	require.NoError(t, err)
	before := f.plans.occupancy("111")

	got, err := f.plans.AdjustOccupancy(context.Background(), "111", 0)
	require.NoError(t, err)
	assert.Equal(t, before, got)
	assert.Equal(t, before, f.plans.occupancy("111"))
}

func TestReconcileOccupancy_PlanNotFound(t *testing.T) {
	f := newLifecycleFixture(t)
	_, err := f.svc.ReconcileOccupancy(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestPlanTermTable(t *testing.T) {
	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		planID string
		want   time.Time
	}{
		{"111", time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)},
		{"211", time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)},
		{"241", time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)},
		{"unknown", time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC)},
		{"", time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, planTerm(tc.planID, from), "plan %q", tc.planID)
	}
}
