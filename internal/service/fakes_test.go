package service

import (
	"context"
	"fitpanel/member-app/internal/domain"
	"fitpanel/member-app/internal/identity"
	"fitpanel/member-app/internal/repository"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// In-memory fakes for the store, catalog, identity provider, blob storage and
// annotator. They mirror the semantics the mongo implementations provide,
// including the clamp-at-zero counter behavior, and allow per-call failure
// injection for the partial-failure paths.

// --- account repository ---

type memAccountRepo struct {
	accounts map[domain.Role]map[string]*domain.Account

	failAdjustTrainee error
	failReplace       error
}

func newMemAccountRepo() *memAccountRepo {
	return &memAccountRepo{
		accounts: map[domain.Role]map[string]*domain.Account{
			domain.RoleTrainer:  {},
			domain.RoleCustomer: {},
		},
	}
}

func (m *memAccountRepo) Create(_ context.Context, account *domain.Account) error {
	ns := m.accounts[account.Role]
	if _, ok := ns[account.ID]; ok {
		return repository.ErrDuplicateKey
	}
	cp := *account
	ns[account.ID] = &cp
	return nil
}

func (m *memAccountRepo) GetByID(_ context.Context, role domain.Role, id string) (*domain.Account, error) {
	if a, ok := m.accounts[role][id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memAccountRepo) GetByEmail(_ context.Context, role domain.Role, email string) (*domain.Account, error) {
	for _, a := range m.accounts[role] {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memAccountRepo) List(_ context.Context, role domain.Role) ([]domain.Account, error) {
	out := []domain.Account{}
	for _, a := range m.accounts[role] {
		out = append(out, *a)
	}
	return out, nil
}

func (m *memAccountRepo) ListByTrainer(_ context.Context, trainerID string) ([]domain.Account, error) {
	out := []domain.Account{}
	for _, a := range m.accounts[domain.RoleCustomer] {
		if a.TrainerID == trainerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memAccountRepo) UpdateFields(_ context.Context, role domain.Role, id string, update repository.ProfileUpdate) error {
	a, ok := m.accounts[role][id]
	if !ok {
		return repository.ErrNotFound
	}
	if update.Name != nil {
		a.Name = *update.Name
	}
	if update.PhoneNumber != nil {
		a.PhoneNumber = *update.PhoneNumber
	}
	if update.Email != nil {
		a.Email = *update.Email
	}
	if update.PlanID != nil {
		a.PlanID = *update.PlanID
	}
	if update.ExpirationAt != nil {
		a.ExpirationAt = *update.ExpirationAt
	}
	if update.ImageKey != nil {
		a.ImageKey = *update.ImageKey
	}
	if update.Description != nil {
		a.Description = *update.Description
	}
	if update.Location != nil {
		a.Location = *update.Location
	}
	if update.FirstLogin != nil {
		a.FirstLogin = *update.FirstLogin
	}
	return nil
}

func (m *memAccountRepo) SetMembershipStatus(_ context.Context, role domain.Role, id, status string) error {
	a, ok := m.accounts[role][id]
	if !ok {
		return repository.ErrNotFound
	}
	a.MembershipStatus = status
	return nil
}

func (m *memAccountRepo) Delete(_ context.Context, role domain.Role, id string) error {
	if _, ok := m.accounts[role][id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.accounts[role], id)
	return nil
}

func (m *memAccountRepo) CountByPlan(_ context.Context, role domain.Role, planID string) (int64, error) {
	var n int64
	for _, a := range m.accounts[role] {
		if a.PlanID == planID {
			n++
		}
	}
	return n, nil
}

func (m *memAccountRepo) AdjustTraineeCount(_ context.Context, trainerID string, delta int) (int, error) {
	if m.failAdjustTrainee != nil {
		return 0, m.failAdjustTrainee
	}
	a, ok := m.accounts[domain.RoleTrainer][trainerID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	a.TraineeCount += delta
	if a.TraineeCount < 0 {
		a.TraineeCount = 0
	}
	return a.TraineeCount, nil
}

func (m *memAccountRepo) GetMeasurements(_ context.Context, customerID string) ([]domain.MeasurementEntry, error) {
	a, ok := m.accounts[domain.RoleCustomer][customerID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := make([]domain.MeasurementEntry, len(a.Measurements))
	copy(out, a.Measurements)
	return out, nil
}

func (m *memAccountRepo) ReplaceMeasurements(_ context.Context, customerID string, entries []domain.MeasurementEntry) error {
	if m.failReplace != nil {
		return m.failReplace
	}
	a, ok := m.accounts[domain.RoleCustomer][customerID]
	if !ok {
		return repository.ErrNotFound
	}
	a.Measurements = entries
	return nil
}

func (m *memAccountRepo) SetPlanDocument(_ context.Context, customerID string, kind domain.DocumentKind, objectKey string, updatedAt time.Time) error {
	a, ok := m.accounts[domain.RoleCustomer][customerID]
	if !ok {
		return repository.ErrNotFound
	}
	switch kind {
	case domain.DocumentTrainingPlan:
		a.TrainingPlanKey = objectKey
	case domain.DocumentFoodPlan:
		a.FoodPlanKey = objectKey
	}
	a.TrainingPlanUpdatedAt = updatedAt
	a.FoodPlanUpdatedAt = updatedAt
	return nil
}

// --- plan repository ---

type memPlanRepo struct {
	plans      map[string]*domain.Plan
	failAdjust error
}

func newMemPlanRepo(planIDs ...string) *memPlanRepo {
	r := &memPlanRepo{plans: map[string]*domain.Plan{}}
	for _, id := range planIDs {
		r.plans[id] = &domain.Plan{ID: id}
	}
	return r
}

func (m *memPlanRepo) GetByID(_ context.Context, planID string) (*domain.Plan, error) {
	if p, ok := m.plans[planID]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memPlanRepo) List(_ context.Context) ([]domain.Plan, error) {
	out := []domain.Plan{}
	for _, p := range m.plans {
		out = append(out, *p)
	}
	return out, nil
}

func (m *memPlanRepo) AdjustOccupancy(_ context.Context, planID string, delta int) (int, error) {
	if m.failAdjust != nil {
		return 0, m.failAdjust
	}
	p, ok := m.plans[planID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	p.OccupancyCount += delta
	if p.OccupancyCount < 0 {
		p.OccupancyCount = 0
	}
	return p.OccupancyCount, nil
}

func (m *memPlanRepo) SetOccupancy(_ context.Context, planID string, count int) error {
	p, ok := m.plans[planID]
	if !ok {
		return repository.ErrNotFound
	}
	if count < 0 {
		count = 0
	}
	p.OccupancyCount = count
	return nil
}

func (m *memPlanRepo) occupancy(planID string) int {
	return m.plans[planID].OccupancyCount
}

// --- identity provider ---

type memIdentity struct {
	creds map[string]string // email -> secret
	uids  map[string]string // email -> uid

	failCreate error
	failLookup error
	failDelete error
}

func newMemIdentity() *memIdentity {
	return &memIdentity{
		creds: map[string]string{},
		uids:  map[string]string{},
	}
}

func (m *memIdentity) CreateCredential(_ context.Context, email, secret string) (string, error) {
	if m.failCreate != nil {
		return "", m.failCreate
	}
	if _, ok := m.creds[email]; ok {
		return "", identity.ErrEmailAlreadyInUse
	}
	uid := primitive.NewObjectID().Hex()
	m.creds[email] = secret
	m.uids[email] = uid
	return uid, nil
}

func (m *memIdentity) LookupByEmail(_ context.Context, email string) (*identity.Credential, error) {
	if m.failLookup != nil {
		return nil, m.failLookup
	}
	uid, ok := m.uids[email]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return &identity.Credential{UID: uid, Email: email}, nil
}

func (m *memIdentity) VerifySecret(_ context.Context, email, secret string) (*identity.Credential, error) {
	stored, ok := m.creds[email]
	if !ok || stored != secret {
		return nil, identity.ErrBadCredentials
	}
	return &identity.Credential{UID: m.uids[email], Email: email}, nil
}

func (m *memIdentity) UpdateSecret(_ context.Context, uid, newSecret string) error {
	for email, id := range m.uids {
		if id == uid {
			m.creds[email] = newSecret
			return nil
		}
	}
	return identity.ErrNotFound
}

func (m *memIdentity) DeleteCredential(_ context.Context, uid string) error {
	if m.failDelete != nil {
		return m.failDelete
	}
	for email, id := range m.uids {
		if id == uid {
			delete(m.creds, email)
			delete(m.uids, email)
			return nil
		}
	}
	return identity.ErrNotFound
}

func (m *memIdentity) has(email string) bool {
	_, ok := m.creds[email]
	return ok
}

// --- blob storage ---

type memStorage struct {
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Upload(_ context.Context, objectKey string, data []byte, _ string) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[objectKey] = cp
	return nil
}

func (m *memStorage) GeneratePresignedDownloadURL(_ context.Context, objectKey string, _ time.Duration) (string, error) {
	return "https://storage.test/" + objectKey, nil
}

func (m *memStorage) DeleteObject(_ context.Context, objectKey string) error {
	delete(m.objects, objectKey)
	return nil
}

// --- annotator ---

type memAnnotator struct{}

func (memAnnotator) Annotate(doc []byte, _ string, _ time.Time) ([]byte, error) {
	return append([]byte("stamped:"), doc...), nil
}
