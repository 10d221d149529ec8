package service

import (
	"context"
	"errors"
	"fitpanel/member-app/internal/domain"
	"fitpanel/member-app/internal/repository"
	"fitpanel/member-app/internal/storage"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
)

// --- Error Definitions ---
var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrIndexOutOfRange  = errors.New("measurement index out of range")
)

// MeasurementService manages the append-only measurement history embedded in
// a customer profile. Appends and deletes are whole-sequence
// read-modify-writes, not atomic appends: two concurrent appends to the same
// customer can race and one may be lost. That boundary is accepted for this
// data; it is not a correctness-critical counter.
type MeasurementService interface {
	Append(ctx context.Context, customerID string, fields map[string]float64, images [][]byte) ([]domain.MeasurementEntry, error)
	DeleteAt(ctx context.Context, customerID string, index int) ([]domain.MeasurementEntry, error)
	List(ctx context.Context, customerID string) ([]domain.MeasurementEntry, error)
}

// measurementService implements the MeasurementService interface.
type measurementService struct {
	accountRepo repository.AccountRepository
	fileStorage storage.FileStorage
	now         func() time.Time
}

// NewMeasurementService creates a new instance of measurementService.
func NewMeasurementService(accountRepo repository.AccountRepository, fileStorage storage.FileStorage) MeasurementService {
	return &measurementService{
		accountRepo: accountRepo,
		fileStorage: fileStorage,
		now:         time.Now,
	}
}

// Append stores the supplied images, builds an entry with recordedAt = now,
// and appends it to the end of the customer's history.
func (s *measurementService) Append(ctx context.Context, customerID string, fields map[string]float64, images [][]byte) ([]domain.MeasurementEntry, error) {
	entries, err := s.accountRepo.GetMeasurements(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	entry := domain.MeasurementEntry{
		Fields:     fields,
		RecordedAt: s.now().UTC(),
	}

	for _, img := range images {
		key := path.Join("customers", customerID, "images", uuid.NewString())
		if err := s.fileStorage.Upload(ctx, key, img, "image/jpeg"); err != nil {
			return nil, fmt.Errorf("storing measurement image: %w", err)
		}
		entry.ImageKeys = append(entry.ImageKeys, key)
	}

	entries = append(entries, entry)
	if err := s.accountRepo.ReplaceMeasurements(ctx, customerID, entries); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return entries, nil
}

// DeleteAt removes the entry at the given position. Later entries shift down
// by one, so callers must not hold on to indices across a delete. An
// out-of-range index leaves the sequence unchanged.
func (s *measurementService) DeleteAt(ctx context.Context, customerID string, index int) ([]domain.MeasurementEntry, error) {
	entries, err := s.accountRepo.GetMeasurements(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}

	if index < 0 || index >= len(entries) {
		return nil, ErrIndexOutOfRange
	}

	updated := make([]domain.MeasurementEntry, 0, len(entries)-1)
	updated = append(updated, entries[:index]...)
	updated = append(updated, entries[index+1:]...)

	if err := s.accountRepo.ReplaceMeasurements(ctx, customerID, updated); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return updated, nil
}

// List returns the full ordered history, possibly empty.
func (s *measurementService) List(ctx context.Context, customerID string) ([]domain.MeasurementEntry, error) {
	entries, err := s.accountRepo.GetMeasurements(ctx, customerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return entries, nil
}
