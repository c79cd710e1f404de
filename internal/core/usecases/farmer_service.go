package usecases

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/core/ports"
)

// FarmerService handles farmer contact records.
type FarmerService struct {
	farmers ports.FarmerRepository
}

// NewFarmerService creates a new FarmerService.
func NewFarmerService(farmers ports.FarmerRepository) *FarmerService {
	return &FarmerService{farmers: farmers}
}

// List returns all farmers.
func (s *FarmerService) List(ctx context.Context) ([]domain.Farmer, error) {
	return s.farmers.List(ctx)
}

// GetByID returns a farmer by ID.
func (s *FarmerService) GetByID(ctx context.Context, id string) (*domain.Farmer, error) {
	return s.farmers.GetByID(ctx, id)
}

// Upsert validates and stores a farmer.
func (s *FarmerService) Upsert(ctx context.Context, f *domain.Farmer) error {
	f.Name = strings.TrimSpace(f.Name)
	if f.Name == "" {
		return fmt.Errorf("%w: farmer name must not be empty", ErrInvalidInput)
	}
	f.Phone = strings.TrimSpace(f.Phone)
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return s.farmers.Upsert(ctx, f)
}
