package usecases_test

import (
	"context"
	"errors"
	"testing"

	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/core/usecases"
)

func TestLocationService_Record(t *testing.T) {
	repo := &mockLocationRepo{}
	cache := newMemCache()
	svc := usecases.NewLocationService(repo, cache)

	u := &domain.LocationUpdate{FarmID: "f1", WorkerID: "w1", Lat: 12.9, Lon: 77.5}
	if err := svc.Record(context.Background(), u); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Timestamp.IsZero() {
		t.Error("expected timestamp to be filled in")
	}
	if len(repo.inserted) != 1 {
		t.Fatalf("expected 1 stored position, got %d", len(repo.inserted))
	}

	latest, err := svc.Latest(context.Background(), "w1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if latest.Location.Lat != 12.9 || latest.FarmID != "f1" {
		t.Errorf("unexpected latest position: %+v", latest)
	}

	byFarm, _ := svc.ByFarm(context.Background(), "f1")
	if len(byFarm) != 1 {
		t.Errorf("expected 1 position at farm, got %d", len(byFarm))
	}
}

func TestLocationService_Record_Validation(t *testing.T) {
	svc := usecases.NewLocationService(&mockLocationRepo{}, nil)

	tests := []struct {
		name string
		u    domain.LocationUpdate
	}{
		{"missing worker", domain.LocationUpdate{Lat: 1, Lon: 1}},
		{"latitude out of range", domain.LocationUpdate{WorkerID: "w", Lat: 91, Lon: 0}},
		{"longitude out of range", domain.LocationUpdate{WorkerID: "w", Lat: 0, Lon: 181}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.Record(context.Background(), &tt.u); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLocationService_Latest_NoCache(t *testing.T) {
	svc := usecases.NewLocationService(&mockLocationRepo{}, nil)
	if _, err := svc.Latest(context.Background(), "w1"); err == nil {
		t.Error("expected error without cache")
	}
}

func TestLocationService_Record_InvalidInputIsTyped(t *testing.T) {
	svc := usecases.NewLocationService(&mockLocationRepo{}, nil)
	err := svc.Record(context.Background(), &domain.LocationUpdate{WorkerID: "w1", Lat: 91})
	if !errors.Is(err, usecases.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestLocationService_Latest_Miss(t *testing.T) {
	svc := usecases.NewLocationService(&mockLocationRepo{}, newMemCache())
	if _, err := svc.Latest(context.Background(), "nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
