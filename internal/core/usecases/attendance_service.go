package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/core/ports"
	"github.com/samirrijal/eggtrail/internal/pkg/metrics"
)

// AttendanceService records worker check-ins against the nearest farm.
type AttendanceService struct {
	attendance ports.AttendanceRepository
	farms      *FarmService
	publisher  ports.EventPublisher
	now        func() time.Time
}

// NewAttendanceService creates a new AttendanceService. publisher may be nil.
func NewAttendanceService(attendance ports.AttendanceRepository, farms *FarmService, publisher ports.EventPublisher) *AttendanceService {
	return &AttendanceService{attendance: attendance, farms: farms, publisher: publisher, now: time.Now}
}

// CheckIn reconciles the worker's position to a farm and stores the check-in.
func (s *AttendanceService) CheckIn(ctx context.Context, workerID, workerName string, lat, lon float64) (*domain.Attendance, error) {
	if workerID == "" {
		return nil, fmt.Errorf("%w: worker id must not be empty", ErrInvalidInput)
	}

	match, err := s.farms.Reconcile(ctx, lat, lon)
	if err != nil {
		return nil, fmt.Errorf("reconcile check-in: %w", err)
	}

	a := &domain.Attendance{
		ID:          uuid.NewString(),
		WorkerID:    workerID,
		WorkerName:  workerName,
		FarmID:      match.Match.ID,
		FarmName:    match.Match.Name,
		Location:    domain.GeoPoint{Lat: lat, Lon: lon},
		DistanceKm:  match.DistanceKm,
		Confidence:  match.Confidence,
		CheckedInAt: s.now().UTC(),
	}

	if err := s.attendance.Insert(ctx, a); err != nil {
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	metrics.CheckIns.WithLabelValues(strconv.FormatFloat(a.Confidence, 'f', 2, 64)).Inc()

	// Best-effort; the check-in is already stored.
	if s.publisher != nil {
		if err := s.publisher.PublishAttendance(ctx, a); err != nil {
			slog.WarnContext(ctx, "publish attendance failed", "attendance_id", a.ID, "error", err)
		}
	}

	return a, nil
}

// ListByWorker returns a worker's most recent check-ins.
func (s *AttendanceService) ListByWorker(ctx context.Context, workerID string, limit int) ([]domain.Attendance, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.attendance.ListByWorker(ctx, workerID, limit)
}
