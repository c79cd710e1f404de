package natsadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/eggtrail/internal/core/domain"
)

// EventAttendanceRecorded is relayed to farm groups after a check-in.
const EventAttendanceRecorded = "attendance_recorded"

// ErrInvalidSubjectToken is returned when an ID cannot be used as a subject token.
var ErrInvalidSubjectToken = errors.New("nats: invalid subject token")

// FarmSubject returns the subject for one kind of farm activity, e.g.
// farm.f1.location. Subscribing to FarmSubject(id, ">") receives all of them.
// The farm ID is not checked; use farmSubject on untrusted input.
func FarmSubject(farmID, kind string) string {
	return "farm." + farmID + "." + kind
}

func farmSubject(farmID, kind string) (string, error) {
	if !domain.ValidID(farmID) {
		return "", fmt.Errorf("%w: farm %q", ErrInvalidSubjectToken, farmID)
	}
	return FarmSubject(farmID, kind), nil
}

// DispatchRequestSubject is the work queue subject for route dispatch requests.
const DispatchRequestSubject = "dispatch.request"

// DispatchRouteSubject returns the subject a planned route is delivered on.
func DispatchRouteSubject(driverID string) string {
	return "dispatch.route." + driverID
}

// Publisher implements ports.EventPublisher and ports.DispatchQueue using NATS JetStream.
// Messages on farm subjects are domain.Event envelopes, so the sync relay can
// forward them to sockets unchanged.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "FARM_ACTIVITY",
			Subjects:  []string{"farm.>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "DISPATCH_REQUESTS",
			Subjects:  []string{DispatchRequestSubject},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "DISPATCH_ROUTES",
			Subjects:  []string{"dispatch.route.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    12 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist; try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

func (p *Publisher) publishEvent(ctx context.Context, farmID, kind, name string, payload any) error {
	subject, err := farmSubject(farmID, kind)
	if err != nil {
		return err
	}
	data, err := domain.EncodeEvent(name, payload)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(subject, data, nats.Context(ctx))
	return err
}

// PublishLocation fans a worker position out to the farm group.
func (p *Publisher) PublishLocation(ctx context.Context, u *domain.LocationUpdate) error {
	return p.publishEvent(ctx, u.FarmID, "location", domain.EventLocationBroadcast, u)
}

// PublishHealth fans a health report out to the farm group. Critical reports
// are additionally raised on the farm's critical subject.
func (p *Publisher) PublishHealth(ctx context.Context, u *domain.HealthUpdate) error {
	if err := p.publishEvent(ctx, u.FarmID, "health", domain.EventHealthAlert, u); err != nil {
		return err
	}
	if u.Status == domain.HealthCritical {
		return p.publishEvent(ctx, u.FarmID, "critical", domain.EventCriticalAlert, u)
	}
	return nil
}

// PublishMembership announces a worker joining or leaving a farm group.
func (p *Publisher) PublishMembership(ctx context.Context, event string, m *domain.Membership) error {
	return p.publishEvent(ctx, m.FarmID, "members", event, m)
}

// PublishAttendance announces a check-in to the matched farm's group.
func (p *Publisher) PublishAttendance(ctx context.Context, a *domain.Attendance) error {
	return p.publishEvent(ctx, a.FarmID, "attendance", EventAttendanceRecorded, a)
}

// PublishRoute delivers a planned route to a driver.
func (p *Publisher) PublishRoute(ctx context.Context, driverID string, route *domain.RouteResult) error {
	if !domain.ValidID(driverID) {
		return fmt.Errorf("%w: driver %q", ErrInvalidSubjectToken, driverID)
	}
	data, err := json.Marshal(route)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(DispatchRouteSubject(driverID), data, nats.Context(ctx))
	return err
}

// RequestDispatch queues a route dispatch request.
func (p *Publisher) RequestDispatch(ctx context.Context, req *domain.DispatchRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(DispatchRequestSubject, data, nats.MsgId(req.ID), nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
