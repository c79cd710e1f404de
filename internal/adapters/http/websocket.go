package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/core/usecases"
	"github.com/samirrijal/eggtrail/internal/pkg/metrics"
)

// EventError is sent to a socket when one of its messages is rejected.
const EventError = "error"

// syncSession is one field worker's socket. A session belongs to at most one
// farm group at a time.
type syncSession struct {
	conn *websocket.Conn
	deps *Dependencies
	log  *slog.Logger

	writeMu sync.Mutex

	mu          sync.Mutex
	farmID      string
	worker      domain.Membership
	unsubscribe func()
}

// SyncHandler returns a handler that serves the field sync protocol.
// Clients send {"event": ..., "data": ...} envelopes: join_farm, leave_farm,
// location_update and health_update. Events for the joined farm are relayed
// back through the broker as location_broadcast, health_alert,
// critical_alert, worker_joined and worker_left.
func SyncHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		s := &syncSession{
			conn: c,
			deps: deps,
			log:  slog.Default().With("remote", c.RemoteAddr().String()),
		}
		s.log.Info("sync client connected")

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					s.writeMu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					s.writeMu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}
			var e domain.Event
			if err := json.Unmarshal(msg, &e); err != nil {
				s.sendError("invalid JSON")
				continue
			}
			s.handle(e)
		}

		close(done)
		// A dropped socket leaves its farm group.
		s.leave()
		s.log.Info("sync client disconnected")
	}
}

func (s *syncSession) write(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *syncSession) sendError(msg string) {
	data, err := domain.EncodeEvent(EventError, map[string]string{"message": msg})
	if err == nil {
		_ = s.write(data)
	}
}

func (s *syncSession) handle(e domain.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch e.Name {
	case domain.EventJoinFarm:
		var m domain.Membership
		if err := json.Unmarshal(e.Payload, &m); err != nil || m.FarmID == "" || m.WorkerID == "" {
			s.sendError("join_farm requires farm_id and worker_id")
			return
		}
		s.join(ctx, m)

	case domain.EventLeaveFarm:
		s.leave()

	case domain.EventLocationUpdate:
		var u domain.LocationUpdate
		if err := json.Unmarshal(e.Payload, &u); err != nil {
			s.sendError("invalid location_update")
			return
		}
		if !s.stamp(&u.FarmID, &u.WorkerID) {
			s.sendError("join a farm first")
			return
		}
		if s.deps.Locations != nil {
			if err := s.deps.Locations.Record(ctx, &u); err != nil {
				if errors.Is(err, usecases.ErrInvalidInput) {
					s.sendError(err.Error())
					return
				}
				s.log.Warn("location record failed", "farm_id", u.FarmID, "worker_id", u.WorkerID, "error", err)
				s.sendError("location not recorded")
				return
			}
		}
		s.relay(e.Name, func() error { return s.deps.Publisher.PublishLocation(ctx, &u) })

	case domain.EventHealthUpdate:
		var u domain.HealthUpdate
		if err := json.Unmarshal(e.Payload, &u); err != nil || u.Status == "" {
			s.sendError("health_update requires a status")
			return
		}
		if !s.stamp(&u.FarmID, &u.WorkerID) {
			s.sendError("join a farm first")
			return
		}
		if u.Timestamp.IsZero() {
			u.Timestamp = time.Now().UTC()
		}
		s.relay(e.Name, func() error { return s.deps.Publisher.PublishHealth(ctx, &u) })

	default:
		s.sendError("unknown event: " + e.Name)
	}
}

// stamp fills farm and worker IDs from the session. It reports false when
// the session has not joined a farm.
func (s *syncSession) stamp(farmID, workerID *string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.farmID == "" {
		return false
	}
	*farmID = s.farmID
	*workerID = s.worker.WorkerID
	return true
}

func (s *syncSession) relay(event string, publish func() error) {
	if s.deps.Publisher == nil {
		s.sendError("sync relay not available")
		return
	}
	if err := publish(); err != nil {
		s.log.Warn("sync publish failed", "event", event, "error", err)
		s.sendError("publish failed")
		return
	}
	metrics.SyncEventsRelayed.WithLabelValues(event).Inc()
}

func (s *syncSession) join(ctx context.Context, m domain.Membership) {
	if s.deps.Broker == nil || s.deps.Publisher == nil {
		s.sendError("sync relay not available")
		return
	}

	if !domain.ValidID(m.FarmID) {
		s.sendError("invalid farm_id")
		return
	}
	if _, err := s.deps.Farms.GetByID(ctx, m.FarmID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.sendError("unknown farm: " + m.FarmID)
			return
		}
		s.log.Warn("farm lookup failed", "farm_id", m.FarmID, "error", err)
		s.sendError("farm lookup failed")
		return
	}

	s.mu.Lock()
	same := s.farmID == m.FarmID && s.worker.WorkerID == m.WorkerID
	s.mu.Unlock()
	if same {
		return
	}
	s.leave()

	unsubscribe, err := s.deps.Broker.SubscribeFarm(m.FarmID, func(data []byte) {
		if s.ownEvent(data) {
			return
		}
		_ = s.write(data)
	})
	if err != nil {
		s.log.Warn("farm subscribe failed", "farm_id", m.FarmID, "error", err)
		s.sendError("subscribe failed")
		return
	}

	s.mu.Lock()
	s.farmID = m.FarmID
	s.worker = m
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	s.log.Info("worker joined farm", "farm_id", m.FarmID, "worker_id", m.WorkerID)
	s.relay(domain.EventWorkerJoined, func() error {
		return s.deps.Publisher.PublishMembership(ctx, domain.EventWorkerJoined, &m)
	})
}

// leave drops the current farm group, if any, and announces it.
func (s *syncSession) leave() {
	s.mu.Lock()
	farmID, m, unsubscribe := s.farmID, s.worker, s.unsubscribe
	s.farmID, s.worker, s.unsubscribe = "", domain.Membership{}, nil
	s.mu.Unlock()

	if farmID == "" {
		return
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	s.log.Info("worker left farm", "farm_id", farmID, "worker_id", m.WorkerID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.relay(domain.EventWorkerLeft, func() error {
		return s.deps.Publisher.PublishMembership(ctx, domain.EventWorkerLeft, &m)
	})
}

// ownEvent reports whether a relayed event was produced by this session's
// worker. Critical alerts are delivered to everyone, the sender included.
func (s *syncSession) ownEvent(data []byte) bool {
	var e struct {
		Name    string `json:"event"`
		Payload struct {
			WorkerID string `json:"worker_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return false
	}
	if e.Name == domain.EventCriticalAlert {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return e.Payload.WorkerID != "" && e.Payload.WorkerID == s.worker.WorkerID
}
