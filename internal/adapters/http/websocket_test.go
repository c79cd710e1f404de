package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/eggtrail/internal/adapters/http"
	"github.com/samirrijal/eggtrail/internal/core/domain"
	"github.com/samirrijal/eggtrail/internal/core/usecases"
	"github.com/samirrijal/eggtrail/internal/realtime"
)

// memBroker is an in-process FarmBroker and EventPublisher.
type memBroker struct {
	mu     sync.Mutex
	subs   map[string]map[int]func([]byte)
	nextID int
}

func newMemBroker() *memBroker {
	return &memBroker{subs: make(map[string]map[int]func([]byte))}
}

func (b *memBroker) SubscribeFarm(farmID string, fn func([]byte)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[farmID] == nil {
		b.subs[farmID] = make(map[int]func([]byte))
	}
	id := b.nextID
	b.nextID++
	b.subs[farmID][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[farmID], id)
	}, nil
}

func (b *memBroker) Connected() bool { return true }

func (b *memBroker) subscribers(farmID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[farmID])
}

func (b *memBroker) fanOut(farmID, event string, payload any) error {
	data, err := domain.EncodeEvent(event, payload)
	if err != nil {
		return err
	}
	b.mu.Lock()
	fns := make([]func([]byte), 0, len(b.subs[farmID]))
	for _, fn := range b.subs[farmID] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(data)
	}
	return nil
}

func (b *memBroker) PublishLocation(ctx context.Context, u *domain.LocationUpdate) error {
	return b.fanOut(u.FarmID, domain.EventLocationBroadcast, u)
}

func (b *memBroker) PublishHealth(ctx context.Context, u *domain.HealthUpdate) error {
	if err := b.fanOut(u.FarmID, domain.EventHealthAlert, u); err != nil {
		return err
	}
	if u.Status == domain.HealthCritical {
		return b.fanOut(u.FarmID, domain.EventCriticalAlert, u)
	}
	return nil
}

func (b *memBroker) PublishMembership(ctx context.Context, event string, m *domain.Membership) error {
	return b.fanOut(m.FarmID, event, m)
}

func (b *memBroker) PublishAttendance(ctx context.Context, a *domain.Attendance) error { return nil }

func (b *memBroker) PublishRoute(ctx context.Context, driverID string, r *domain.RouteResult) error {
	return nil
}

// startSyncServer serves the full router on a loopback port and returns the
// socket URL.
func startSyncServer(t *testing.T, deps *handler.Dependencies) string {
	t.Helper()
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "ws://" + ln.Addr().String() + "/ws"
}

// syncFarms are the farm groups the sync tests join.
func syncFarms() []domain.Farm {
	return []domain.Farm{
		{ID: "farm-1", FarmerID: "u1", Name: "Hilltop", Location: at(12.97, 77.59)},
		{ID: "farm-2", FarmerID: "u2", Name: "Riverside", Location: at(12.99, 77.61)},
	}
}

func connectWorker(t *testing.T, url, farmID, workerID string) (*realtime.Channel, <-chan domain.Event) {
	t.Helper()
	events := make(chan domain.Event, 32)
	ch := realtime.NewChannel(realtime.Options{
		URL:         url,
		WorkerName:  workerID,
		MaxAttempts: 1,
		DialTimeout: 2 * time.Second,
	})
	ch.Subscribe(realtime.ObserverFuncs{Event: func(e domain.Event) { events <- e }})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ch.Connect(ctx, farmID, workerID); err != nil {
		t.Fatalf("connect %s: %v", workerID, err)
	}
	t.Cleanup(ch.Disconnect)
	return ch, events
}

func waitEvent(t *testing.T, events <-chan domain.Event, name string) domain.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Name == name {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", name)
			return domain.Event{}
		}
	}
}

func noEvent(t *testing.T, events <-chan domain.Event, name string, wait time.Duration) {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case e := <-events:
			if e.Name == name {
				t.Fatalf("unexpected %s: %s", name, e.Payload)
			}
		case <-deadline:
			return
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSync_RelaysWithinFarm(t *testing.T) {
	broker := newMemBroker()
	positions := &mockLocationRepo{}
	url := startSyncServer(t, makeDeps(withFarms(syncFarms()), func(d *handler.Dependencies) {
		d.Broker = broker
		d.Publisher = broker
		d.Locations = usecases.NewLocationService(positions, nil)
	}))

	chA, eventsA := connectWorker(t, url, "farm-1", "w-a")
	waitFor(t, func() bool { return broker.subscribers("farm-1") == 1 })

	chB, eventsB := connectWorker(t, url, "farm-1", "w-b")
	joined := waitEvent(t, eventsA, domain.EventWorkerJoined)
	var m domain.Membership
	json.Unmarshal(joined.Payload, &m)
	if m.WorkerID != "w-b" {
		t.Fatalf("expected w-b to join, got %+v", m)
	}

	// Location goes to the other worker only.
	if err := chA.SendLocation(12.97, 77.59, time.Now()); err != nil {
		t.Fatalf("send location: %v", err)
	}
	e := waitEvent(t, eventsB, domain.EventLocationBroadcast)
	var u domain.LocationUpdate
	json.Unmarshal(e.Payload, &u)
	if u.WorkerID != "w-a" || u.FarmID != "farm-1" || u.Lat != 12.97 {
		t.Errorf("unexpected broadcast: %+v", u)
	}
	noEvent(t, eventsA, domain.EventLocationBroadcast, 100*time.Millisecond)

	positions.mu.Lock()
	recorded := len(positions.inserted)
	positions.mu.Unlock()
	if recorded != 1 {
		t.Errorf("expected 1 recorded position, got %d", recorded)
	}

	// A critical report alerts everyone, the reporter included.
	if err := chB.SendHealth(domain.HealthCritical, "mortality spike"); err != nil {
		t.Fatalf("send health: %v", err)
	}
	waitEvent(t, eventsA, domain.EventHealthAlert)
	waitEvent(t, eventsA, domain.EventCriticalAlert)
	waitEvent(t, eventsB, domain.EventCriticalAlert)

	// Disconnecting announces the departure.
	chB.Disconnect()
	left := waitEvent(t, eventsA, domain.EventWorkerLeft)
	json.Unmarshal(left.Payload, &m)
	if m.WorkerID != "w-b" {
		t.Errorf("expected w-b to leave, got %+v", m)
	}
	waitFor(t, func() bool { return broker.subscribers("farm-1") == 1 })
}

func TestSync_FarmsAreIsolated(t *testing.T) {
	broker := newMemBroker()
	url := startSyncServer(t, makeDeps(withFarms(syncFarms()), func(d *handler.Dependencies) {
		d.Broker = broker
		d.Publisher = broker
	}))

	chA, _ := connectWorker(t, url, "farm-1", "w-a")
	_, eventsB := connectWorker(t, url, "farm-2", "w-b")
	waitFor(t, func() bool { return broker.subscribers("farm-1") == 1 && broker.subscribers("farm-2") == 1 })

	if err := chA.SendHealth("ok", ""); err != nil {
		t.Fatal(err)
	}
	noEvent(t, eventsB, domain.EventHealthAlert, 200*time.Millisecond)
}

func TestSync_LeaveFarm(t *testing.T) {
	broker := newMemBroker()
	url := startSyncServer(t, makeDeps(withFarms(syncFarms()), func(d *handler.Dependencies) {
		d.Broker = broker
		d.Publisher = broker
	}))

	_, eventsA := connectWorker(t, url, "farm-1", "w-a")
	waitFor(t, func() bool { return broker.subscribers("farm-1") == 1 })
	chB, _ := connectWorker(t, url, "farm-1", "w-b")
	waitEvent(t, eventsA, domain.EventWorkerJoined)

	if err := chB.LeaveFarm("farm-1", "w-b"); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, eventsA, domain.EventWorkerLeft)
	waitFor(t, func() bool { return broker.subscribers("farm-1") == 1 })

	// The socket stays open; sends after leaving are rejected by the server
	// and never reach the farm.
	if err := chB.SendLocation(1, 1, time.Now()); err != nil {
		t.Fatal(err)
	}
	noEvent(t, eventsA, domain.EventLocationBroadcast, 200*time.Millisecond)
}

// dialRaw opens a plain socket so tests can see the server's error replies,
// which the sync channel does not surface.
func dialRaw(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendRaw(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := domain.EncodeEvent(event, payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

// readError waits for the next error reply and returns its message.
func readError(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for error reply: %v", err)
		}
		var e domain.Event
		if err := json.Unmarshal(data, &e); err != nil || e.Name != handler.EventError {
			continue
		}
		var body struct {
			Message string `json:"message"`
		}
		json.Unmarshal(e.Payload, &body)
		return body.Message
	}
}

func TestSync_RejectsWildcardJoin(t *testing.T) {
	broker := newMemBroker()
	url := startSyncServer(t, makeDeps(withFarms(syncFarms()), func(d *handler.Dependencies) {
		d.Broker = broker
		d.Publisher = broker
	}))

	chA, _ := connectWorker(t, url, "farm-1", "w-a")
	waitFor(t, func() bool { return broker.subscribers("farm-1") == 1 })

	conn := dialRaw(t, url)
	for _, farmID := range []string{"*", ">", "farm-1.>", "farm 1"} {
		sendRaw(t, conn, domain.EventJoinFarm, domain.Membership{FarmID: farmID, WorkerID: "w-x"})
		if msg := readError(t, conn); msg != "invalid farm_id" {
			t.Errorf("join %q: expected invalid farm_id, got %q", farmID, msg)
		}
		if n := broker.subscribers(farmID); n != 0 {
			t.Errorf("join %q: expected no subscription, got %d", farmID, n)
		}
	}

	sendRaw(t, conn, domain.EventJoinFarm, domain.Membership{FarmID: "ghost", WorkerID: "w-x"})
	if msg := readError(t, conn); msg != "unknown farm: ghost" {
		t.Errorf("expected unknown farm, got %q", msg)
	}

	// The refused socket is in no group, so farm-1 traffic never reaches it.
	if err := chA.SendHealth("ok", ""); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Errorf("refused socket received %s", data)
	}
}

func TestSync_LocationFailureIsNotLeaked(t *testing.T) {
	broker := newMemBroker()
	positions := &mockLocationRepo{err: errors.New(`ERROR: insert or update on table "worker_positions" violates foreign key constraint`)}
	url := startSyncServer(t, makeDeps(withFarms(syncFarms()), func(d *handler.Dependencies) {
		d.Broker = broker
		d.Publisher = broker
		d.Locations = usecases.NewLocationService(positions, nil)
	}))

	conn := dialRaw(t, url)
	sendRaw(t, conn, domain.EventJoinFarm, domain.Membership{FarmID: "farm-1", WorkerID: "w-x"})
	waitFor(t, func() bool { return broker.subscribers("farm-1") == 1 })

	sendRaw(t, conn, domain.EventLocationUpdate, domain.LocationUpdate{Lat: 12.97, Lon: 77.59})
	msg := readError(t, conn)
	if msg != "location not recorded" {
		t.Errorf("expected a generic message, got %q", msg)
	}
	if strings.Contains(msg, "worker_positions") {
		t.Errorf("repository error leaked to client: %q", msg)
	}

	sendRaw(t, conn, domain.EventLocationUpdate, domain.LocationUpdate{Lat: 95, Lon: 0})
	if msg := readError(t, conn); !strings.Contains(msg, "coordinates out of range") {
		t.Errorf("expected validation message, got %q", msg)
	}
}
