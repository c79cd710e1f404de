package realtime

import "github.com/samirrijal/eggtrail/internal/core/domain"

// Observer receives state transitions, inbound events and errors from a Channel.
// Callbacks run on the Channel's goroutines and must not block for long.
type Observer interface {
	OnState(State)
	OnEvent(domain.Event)
	OnError(error)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	State func(State)
	Event func(domain.Event)
	Err   func(error)
}

func (o ObserverFuncs) OnState(s State) {
	if o.State != nil {
		o.State(s)
	}
}

func (o ObserverFuncs) OnEvent(e domain.Event) {
	if o.Event != nil {
		o.Event(e)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Err != nil {
		o.Err(err)
	}
}

// inboundEvents are the server events surfaced to observers.
var inboundEvents = map[string]bool{
	domain.EventLocationBroadcast: true,
	domain.EventHealthAlert:       true,
	domain.EventWorkerJoined:      true,
	domain.EventWorkerLeft:        true,
	domain.EventCriticalAlert:     true,
}
