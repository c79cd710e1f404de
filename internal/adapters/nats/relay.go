package natsadapter

import (
	"github.com/nats-io/nats.go"
)

// Relay subscribes sync sockets to farm subjects on a plain NATS connection.
type Relay struct {
	conn *nats.Conn
}

// NewRelay wraps an existing connection.
func NewRelay(conn *nats.Conn) *Relay {
	return &Relay{conn: conn}
}

// SubscribeFarm delivers every event published for a farm to fn.
func (r *Relay) SubscribeFarm(farmID string, fn func(data []byte)) (func(), error) {
	subject, err := farmSubject(farmID, ">")
	if err != nil {
		return nil, err
	}
	sub, err := r.conn.Subscribe(subject, func(msg *nats.Msg) {
		fn(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Connected reports whether the underlying connection is up.
func (r *Relay) Connected() bool {
	return r.conn.IsConnected()
}
