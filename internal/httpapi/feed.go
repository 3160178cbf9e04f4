package httpapi

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/example/ridehail-sim/internal/models"
)

type feedEvent struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type feedConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *feedConn) send(ev feedEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(ev)
}

// Feed fans simulation events out to connected websocket observers. It is a
// Sink, so it plugs into the same tee as the durable backends; a slow or dead
// observer is dropped, never blocking the run.
type Feed struct {
	mu    sync.RWMutex
	conns map[*feedConn]struct{}
}

func NewFeed() *Feed { return &Feed{conns: make(map[*feedConn]struct{})} }

func (f *Feed) add(conn *websocket.Conn) *feedConn {
	fc := &feedConn{conn: conn}
	f.mu.Lock()
	f.conns[fc] = struct{}{}
	f.mu.Unlock()
	return fc
}

func (f *Feed) remove(fc *feedConn) {
	f.mu.Lock()
	delete(f.conns, fc)
	f.mu.Unlock()
	fc.conn.Close()
}

func (f *Feed) broadcast(ev feedEvent) {
	f.mu.RLock()
	conns := make([]*feedConn, 0, len(f.conns))
	for fc := range f.conns {
		conns = append(conns, fc)
	}
	f.mu.RUnlock()
	for _, fc := range conns {
		if err := fc.send(ev); err != nil {
			f.remove(fc)
		}
	}
}

func (f *Feed) PublishRequest(_ context.Context, req *models.PassengerRequest) error {
	f.broadcast(feedEvent{Type: "ride", Data: req})
	return nil
}

func (f *Feed) PublishDriverUpdate(_ context.Context, upd models.DriverAvailabilityUpdate) error {
	f.broadcast(feedEvent{Type: "driver", Data: upd})
	return nil
}

func (f *Feed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for fc := range f.conns {
		fc.conn.Close()
		delete(f.conns, fc)
	}
	return nil
}
