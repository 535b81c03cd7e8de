package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/and161185/grocerly/internal/model"
)

const (
	// Channel is the NOTIFY channel fed by the items trigger.
	Channel           = "item_changes"
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// Publisher receives decoded notifications.
type Publisher interface {
	Publish(model.Change)
	ResyncAll()
}

// Listener holds a dedicated LISTEN connection and forwards notifications to a Publisher.
type Listener struct {
	dsn      string
	pub      Publisher
	log      *zap.Logger
	sessions int
}

// NewListener constructs a listener for dsn.
func NewListener(dsn string, pub Publisher, log *zap.Logger) *Listener {
	return &Listener{dsn: dsn, pub: pub, log: log}
}

// Run listens until ctx is done, reconnecting after failures.
func (l *Listener) Run(ctx context.Context) {
	for {
		l.connectAndListen(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.log.Info("reconnecting notification listener")
		}
	}
}

func (l *Listener) connectAndListen(ctx context.Context) {
	ln := pq.NewListener(l.dsn, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.log.Info("notification listener connected")
		case pq.ListenerEventDisconnected:
			l.log.Warn("notification listener disconnected", zap.Error(err))
		case pq.ListenerEventReconnected:
			l.log.Info("notification listener reconnected")
		case pq.ListenerEventConnectionAttemptFailed:
			l.log.Warn("notification listener connect failed", zap.Error(err))
		}
	})
	defer func() { _ = ln.Close() }()

	if err := ln.Listen(Channel); err != nil {
		l.log.Error("listen failed", zap.String("channel", Channel), zap.Error(err))
		return
	}
	l.listening()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-ln.Notify:
			if n == nil {
				// connection re-established by pq; notifications may be lost
				l.pub.ResyncAll()
				continue
			}
			l.handle(n.Extra)
		case <-ping.C:
			if err := ln.Ping(); err != nil {
				l.log.Warn("listener ping failed", zap.Error(err))
				return
			}
		}
	}
}

// listening marks a successful LISTEN. Every session after the first follows a
// gap in which notifications were not received, so subscribers must resync.
func (l *Listener) listening() {
	l.sessions++
	l.log.Info("listening", zap.String("channel", Channel), zap.Int("session", l.sessions))
	if l.sessions > 1 {
		l.pub.ResyncAll()
	}
}

func (l *Listener) handle(payload string) {
	c, err := Decode(payload)
	if err != nil {
		l.log.Warn("bad notification payload", zap.Error(err))
		return
	}
	l.pub.Publish(c)
}

// Decode parses a trigger payload.
func Decode(payload string) (model.Change, error) {
	var c model.Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return model.Change{}, fmt.Errorf("decode notification: %w", err)
	}
	if c.ListID == uuid.Nil || c.ItemID == uuid.Nil {
		return model.Change{}, fmt.Errorf("decode notification: missing ids")
	}
	return c, nil
}
