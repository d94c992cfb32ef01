package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-calendar/pkg/changefeed"
)

// changeChannel is the NOTIFY channel written by the notify_calendar_change trigger
const changeChannel = "calendar_changes"

// listenStartTimeout bounds acquiring the LISTEN connection. It does not
// depend on the subscriber that happens to trigger the start.
const listenStartTimeout = 10 * time.Second

// Subscribe registers for change notifications on an entity. The LISTEN
// connection is started on demand: by the first call, and again by the first
// call after a lost connection. A failed start is retried by the next call.
func (d *DB) Subscribe(ctx context.Context, entity string, ops ...changefeed.Op) (*changefeed.Subscription, error) {
	d.listenMu.Lock()
	defer d.listenMu.Unlock()

	if d.closed {
		return nil, changefeed.ErrClosed
	}
	if !d.listening {
		startCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listenStartTimeout)
		err := d.startListener(startCtx)
		cancel()
		if err != nil {
			return nil, err
		}
		d.listening = true
	}

	return d.hub.Subscribe(entity, ops...)
}

// startListener dedicates one pool connection to LISTEN and forwards every
// notification into the hub. Callers hold listenMu.
func (d *DB) startListener(ctx context.Context) error {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "LISTEN "+changeChannel); err != nil {
		conn.Release()
		return fmt.Errorf("failed to listen on %s: %w", changeChannel, err)
	}

	// The connection may be mid-wait when cancelled, so it is taken out of
	// the pool and closed rather than released.
	listenConn := conn.Hijack()

	listenCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.listenCancel = cancel
	d.listenDone = done

	d.logger.Debug("Listening for calendar changes", zap.String("channel", changeChannel))

	go func() {
		defer close(done)
		defer cancel()
		defer listenConn.Close(context.Background())

		for {
			notification, err := listenConn.WaitForNotification(listenCtx)
			if err != nil {
				if listenCtx.Err() == nil {
					d.connectionLost(err)
				}
				return
			}

			change, err := decodeChange(notification.Payload)
			if err != nil {
				d.logger.Warn("Ignoring malformed change notification",
					zap.String("payload", notification.Payload),
					zap.Error(err))
				continue
			}
			d.hub.Publish(change)
		}
	}()

	return nil
}

// connectionLost ends the current subscriptions and clears the listening
// state so the next Subscribe opens a new LISTEN connection. Current
// subscribers see their channels close and must resubscribe and refetch.
func (d *DB) connectionLost(err error) {
	d.logger.Error("Change feed connection lost", zap.Error(err))

	d.listenMu.Lock()
	defer d.listenMu.Unlock()

	d.listening = false
	d.hub.Drop()
}

// decodeChange parses a trigger payload such as {"entity":"shifts","op":"INSERT"}
func decodeChange(payload string) (changefeed.Change, error) {
	var raw struct {
		Entity string `json:"entity"`
		Op     string `json:"op"`
	}
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return changefeed.Change{}, fmt.Errorf("failed to decode change payload: %w", err)
	}
	if raw.Entity == "" {
		return changefeed.Change{}, fmt.Errorf("change payload has no entity")
	}

	op, err := changefeed.ParseOp(raw.Op)
	if err != nil {
		return changefeed.Change{}, err
	}

	return changefeed.Change{Entity: raw.Entity, Op: op}, nil
}
