package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Apurer/vendor-orders/internal/domains/orders/adapters/realtime"
)

// Listen forwards NOTIFY events on ChangeChannel into hub until ctx is done.
// After a reconnect every watcher is refreshed because events may have been
// lost while the connection was down.
func Listen(ctx context.Context, dsn string, hub *realtime.Hub, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	listener := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logger.Warn("order change listener event", slog.Int("event", int(ev)), slog.String("error", err.Error()))
		}
	})
	if err := listener.Listen(ChangeChannel); err != nil {
		_ = listener.Close()
		return fmt.Errorf("listen %s: %w", ChangeChannel, err)
	}
	go func() {
		defer listener.Close()
		ping := time.NewTicker(90 * time.Second)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil {
					hub.PublishAll()
					continue
				}
				var ev changeEvent
				if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
					logger.Warn("malformed order change event", slog.String("payload", n.Extra))
					continue
				}
				hub.Publish(realtime.Topic{Collection: ev.Collection, OwnerID: ev.OwnerID})
			case <-ping.C:
				if err := listener.Ping(); err != nil {
					logger.Warn("order change listener ping failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
	return nil
}
