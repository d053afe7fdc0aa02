package redis

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	maintenanceKey      = "maintenance:enabled"
	defaultPollInterval = 10 * time.Second
)

// MaintenanceFlag mirrors the Redis maintenance switch into a process-local
// atomic bool. Reads are lock-free; the mirror is refreshed by a background
// poller, so requests see the flag flip within one poll interval.
type MaintenanceFlag struct {
	client   *redis.Client
	enabled  atomic.Bool
	interval time.Duration
	log      zerolog.Logger
}

// NewMaintenanceFlag creates a MaintenanceFlag polling at interval.
// If interval <= 0, defaultPollInterval is used.
func NewMaintenanceFlag(client *redis.Client, interval time.Duration, log zerolog.Logger) *MaintenanceFlag {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &MaintenanceFlag{client: client, interval: interval, log: log}
}

// Enabled reports the last observed flag state.
func (m *MaintenanceFlag) Enabled() bool {
	return m.enabled.Load()
}

// Refresh reads the flag from Redis once. A read failure keeps the previous
// state rather than flapping the gate.
func (m *MaintenanceFlag) Refresh(ctx context.Context) {
	val, err := m.client.Get(ctx, maintenanceKey).Result()
	if err == redis.Nil {
		m.enabled.Store(false)
		return
	}
	if err != nil {
		m.log.Warn().Err(err).Msg("maintenance flag read failed, keeping previous state")
		return
	}
	m.enabled.Store(val == "1" || val == "true")
}

// Start launches the poller goroutine. It stops when ctx is cancelled.
func (m *MaintenanceFlag) Start(ctx context.Context) {
	m.Refresh(ctx)
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Refresh(ctx)
			}
		}
	}()
}
