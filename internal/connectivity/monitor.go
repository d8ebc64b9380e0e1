// Package connectivity tracks online/offline and visibility state for the sync core.
package connectivity

import (
	"context"
	"log/slog"
	"sync"

	"github.com/kantongapp/kantong/internal/service"
)

// Monitor is the single source of truth for "are we online" and "did we just
// come back online". It performs no I/O itself; platform signals are fed in
// through SetOnline and PageVisible, and the initial state comes from the
// injected probe.
//
// The restored-connectivity signal fires exactly once per offline period, on
// the transition back to online.
type Monitor struct {
	probe      service.Probe
	restored   chan struct{}
	mu         sync.Mutex
	online     bool
	wasOffline bool
	visible    bool
}

// NewMonitor creates a monitor initialized from the probe's current signal.
// Starting offline counts as an offline period, so the first recovery fires
// the restored signal.
func NewMonitor(ctx context.Context, probe service.Probe) *Monitor {
	online := probe.Online(ctx)
	return &Monitor{
		probe:      probe,
		online:     online,
		wasOffline: !online,
		visible:    true,
		restored:   make(chan struct{}, 1),
	}
}

// Online reports the cached connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Visible reports whether the app is currently in the foreground.
func (m *Monitor) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

// Restored delivers one signal per offline-to-online transition. The channel
// is buffered; a signal no consumer was waiting for is kept for the next read.
func (m *Monitor) Restored() <-chan struct{} {
	return m.restored
}

// SetOnline feeds a platform online/offline event into the monitor.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if online {
		m.online = true
		if m.wasOffline {
			m.wasOffline = false
			m.signalRestoredLocked()
			slog.Info("connectivity restored")
		}
		return
	}

	m.online = false
	m.wasOffline = true
	slog.Info("connectivity lost")
}

// PageVisible feeds a became-visible event into the monitor. The platform
// signal is re-checked because online/offline events can be missed while the
// app is in the background; a disagreement is reconciled, and a recovery from
// an observed offline period fires the restored signal.
func (m *Monitor) PageVisible(ctx context.Context) {
	actual := m.probe.Online(ctx)

	m.mu.Lock()
	m.visible = true
	m.mu.Unlock()

	m.reconcile(actual, "visibility check")
}

// Reprobe re-checks the platform signal and reconciles the cached state. The
// sync loop calls this on every tick so the monitor cannot stay frozen on a
// stale answer when no online/offline event is delivered; a recovery from an
// observed offline period fires the restored signal.
func (m *Monitor) Reprobe(ctx context.Context) {
	m.reconcile(m.probe.Online(ctx), "probe")
}

func (m *Monitor) reconcile(actual bool, via string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if actual == m.online {
		return
	}

	m.online = actual
	if !actual {
		m.wasOffline = true
		slog.Info("connectivity lost", "via", via)
		return
	}
	if m.wasOffline {
		m.wasOffline = false
		m.signalRestoredLocked()
		slog.Info("connectivity restored", "via", via)
	}
}

// PageHidden feeds a became-hidden event into the monitor.
func (m *Monitor) PageHidden() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = false
}

func (m *Monitor) signalRestoredLocked() {
	select {
	case m.restored <- struct{}{}:
	default:
		// A previous signal is still pending; one is enough.
	}
}
