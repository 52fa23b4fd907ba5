package state

import (
	"sync"
	"time"

	"github.com/marmos91/nfs4d/internal/logger"
)

// GracePeriodState tracks the grace period that follows a server start.
//
// While it is active, operations that would change the namespace in ways a
// reclaiming client could not predict are refused with NFS4ERR_GRACE. It ends
// when the timer fires, when every client known from the previous run has
// sent RECLAIM_COMPLETE, or when Stop is called.
type GracePeriodState struct {
	mu sync.Mutex

	active   bool
	duration time.Duration
	timer    *time.Timer

	// Keyed by client owner, since client IDs change across restarts.
	expected  map[string]bool
	reclaimed map[string]bool

	// Called outside the mutex.
	onGraceEnd func()
}

// NewGracePeriodState creates an inactive grace period.
func NewGracePeriodState(duration time.Duration, onGraceEnd func()) *GracePeriodState {
	return &GracePeriodState{
		duration:   duration,
		expected:   make(map[string]bool),
		reclaimed:  make(map[string]bool),
		onGraceEnd: onGraceEnd,
	}
}

// StartGrace begins the grace period. A zero duration skips it.
func (g *GracePeriodState) StartGrace(expectedOwners []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active {
		return
	}
	if g.duration <= 0 {
		logger.Debug("NFSv4 grace period disabled")
		return
	}

	g.active = true
	g.expected = make(map[string]bool, len(expectedOwners))
	for _, o := range expectedOwners {
		g.expected[o] = true
	}
	g.reclaimed = make(map[string]bool)

	logger.Info("NFSv4 grace period started",
		"duration", g.duration,
		"expected_clients", len(expectedOwners))

	g.timer = time.AfterFunc(g.duration, g.endGrace)
}

// IsInGrace reports whether the grace period is active.
func (g *GracePeriodState) IsInGrace() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.active
}

// ClientReclaimed records that owner finished reclaiming. When that was the
// last expected client the grace period ends early.
func (g *GracePeriodState) ClientReclaimed(owner string) {
	g.mu.Lock()

	if !g.active {
		g.mu.Unlock()
		return
	}
	g.reclaimed[owner] = true

	if len(g.expected) == 0 {
		g.mu.Unlock()
		return
	}
	for o := range g.expected {
		if !g.reclaimed[o] {
			g.mu.Unlock()
			return
		}
	}

	logger.Info("NFSv4 grace period ending early: all expected clients reclaimed",
		"reclaimed", len(g.reclaimed))
	g.mu.Unlock()
	g.endGrace()
}

func (g *GracePeriodState) endGrace() {
	g.mu.Lock()
	if !g.active {
		g.mu.Unlock()
		return
	}
	g.active = false
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	callback := g.onGraceEnd
	logger.Info("NFSv4 grace period ended",
		"reclaimed_clients", len(g.reclaimed),
		"expected_clients", len(g.expected))
	g.mu.Unlock()

	if callback != nil {
		callback()
	}
}

// Stop ends the grace period without invoking the end callback.
func (g *GracePeriodState) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.active = false
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}
