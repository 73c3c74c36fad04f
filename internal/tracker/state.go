package tracker

import (
	"sync"
	"time"
)

// maxRecentErrors bounds the error ring exposed on the status surface.
const maxRecentErrors = 10

// TrackedError is one entry in the bounded error history.
type TrackedError struct {
	At      time.Time `json:"at"`
	Source  string    `json:"source"`
	Message string    `json:"message"`
}

// Snapshot is an immutable copy of the tracker state for the status surface.
type Snapshot struct {
	Running            bool           `json:"running"`
	StartedAt          time.Time      `json:"started_at"`
	LastSweepAt        *time.Time     `json:"last_sweep_at,omitempty"`
	NextSweepAt        *time.Time     `json:"next_sweep_at,omitempty"`
	MembersCount       int            `json:"members_count"`
	TotalExpelled      int            `json:"total_expelled"`
	SweepCount         int            `json:"sweep_count"`
	NotificationsArmed bool           `json:"notifications_armed"`
	RecentErrors       []TrackedError `json:"recent_errors"`
}

// State holds process-wide counters and last-run markers. It is advisory
// telemetry, rebuilt from the store on restart where derivable; volatile
// fields (notifications_armed) default to a safe baseline (disabled) and
// must be re-armed explicitly.
type State struct {
	mu sync.RWMutex

	running            bool
	startedAt          time.Time
	lastSweepAt        *time.Time
	nextSweepAt        *time.Time
	membersCount       int
	totalExpelled      int
	sweepCount         int
	notificationsArmed bool
	recentErrors       []TrackedError
}

// NewState creates a fresh state with notifications disarmed.
func NewState() *State {
	return &State{startedAt: time.Now().UTC()}
}

// SetRunning marks the tracker as running or stopped.
func (s *State) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// RecordSweep updates the sweep markers and the member count.
func (s *State) RecordSweep(at, next time.Time, members int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSweepAt = &at
	s.nextSweepAt = &next
	s.membersCount = members
	s.sweepCount++
}

// SetNextSweep sets the next scheduled sweep marker.
func (s *State) SetNextSweep(next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSweepAt = &next
}

// SetMembersCount sets the member counter, used on startup rebuild and
// after ingestion.
func (s *State) SetMembersCount(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.membersCount = count
}

// SetTotalExpelled sets the expulsion counter, used on startup rebuild.
func (s *State) SetTotalExpelled(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalExpelled = count
}

// IncrementExpelled bumps the expulsion counter.
func (s *State) IncrementExpelled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalExpelled++
}

// RecordError appends an error to the bounded ring, evicting the oldest
// entry when full.
func (s *State) RecordError(source string, err error) {
	if err == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.recentErrors = append(s.recentErrors, TrackedError{
		At:      time.Now().UTC(),
		Source:  source,
		Message: err.Error(),
	})
	if len(s.recentErrors) > maxRecentErrors {
		s.recentErrors = s.recentErrors[len(s.recentErrors)-maxRecentErrors:]
	}
}

// ArmNotifications enables or disables admin notifications.
func (s *State) ArmNotifications(armed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notificationsArmed = armed
}

// NotificationsArmed reports whether admin notifications are enabled.
func (s *State) NotificationsArmed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notificationsArmed
}

// Snapshot returns a copy of the state. The returned value shares nothing
// with the live state, so request handlers can read it without locking.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Running:            s.running,
		StartedAt:          s.startedAt,
		MembersCount:       s.membersCount,
		TotalExpelled:      s.totalExpelled,
		SweepCount:         s.sweepCount,
		NotificationsArmed: s.notificationsArmed,
		RecentErrors:       make([]TrackedError, len(s.recentErrors)),
	}
	copy(snap.RecentErrors, s.recentErrors)

	if s.lastSweepAt != nil {
		last := *s.lastSweepAt
		snap.LastSweepAt = &last
	}
	if s.nextSweepAt != nil {
		next := *s.nextSweepAt
		snap.NextSweepAt = &next
	}

	return snap
}
