// Package tracker owns the session lifecycle: starting and stopping tracked
// intervals, detecting inactivity, heartbeating the store while active, and
// reconstructing an interrupted session at startup.
//
// The tracker is the only writer of the in-memory [Session]. Two periodic
// tasks run while a session is active: the idle check (default every 60s)
// compares the time since the last activity signal against the configured
// idle timeout and auto-stops the session when exceeded, and the refresh
// task (every 1s) pushes the formatted elapsed time to the presenter. Both
// tasks are cancelled before the final store write on stop, so a teardown
// never races an idle check.
//
// The system of record is the store; on restart [Tracker.Recover] silently
// adopts an entry still marked active, keeping the persisted start time so
// the displayed elapsed time survives the restart.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tools.zach/dev/timecord/internal/identity"
	"tools.zach/dev/timecord/internal/store"
)

// Default task intervals. Overridable for tests via [Options].
const (
	defaultIdleCheckInterval = 60 * time.Second
	defaultRefreshInterval   = time.Second
)

// ReasonInactivity marks entries stopped by the idle check rather than the
// actor.
const ReasonInactivity = "inactivity"

// ///////////////////////////////////////////////
// Collaborator Contracts
// ///////////////////////////////////////////////

// SessionStore is the subset of store operations the tracker issues.
// Satisfied by [store.Client].
type SessionStore interface {
	FindIdentity(ctx context.Context, externalID int64) (int64, bool, error)
	CreateIdentity(ctx context.Context, externalID int64, displayName string) (int64, error)
	CreateEntry(ctx context.Context, e store.Entry) (int64, error)
	UpdateEntry(ctx context.Context, entryID int64, patch store.EntryPatch) error
	FindActiveEntry(ctx context.Context, userID int64) (*store.Entry, error)
}

// IdentityProvider resolves who the tracked time belongs to. Satisfied by
// [identity.GitHub].
type IdentityProvider interface {
	Identity(ctx context.Context, interactive bool) (identity.Identity, error)
}

// Presenter receives state transitions and the once-per-second elapsed time
// while a session is active. It renders; it never decides. reason is empty
// for a manual stop or [ReasonInactivity] for an idle auto-stop, so the
// rendered message can say which one happened.
type Presenter interface {
	RenderIdle(reason string)
	RenderActive(elapsed time.Duration)
}

// ///////////////////////////////////////////////
// Types
// ///////////////////////////////////////////////

// Session is the live, process-local record of an ongoing tracked interval.
// It exists if and only if tracking is active.
type Session struct {
	// StartTime is when the interval began. Immutable; survives recovery
	// with its persisted value.
	StartTime time.Time
	// RemoteID is the store row backing this session.
	RemoteID int64

	// lastActivity is when the actor last edited or refocused. Read by the
	// idle check, written by Touch.
	lastActivity time.Time
}

// Status is a point-in-time snapshot of the tracker for presentation.
type Status struct {
	Active    bool
	StartTime time.Time
	Elapsed   time.Duration
	Workspace string
}

// Options configures a [Tracker].
type Options struct {
	Store     SessionStore
	Identity  IdentityProvider
	Presenter Presenter

	// Workspace is the label persisted on entries this tracker creates.
	Workspace string
	// IdleTimeout is the inactivity duration before auto-stop.
	IdleTimeout time.Duration

	// IdleCheckInterval and RefreshInterval override the task cadences.
	// Zero means the defaults. Tests shrink these to milliseconds.
	IdleCheckInterval time.Duration
	RefreshInterval   time.Duration
	// Now overrides the clock. Nil means [time.Now].
	Now func() time.Time
}

// Tracker is the session state machine.
type Tracker struct {
	store SessionStore
	ids   IdentityProvider
	pres  Presenter

	workspace       string
	idleInterval    time.Duration
	refreshInterval time.Duration
	now             func() time.Time

	mu          sync.Mutex
	session     *Session
	externalID  int64 // provider identity the cached store row belongs to
	userID      int64 // store identity row for externalID
	idleTimeout time.Duration
	idleTask    *task
	refreshTask *task

	// heartbeatBusy is the single-flight guard: an activity signal while a
	// heartbeat is outstanding is dropped, not queued.
	heartbeatBusy atomic.Bool
}

// New builds a tracker. The session starts absent; call [Tracker.Recover]
// once at startup to adopt an orphaned entry.
func New(opts Options) *Tracker {
	t := &Tracker{
		store:           opts.Store,
		ids:             opts.Identity,
		pres:            opts.Presenter,
		workspace:       opts.Workspace,
		idleTimeout:     opts.IdleTimeout,
		idleInterval:    opts.IdleCheckInterval,
		refreshInterval: opts.RefreshInterval,
		now:             opts.Now,
	}
	if t.idleInterval <= 0 {
		t.idleInterval = defaultIdleCheckInterval
	}
	if t.refreshInterval <= 0 {
		t.refreshInterval = defaultRefreshInterval
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// ///////////////////////////////////////////////
// Lifecycle
// ///////////////////////////////////////////////

// Start begins a tracked interval. Calling Start while a session is already
// active is a no-op returning the existing session's status. On store or
// identity failure no session is created and the classified error is
// returned.
func (t *Tracker) Start(ctx context.Context) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session != nil {
		slog.Info("start ignored, session already active", "started", t.session.StartTime)
		return t.statusLocked(), nil
	}

	userID, err := t.ensureUserLocked(ctx, true)
	if err != nil {
		return Status{}, fmt.Errorf("start tracking: %w", err)
	}

	now := t.now()
	wire := store.FormatTime(now)
	remoteID, err := t.store.CreateEntry(ctx, store.Entry{
		UserID:        userID,
		StartTime:     wire,
		IsActive:      true,
		LastActive:    wire,
		WorkspaceName: t.workspace,
	})
	if err != nil {
		slog.Error("failed to create entry", "error", err)
		return Status{}, fmt.Errorf("start tracking: %w", err)
	}

	t.session = &Session{StartTime: now, RemoteID: remoteID, lastActivity: now}
	t.startTasksLocked()
	t.pres.RenderActive(0)
	slog.Info("session started", "workspace", t.workspace, "entry", remoteID)
	return t.statusLocked(), nil
}

// Stop ends the active session. reason is empty for a manual stop or
// [ReasonInactivity] for an idle auto-stop. Both periodic tasks are
// cancelled before the store write. The in-memory session is cleared even
// when the final store update fails; the error is still returned so the
// caller can surface it.
func (t *Tracker) Stop(ctx context.Context, reason string) (Status, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.session == nil {
		slog.Info("stop ignored, no active session")
		return t.statusLocked(), nil
	}

	t.cancelTasksLocked()

	end := t.now()
	endWire := store.FormatTime(end)
	active := false
	patch := store.EntryPatch{
		EndTime:    &endWire,
		IsActive:   &active,
		LastActive: &endWire,
	}
	if reason != "" {
		patch.StopReason = &reason
	}
	err := t.store.UpdateEntry(ctx, t.session.RemoteID, patch)

	entryID := t.session.RemoteID
	duration := end.Sub(t.session.StartTime)
	t.session = nil
	t.pres.RenderIdle(reason)

	if err != nil {
		// Fail open: local state is already cleared so tracking never
		// sticks, but the store row may be left marked active.
		slog.Error("failed to finalize entry", "entry", entryID, "error", err)
		return t.statusLocked(), fmt.Errorf("stop tracking: %w", err)
	}
	slog.Info("session stopped", "entry", entryID, "duration", duration, "reason", reason)
	return t.statusLocked(), nil
}

// Recover adopts an entry left marked active by a previous process. All
// failures are logged and swallowed; recovery never blocks startup. Silent:
// a missing identity simply means nothing to recover.
func (t *Tracker) Recover(ctx context.Context) {
	id, err := t.ids.Identity(ctx, false)
	if err != nil {
		if !errors.Is(err, identity.ErrNoSession) {
			slog.Debug("recovery identity lookup failed", "error", err)
		}
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		return
	}

	userID, found, err := t.store.FindIdentity(ctx, id.UserID)
	if err != nil || !found {
		if err != nil {
			slog.Debug("recovery identity resolution failed", "error", err)
		}
		return
	}
	t.externalID = id.UserID
	t.userID = userID

	entry, err := t.store.FindActiveEntry(ctx, userID)
	if err != nil {
		slog.Debug("recovery entry lookup failed", "error", err)
		return
	}
	if entry == nil {
		return
	}
	start, err := store.ParseTime(entry.StartTime)
	if err != nil {
		slog.Warn("recovered entry has unparseable start time", "entry", entry.ID, "error", err)
		return
	}

	now := t.now()
	t.session = &Session{StartTime: start, RemoteID: entry.ID, lastActivity: now}
	t.startTasksLocked()
	t.pres.RenderActive(now.Sub(start))
	slog.Info("session recovered", "entry", entry.ID, "started", start)
}

// ///////////////////////////////////////////////
// Activity and Idle Detection
// ///////////////////////////////////////////////

// Touch records an activity signal: the idle clock resets and a best-effort
// heartbeat updates the entry's last-active timestamp. Heartbeats are
// single-flight; a signal while one is outstanding only resets the clock.
// Touch never fails the caller.
func (t *Tracker) Touch() {
	t.mu.Lock()
	if t.session == nil {
		t.mu.Unlock()
		return
	}
	now := t.now()
	t.session.lastActivity = now
	remoteID := t.session.RemoteID
	t.mu.Unlock()

	if !t.heartbeatBusy.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer t.heartbeatBusy.Store(false)
		wire := store.FormatTime(now)
		if err := t.store.UpdateEntry(context.Background(), remoteID, store.EntryPatch{LastActive: &wire}); err != nil {
			slog.Debug("heartbeat failed", "entry", remoteID, "error", err)
		}
	}()
}

// checkIdle runs on the idle task's cadence. When the time since the last
// activity exceeds the configured timeout it stops the session with
// [ReasonInactivity]. This is the only automatic transition out of active.
func (t *Tracker) checkIdle() {
	t.mu.Lock()
	if t.session == nil {
		t.mu.Unlock()
		return
	}
	idle := t.now().Sub(t.session.lastActivity)
	timeout := t.idleTimeout
	t.mu.Unlock()

	if idle <= timeout {
		return
	}
	slog.Info("idle timeout exceeded", "idle", idle, "timeout", timeout)
	if _, err := t.Stop(context.Background(), ReasonInactivity); err != nil {
		slog.Error("idle auto-stop failed", "error", err)
	}
}

// refresh pushes the current elapsed time to the presenter.
func (t *Tracker) refresh() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return
	}
	t.pres.RenderActive(t.now().Sub(t.session.StartTime))
}

// ///////////////////////////////////////////////
// Configuration and Inspection
// ///////////////////////////////////////////////

// SetIdleTimeout applies a new idle timeout. With an active session the idle
// task is replaced so the next check uses the new value; the idle clock
// itself is not reset by a config change.
func (t *Tracker) SetIdleTimeout(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if d == t.idleTimeout {
		return
	}
	slog.Info("idle timeout changed", "from", t.idleTimeout, "to", d)
	t.idleTimeout = d
	if t.session != nil {
		t.idleTask.cancel()
		t.idleTask = startTask(t.idleInterval, t.checkIdle)
	}
}

// Status returns a snapshot of the current state.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

// Close stops the periodic tasks without touching the store. Used on daemon
// shutdown after the final Stop already ran, and safe when idle.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelTasksLocked()
}

// ///////////////////////////////////////////////
// Internal Helpers
// ///////////////////////////////////////////////

// ensureUserLocked maps the actor's identity to a store row, creating the
// row on first login. The provider is consulted on every call so a logout or
// revoked token is seen immediately; only the row lookup for an unchanged
// identity is cached. Caller holds mu.
func (t *Tracker) ensureUserLocked(ctx context.Context, interactive bool) (int64, error) {
	id, err := t.ids.Identity(ctx, interactive)
	if err != nil {
		return 0, err
	}
	if t.userID != 0 && t.externalID == id.UserID {
		return t.userID, nil
	}
	userID, found, err := t.store.FindIdentity(ctx, id.UserID)
	if err != nil {
		return 0, err
	}
	if !found {
		userID, err = t.store.CreateIdentity(ctx, id.UserID, id.Login)
		if err != nil {
			return 0, err
		}
		slog.Info("identity created", "login", id.Login)
	}
	t.externalID = id.UserID
	t.userID = userID
	return userID, nil
}

// startTasksLocked launches the idle and refresh tasks. Caller holds mu.
func (t *Tracker) startTasksLocked() {
	t.idleTask = startTask(t.idleInterval, t.checkIdle)
	t.refreshTask = startTask(t.refreshInterval, t.refresh)
}

// cancelTasksLocked cancels both tasks. Idempotent. Caller holds mu.
func (t *Tracker) cancelTasksLocked() {
	t.idleTask.cancel()
	t.refreshTask.cancel()
	t.idleTask = nil
	t.refreshTask = nil
}

// statusLocked builds a snapshot. Caller holds mu.
func (t *Tracker) statusLocked() Status {
	s := Status{Workspace: t.workspace}
	if t.session != nil {
		s.Active = true
		s.StartTime = t.session.StartTime
		s.Elapsed = t.now().Sub(t.session.StartTime)
	}
	return s
}
