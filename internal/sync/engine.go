// Package sync provides local/cloud reconciliation for the record replica.
package sync

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/chronicle-app/chronicle/internal/errors"
	"github.com/chronicle-app/chronicle/internal/identity"
	"github.com/chronicle-app/chronicle/internal/logging"
	"github.com/chronicle-app/chronicle/internal/models"
	"github.com/chronicle-app/chronicle/internal/remote"
)

// Status represents the current sync status.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusFailed  Status = "failed"
)

// EventType identifies a sync lifecycle event.
type EventType string

const (
	EventSyncStarted   EventType = "sync.started"
	EventSyncCompleted EventType = "sync.completed"
	EventSyncFailed    EventType = "sync.failed"
	EventSyncSkipped   EventType = "sync.skipped"
)

// Event is a sync lifecycle notification.
type Event struct {
	Type    EventType
	Merged  int
	Dropped int
	Error   string
}

// EventHandler receives sync lifecycle events.
type EventHandler interface {
	OnSyncEvent(event Event)
}

// Engine reconciles the local replica against the remote store. A single
// Engine owns the reconciliation of one replica; overlapping Sync calls are
// dropped, not queued.
type Engine struct {
	replica  *Replica
	store    remote.RecordStore
	resolver identity.Resolver

	mu       sync.Mutex
	syncing  bool
	status   Status
	lastSync *time.Time
	lastErr  error
	handler  EventHandler
}

// NewEngine creates an Engine for the given replica and remote store.
func NewEngine(replica *Replica, store remote.RecordStore, resolver identity.Resolver) *Engine {
	return &Engine{
		replica:  replica,
		store:    store,
		resolver: resolver,
		status:   StatusIdle,
	}
}

// SetEventHandler registers the sync lifecycle event handler.
func (e *Engine) SetEventHandler(handler EventHandler) {
	e.mu.Lock()
	e.handler = handler
	e.mu.Unlock()
}

func (e *Engine) emit(event Event) {
	e.mu.Lock()
	handler := e.handler
	e.mu.Unlock()
	if handler != nil {
		handler.OnSyncEvent(event)
	}
}

// Status returns the current sync status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// LastSync returns the timestamp of the last successful sync.
func (e *Engine) LastSync() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// LastError returns the last sync error.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Sync runs one full reconciliation pass: fetch the remote snapshot, merge
// it into the replica, persist, publish. A call while a pass is outstanding
// is a silent no-op. A fetch failure aborts the pass without mutating local
// state.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	if e.syncing {
		e.mu.Unlock()
		logging.Debug("Sync already in progress, dropping request", nil)
		e.emit(Event{Type: EventSyncSkipped})
		return nil
	}
	e.syncing = true
	e.status = StatusSyncing
	e.lastErr = nil
	e.mu.Unlock()

	e.emit(Event{Type: EventSyncStarted})

	err := e.run(ctx)

	e.mu.Lock()
	e.syncing = false
	if err != nil {
		e.status = StatusFailed
		e.lastErr = err
	} else {
		e.status = StatusIdle
		now := time.Now()
		e.lastSync = &now
	}
	e.mu.Unlock()

	if err != nil {
		logging.Error("Sync failed", err, nil)
		e.emit(Event{Type: EventSyncFailed, Error: err.Error()})
		return err
	}
	return nil
}

// run performs the fetch/merge/persist steps of one pass.
func (e *Engine) run(ctx context.Context) error {
	snapshot, err := e.store.FetchAll(ctx, "")
	if err != nil {
		return apperrors.Wrap(apperrors.ErrSyncFailed, "snapshot fetch failed", err)
	}

	local := e.replica.Records()
	merged := Merge(local, snapshot)

	if err := e.replica.SetRecords(merged); err != nil {
		return apperrors.Wrap(apperrors.ErrSyncFailed, "failed to persist merged replica", err)
	}

	dropped := countTombstoned(local, snapshot)

	logging.Info("Reconciliation pass completed", map[string]interface{}{
		"local":   len(local),
		"remote":  len(snapshot),
		"merged":  len(merged),
		"dropped": dropped,
	})

	e.syncProfile(ctx)

	e.emit(Event{Type: EventSyncCompleted, Merged: len(merged), Dropped: dropped})
	return nil
}

// syncProfile reconciles the singleton profile. Best effort: a profile
// fetch failure does not fail the pass that already merged the records.
func (e *Engine) syncProfile(ctx context.Context) {
	authorID := e.resolver.CurrentAuthorID(ctx)
	if authorID == "" {
		return
	}

	remoteProfile, err := e.store.FetchProfile(ctx, authorID)
	if err != nil {
		logging.Warn("Profile fetch failed", map[string]interface{}{
			"author_id": authorID,
			"error":     err.Error(),
		})
		return
	}

	local := e.replica.Profile()
	winner := MergeProfile(local, remoteProfile)
	if winner == nil || winner == local {
		return
	}
	if err := e.replica.SetProfile(winner); err != nil {
		logging.Warn("Failed to persist merged profile", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Run consumes change signals until ctx is cancelled, re-syncing on each.
func (e *Engine) Run(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if err := e.Sync(ctx); err != nil {
				// Already logged; state is untouched on failure.
				continue
			}
		}
	}
}

// countTombstoned counts local records removed by implicit remote
// tombstones: pushed locally but absent from the snapshot.
func countTombstoned(local, snapshot []models.Record) int {
	ids := make(map[models.UUID]bool, len(snapshot))
	for _, rec := range snapshot {
		ids[rec.ID] = true
	}
	n := 0
	for _, rec := range local {
		if rec.IsPushed() && !ids[rec.ID] {
			n++
		}
	}
	return n
}
