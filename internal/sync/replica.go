// Package sync provides local/cloud reconciliation for the record replica.
package sync

import (
	"sync"

	"github.com/chronicle-app/chronicle/internal/cache"
	"github.com/chronicle-app/chronicle/internal/models"
)

// Replica is the single in-process owner of the local record collection and
// profile. All reads and mutations funnel through its lock, and every
// mutation is persisted to the cache before it returns. Consumers outside
// the engine/gateway pair observe published state read-only.
type Replica struct {
	store *cache.Store

	mu      sync.Mutex
	records []models.Record
	profile *models.Profile

	// updates carries a coalesced "state changed" signal for observers.
	updates chan struct{}
}

// NewReplica creates a Replica backed by the given cache.
func NewReplica(store *cache.Store) *Replica {
	return &Replica{
		store:   store,
		updates: make(chan struct{}, 1),
	}
}

// Load restores the replica from the cache. Called once at startup.
func (r *Replica) Load() error {
	records, err := r.store.LoadRecords()
	if err != nil {
		return err
	}
	profile, err := r.store.LoadProfile()
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.records = records
	r.profile = profile
	r.mu.Unlock()
	return nil
}

// Updates returns the coalesced state-change signal channel.
func (r *Replica) Updates() <-chan struct{} {
	return r.updates
}

func (r *Replica) publish() {
	select {
	case r.updates <- struct{}{}:
	default:
	}
}

// Records returns a copy of the current record collection.
func (r *Replica) Records() []models.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Record, len(r.records))
	copy(out, r.records)
	return out
}

// Get returns the record with the given id.
func (r *Replica) Get(id models.UUID) (models.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			return rec, true
		}
	}
	return models.Record{}, false
}

// Profile returns a copy of the current profile, or nil.
func (r *Replica) Profile() *models.Profile {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.profile == nil {
		return nil
	}
	p := *r.profile
	return &p
}

// persistRecordsLocked writes the current collection to the cache.
// Callers hold r.mu.
func (r *Replica) persistRecordsLocked() error {
	return r.store.SaveRecords(r.records)
}

// Append adds a new record at the end of the collection. Insertion order is
// chronological for records created at this replica.
func (r *Replica) Append(record models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
	if err := r.persistRecordsLocked(); err != nil {
		return err
	}
	r.publish()
	return nil
}

// Replace swaps the stored record with the same id.
func (r *Replica) Replace(record models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == record.ID {
			r.records[i] = record
			break
		}
	}
	if err := r.persistRecordsLocked(); err != nil {
		return err
	}
	r.publish()
	return nil
}

// Remove deletes the record with the given id.
func (r *Replica) Remove(id models.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.ID != id {
			kept = append(kept, rec)
		}
	}
	r.records = kept
	if err := r.persistRecordsLocked(); err != nil {
		return err
	}
	r.publish()
	return nil
}

// RemoveByAuthor deletes every record created by the given author.
func (r *Replica) RemoveByAuthor(authorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.AuthorID != authorID {
			kept = append(kept, rec)
		}
	}
	r.records = kept
	if err := r.persistRecordsLocked(); err != nil {
		return err
	}
	r.publish()
	return nil
}

// SetRemoteRef records the remote identity assigned to a record after a
// successful push. LastModified is left untouched: acquiring a remote ref
// is not a content mutation.
func (r *Replica) SetRemoteRef(id models.UUID, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == id {
			r.records[i].RemoteRef = ref
			break
		}
	}
	return r.persistRecordsLocked()
}

// SetRecords replaces the whole collection, as produced by a merge pass.
func (r *Replica) SetRecords(records []models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = records
	if err := r.persistRecordsLocked(); err != nil {
		return err
	}
	r.publish()
	return nil
}

// SetProfile replaces the stored profile.
func (r *Replica) SetProfile(profile *models.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profile = profile
	if err := r.store.SaveProfile(profile); err != nil {
		return err
	}
	r.publish()
	return nil
}

// SetProfileRemoteRef records the remote identity assigned to the profile.
func (r *Replica) SetProfileRemoteRef(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.profile == nil {
		return nil
	}
	r.profile.RemoteRef = ref
	return r.store.SaveProfile(r.profile)
}

// Clear drops all local state. Used for full account reset.
func (r *Replica) Clear() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	r.profile = nil
	if err := r.store.Clear(); err != nil {
		return err
	}
	r.publish()
	return nil
}
