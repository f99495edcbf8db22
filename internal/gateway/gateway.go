// Package gateway applies local mutations to the record replica and pushes
// them to the remote store.
//
// Every mutation is local-first: the replica and its cache are updated
// synchronously for immediate responsiveness, then the remote leg runs
// asynchronously. A failed remote leg never rolls back the local write; it
// is journaled in the retry queue instead.
package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "github.com/chronicle-app/chronicle/internal/errors"
	"github.com/chronicle-app/chronicle/internal/identity"
	"github.com/chronicle-app/chronicle/internal/logging"
	"github.com/chronicle-app/chronicle/internal/models"
	"github.com/chronicle-app/chronicle/internal/remote"
	syncpkg "github.com/chronicle-app/chronicle/internal/sync"
	"github.com/chronicle-app/chronicle/internal/sync/queue"
	"github.com/chronicle-app/chronicle/internal/uuid"
)

// Payload holds the kind-specific fields of a record mutation.
type Payload struct {
	Body          string
	Note          string
	AttachmentRef string
}

// Gateway is the mutation entry point for the local replica.
type Gateway struct {
	replica  *syncpkg.Replica
	store    remote.RecordStore
	resolver identity.Resolver
	queue    *queue.Queue

	pushTimeout time.Duration
	pushes      sync.WaitGroup
}

// New creates a Gateway.
func New(replica *syncpkg.Replica, store remote.RecordStore, resolver identity.Resolver, q *queue.Queue) *Gateway {
	return &Gateway{
		replica:     replica,
		store:       store,
		resolver:    resolver,
		queue:       q,
		pushTimeout: 30 * time.Second,
	}
}

// Wait blocks until all outstanding asynchronous pushes have finished.
// Used for graceful shutdown and in tests.
func (g *Gateway) Wait() {
	g.pushes.Wait()
}

// Create stamps and appends a new record, persists it locally, then pushes
// it to the remote store in the background.
func (g *Gateway) Create(ctx context.Context, kind models.RecordKind, ownerLabel string, payload Payload) (models.Record, error) {
	if !kind.Valid() {
		return models.Record{}, apperrors.New(apperrors.ErrInvalid,
			fmt.Sprintf("unknown record kind %q", kind))
	}

	authorName := g.resolver.CurrentDisplayName()
	if authorName == "" {
		authorName = ownerLabel
	}

	now := time.Now().Unix()
	record := models.Record{
		ID:            models.UUID(uuid.New()),
		OwnerLabel:    ownerLabel,
		AuthorID:      g.resolver.CurrentAuthorID(ctx),
		AuthorName:    authorName,
		Kind:          kind,
		Body:          payload.Body,
		Note:          payload.Note,
		AttachmentRef: payload.AttachmentRef,
		CreatedAt:     now,
		LastModified:  now,
	}

	if err := g.replica.Append(record); err != nil {
		return models.Record{}, err
	}

	g.pushRecord(record)
	return record, nil
}

// Update replaces a record's payload. Only the record's author may update
// it; records without an author identity are not mutable through this path.
func (g *Gateway) Update(ctx context.Context, id models.UUID, payload Payload) (models.Record, error) {
	record, ok := g.replica.Get(id)
	if !ok {
		return models.Record{}, apperrors.New(apperrors.ErrNotFound,
			"record "+id.String()+" not found")
	}
	if err := g.authorize(ctx, record); err != nil {
		return models.Record{}, err
	}

	record.Body = payload.Body
	record.Note = payload.Note
	record.AttachmentRef = payload.AttachmentRef
	record.Touch()

	if err := g.replica.Replace(record); err != nil {
		return models.Record{}, err
	}

	g.pushRecord(record)
	return record, nil
}

// Delete removes a record locally, then issues the remote delete in the
// background. The local removal is not rolled back if the remote delete
// fails: a previously pushed record whose remote delete never lands will
// reappear on the next reconciliation pass.
func (g *Gateway) Delete(ctx context.Context, id models.UUID) error {
	record, ok := g.replica.Get(id)
	if !ok {
		return apperrors.New(apperrors.ErrNotFound, "record "+id.String()+" not found")
	}
	if err := g.authorize(ctx, record); err != nil {
		return err
	}

	if err := g.replica.Remove(id); err != nil {
		return err
	}

	if !record.IsPushed() {
		// Never uploaded: local-only delete, nothing to remove remotely.
		logging.Debug("Deleted un-pushed record locally", map[string]interface{}{
			"record_id": id.String(),
		})
		return nil
	}

	g.pushDelete(record.ID, record.RemoteRef)
	return nil
}

// DeleteAllByAuthor removes every record by the given author, remotely
// first. The remote deletion must complete before local state is cleared so
// reconciliation cannot resurrect the records. Used for full account reset.
func (g *Gateway) DeleteAllByAuthor(ctx context.Context, authorID string) error {
	if err := g.store.DeleteAllByAuthor(ctx, authorID); err != nil {
		return apperrors.Wrap(apperrors.ErrRemoteUnavailable,
			"remote delete-by-author failed, local state untouched", err)
	}
	return g.replica.RemoveByAuthor(authorID)
}

// AddEntry creates a regular journal entry.
func (g *Gateway) AddEntry(ctx context.Context, person, body, note, attachmentRef string) (models.Record, error) {
	return g.Create(ctx, models.RecordKindRegular, person, Payload{
		Body:          body,
		Note:          note,
		AttachmentRef: attachmentRef,
	})
}

// AddActivity creates an activity record.
func (g *Gateway) AddActivity(ctx context.Context, name string) (models.Record, error) {
	owner := g.resolver.CurrentDisplayName()
	return g.Create(ctx, models.RecordKindActivity, owner, Payload{Body: name})
}

// RecordMove updates the profile's location and appends a location-update
// entry describing the move.
func (g *Gateway) RecordMove(ctx context.Context, location string, isTravel bool, whatFor string) (models.Record, error) {
	owner := g.resolver.CurrentDisplayName()

	var message string
	if isTravel {
		if whatFor != "" {
			message = fmt.Sprintf("is now in %s for %s", location, whatFor)
		} else {
			message = fmt.Sprintf("is now in %s", location)
		}
	} else {
		message = fmt.Sprintf("moved to %s", location)
	}

	if profile := g.replica.Profile(); profile != nil {
		profile.MoveTo(models.UUID(uuid.New()), location, isTravel)
		if err := g.SaveProfile(ctx, profile); err != nil {
			return models.Record{}, err
		}
	}

	return g.Create(ctx, models.RecordKindLocationUpdate, owner, Payload{Body: message})
}

// SaveProfile stamps and persists the profile locally, then pushes it in
// the background.
func (g *Gateway) SaveProfile(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = models.UUID(uuid.New())
	}
	if profile.CreatedAt == 0 {
		profile.CreatedAt = time.Now().Unix()
	}
	if profile.AuthorID == "" {
		profile.AuthorID = g.resolver.CurrentAuthorID(ctx)
	}
	profile.Touch()

	if err := g.replica.SetProfile(profile); err != nil {
		return err
	}

	g.pushProfile()
	return nil
}

// authorize enforces the authorship-ownership policy: only the record's
// author may mutate it, and records lacking an author identity are frozen.
func (g *Gateway) authorize(ctx context.Context, record models.Record) error {
	if !record.HasAuthor() {
		return apperrors.New(apperrors.ErrNotAuthor,
			"record "+record.ID.String()+" has no author identity")
	}
	current := g.resolver.CurrentAuthorID(ctx)
	if current == "" || current != record.AuthorID {
		return apperrors.New(apperrors.ErrNotAuthor,
			"record "+record.ID.String()+" belongs to another author")
	}
	return nil
}

// pushRecord uploads a record in the background, recording the assigned
// remote ref on success and journaling a retry on failure.
func (g *Gateway) pushRecord(record models.Record) {
	g.pushes.Add(1)
	go func() {
		defer g.pushes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), g.pushTimeout)
		defer cancel()

		ref, err := g.store.Save(ctx, record)
		if err != nil {
			logging.Warn("Remote save failed, journaling retry", map[string]interface{}{
				"record_id": record.ID.String(),
				"error":     err.Error(),
			})
			if _, qerr := g.queue.Enqueue(queue.OperationSave, record.ID, ""); qerr != nil {
				logging.Error("Failed to journal save retry", qerr, map[string]interface{}{
					"record_id": record.ID.String(),
				})
			}
			return
		}

		if err := g.replica.SetRemoteRef(record.ID, ref); err != nil {
			logging.Error("Failed to record remote ref", err, map[string]interface{}{
				"record_id": record.ID.String(),
			})
		}
	}()
}

// pushDelete issues a remote delete in the background, journaling a retry
// on failure.
func (g *Gateway) pushDelete(id models.UUID, ref string) {
	g.pushes.Add(1)
	go func() {
		defer g.pushes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), g.pushTimeout)
		defer cancel()

		if err := g.store.DeleteByRef(ctx, ref); err != nil {
			logging.Warn("Remote delete failed, journaling retry", map[string]interface{}{
				"record_id": id.String(),
				"error":     err.Error(),
			})
			if _, qerr := g.queue.Enqueue(queue.OperationDelete, id, ref); qerr != nil {
				logging.Error("Failed to journal delete retry", qerr, map[string]interface{}{
					"record_id": id.String(),
				})
			}
		}
	}()
}

// pushProfile uploads the current profile in the background.
func (g *Gateway) pushProfile() {
	g.pushes.Add(1)
	go func() {
		defer g.pushes.Done()

		ctx, cancel := context.WithTimeout(context.Background(), g.pushTimeout)
		defer cancel()

		profile := g.replica.Profile()
		if profile == nil {
			return
		}

		ref, err := g.store.SaveProfile(ctx, *profile)
		if err != nil {
			logging.Warn("Remote profile save failed, journaling retry", map[string]interface{}{
				"error": err.Error(),
			})
			if _, qerr := g.queue.Enqueue(queue.OperationSaveProfile, profile.ID, ""); qerr != nil {
				logging.Error("Failed to journal profile retry", qerr, nil)
			}
			return
		}

		if err := g.replica.SetProfileRemoteRef(ref); err != nil {
			logging.Error("Failed to record profile remote ref", err, nil)
		}
	}()
}

// DrainQueue pushes every journaled operation whose retry time has arrived.
// Each operation re-reads current replica state so stale payloads are never
// uploaded.
func (g *Gateway) DrainQueue(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		item, err := g.queue.Dequeue()
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}

		if err := g.processQueueItem(ctx, item); err != nil {
			if ferr := g.queue.Fail(item.ID, err); ferr != nil {
				return ferr
			}
			continue
		}
		if err := g.queue.Complete(item.ID); err != nil {
			return err
		}
	}
}

// processQueueItem executes one journaled operation against the store.
func (g *Gateway) processQueueItem(ctx context.Context, item *queue.Item) error {
	switch item.Operation {
	case queue.OperationSave:
		record, ok := g.replica.Get(item.RecordID)
		if !ok {
			// Deleted locally since the save was journaled.
			return nil
		}
		ref, err := g.store.Save(ctx, record)
		if err != nil {
			return err
		}
		return g.replica.SetRemoteRef(record.ID, ref)

	case queue.OperationDelete:
		if item.RemoteRef == "" {
			return apperrors.New(apperrors.ErrMissingRemoteRef,
				"journaled delete for "+item.RecordID.String()+" has no remote ref")
		}
		return g.store.DeleteByRef(ctx, item.RemoteRef)

	case queue.OperationSaveProfile:
		profile := g.replica.Profile()
		if profile == nil {
			return nil
		}
		ref, err := g.store.SaveProfile(ctx, *profile)
		if err != nil {
			return err
		}
		return g.replica.SetProfileRemoteRef(ref)

	default:
		return apperrors.New(apperrors.ErrInvalid,
			fmt.Sprintf("unknown queue operation %q", item.Operation))
	}
}
