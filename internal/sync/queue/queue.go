// Package queue provides a durable retry queue for pending remote operations.
//
// Local writes succeed immediately; the remote leg of a mutation that fails
// is journaled here and retried with exponential backoff. The journal is
// persisted in Badger so pending work survives a restart.
package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	apperrors "github.com/chronicle-app/chronicle/internal/errors"
	"github.com/chronicle-app/chronicle/internal/logging"
	"github.com/chronicle-app/chronicle/internal/models"
)

// Operation represents a pending remote operation type.
type Operation string

const (
	OperationSave        Operation = "save"
	OperationDelete      Operation = "delete"
	OperationSaveProfile Operation = "save_profile"
)

// ItemStatus represents the status of a queued operation.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusInProgress ItemStatus = "in_progress"
	StatusFailed     ItemStatus = "failed"
)

// Item is one journaled remote operation.
type Item struct {
	ID          string      `json:"id"`
	Operation   Operation   `json:"operation"`
	RecordID    models.UUID `json:"record_id,omitempty"`
	RemoteRef   string      `json:"remote_ref,omitempty"`
	RetryCount  int         `json:"retry_count"`
	MaxRetries  int         `json:"max_retries"`
	NextRetryAt int64       `json:"next_retry_at"`
	Status      ItemStatus  `json:"status"`
	CreatedAt   int64       `json:"created_at"`
	UpdatedAt   int64       `json:"updated_at"`
	LastError   string      `json:"last_error,omitempty"`
}

const keyPrefix = "queue/"

// Queue is a Badger-backed retry queue.
type Queue struct {
	db         *badger.DB
	mu         sync.Mutex
	maxSize    int
	maxRetries int
}

// Options configures a Queue.
type Options struct {
	// Dir is the Badger directory. Ignored when InMemory is set.
	Dir string
	// InMemory disables disk persistence. Used in tests.
	InMemory bool
	// MaxSize caps the number of journaled operations.
	MaxSize int
	// MaxRetries caps retry attempts per operation.
	MaxRetries int
}

// Open opens the queue journal.
func Open(opts Options) (*Queue, error) {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 1000
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}

	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		badgerOpts = badger.DefaultOptions(opts.Dir).WithSyncWrites(true)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue journal: %w", err)
	}

	return &Queue{
		db:         db,
		maxSize:    opts.MaxSize,
		maxRetries: opts.MaxRetries,
	}, nil
}

// Close closes the journal.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue journals a remote operation for retry.
func (q *Queue) Enqueue(op Operation, recordID models.UUID, remoteRef string) (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	size, err := q.lenLocked()
	if err != nil {
		return nil, err
	}
	if size >= q.maxSize {
		return nil, apperrors.New(apperrors.ErrQueueFull,
			fmt.Sprintf("queue is full (max size: %d)", q.maxSize))
	}

	now := time.Now().Unix()
	item := &Item{
		ID:          uuid.New().String(),
		Operation:   op,
		RecordID:    recordID,
		RemoteRef:   remoteRef,
		MaxRetries:  q.maxRetries,
		NextRetryAt: now,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := q.writeItem(item); err != nil {
		return nil, err
	}

	logging.Debug("Enqueued remote operation", map[string]interface{}{
		"op": string(op), "id": item.ID, "record_id": recordID.String(),
	})
	return item, nil
}

// Dequeue returns the next pending operation whose retry time has arrived,
// marking it in progress. Returns nil if nothing is ready.
func (q *Queue) Dequeue() (*Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().Unix()
	var ready *Item

	err := q.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(keyPrefix)); it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			var item Item
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &item)
			}); err != nil {
				return err
			}
			if item.Status == StatusPending && item.NextRetryAt <= now {
				if ready == nil || item.CreatedAt < ready.CreatedAt {
					copied := item
					ready = &copied
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan queue: %w", err)
	}
	if ready == nil {
		return nil, nil
	}

	ready.Status = StatusInProgress
	ready.UpdatedAt = now
	if err := q.writeItem(ready); err != nil {
		return nil, err
	}
	return ready, nil
}

// Complete removes a finished operation from the journal.
func (q *Queue) Complete(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + id))
	})
}

// Fail records a failed attempt. The operation is rescheduled with
// exponential backoff until MaxRetries, then dropped.
func (q *Queue) Fail(id string, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, err := q.readItem(id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("queue item %s not found", id)
	}

	item.RetryCount++
	item.LastError = cause.Error()
	item.UpdatedAt = time.Now().Unix()

	if item.RetryCount >= item.MaxRetries {
		logging.Warn("Remote operation failed permanently", map[string]interface{}{
			"op": string(item.Operation), "id": id, "error": cause.Error(),
		})
		return q.db.Update(func(txn *badger.Txn) error {
			return txn.Delete([]byte(keyPrefix + id))
		})
	}

	item.NextRetryAt = time.Now().Unix() + backoffSeconds(item.RetryCount)
	item.Status = StatusPending

	logging.Debug("Remote operation rescheduled", map[string]interface{}{
		"op": string(item.Operation), "id": id,
		"retry": item.RetryCount, "max": item.MaxRetries,
	})
	return q.writeItem(item)
}

// Len returns the number of journaled operations.
func (q *Queue) Len() (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *Queue) lenLocked() (int, error) {
	count := 0
	err := q.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(keyPrefix)); it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func (q *Queue) writeItem(item *Item) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("failed to encode queue item: %w", err)
	}
	return q.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+item.ID), data)
	})
}

func (q *Queue) readItem(id string) (*Item, error) {
	var item *Item
	err := q.db.View(func(txn *badger.Txn) error {
		entry, err := txn.Get([]byte(keyPrefix + id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return entry.Value(func(v []byte) error {
			var decoded Item
			if err := json.Unmarshal(v, &decoded); err != nil {
				return err
			}
			item = &decoded
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read queue item: %w", err)
	}
	return item, nil
}

// backoffSeconds returns the exponential retry delay: 2^retry minutes,
// capped at one hour.
func backoffSeconds(retryCount int) int64 {
	backoff := int64(1) << uint(retryCount)
	backoff *= 60
	if backoff > 3600 {
		backoff = 3600
	}
	return backoff
}

// ResetStale returns in-progress items to pending. Called at startup so
// operations interrupted by a crash are retried.
func (q *Queue) ResetStale() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var stale []*Item
	err := q.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(keyPrefix)); it.ValidForPrefix([]byte(keyPrefix)); it.Next() {
			var item Item
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &item)
			}); err != nil {
				return err
			}
			if item.Status == StatusInProgress {
				copied := item
				stale = append(stale, &copied)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	for _, item := range stale {
		item.Status = StatusPending
		item.NextRetryAt = now
		item.UpdatedAt = now
		if err := q.writeItem(item); err != nil {
			return err
		}
	}
	return nil
}
