// Package queue tests for the durable retry journal.
package queue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chronicle-app/chronicle/internal/errors"
)

func openTestQueue(t *testing.T, opts Options) *Queue {
	t.Helper()
	opts.InMemory = true
	q, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { q.Close() })
	return q
}

func TestEnqueueDequeue(t *testing.T) {
	q := openTestQueue(t, Options{})

	item, err := q.Enqueue(OperationSave, "rec-1", "")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, item.Status)
	assert.Equal(t, OperationSave, item.Operation)

	got, err := q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, StatusInProgress, got.Status)

	// Nothing else is ready while the item is in progress.
	next, err := q.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestDequeueOldestFirst(t *testing.T) {
	q := openTestQueue(t, Options{})

	first, err := q.Enqueue(OperationSave, "rec-1", "")
	require.NoError(t, err)
	second, err := q.Enqueue(OperationDelete, "rec-2", "ref-2")
	require.NoError(t, err)

	// Force distinct creation order even within the same second.
	second.CreatedAt = first.CreatedAt + 10
	require.NoError(t, q.writeItem(second))

	got, err := q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}

func TestCompleteRemovesItem(t *testing.T) {
	q := openTestQueue(t, Options{})

	item, err := q.Enqueue(OperationDelete, "rec-1", "ref-1")
	require.NoError(t, err)

	got, err := q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, q.Complete(item.ID))

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFailReschedulesWithBackoff(t *testing.T) {
	q := openTestQueue(t, Options{MaxRetries: 3})

	item, err := q.Enqueue(OperationSave, "rec-1", "")
	require.NoError(t, err)
	_, err = q.Dequeue()
	require.NoError(t, err)

	require.NoError(t, q.Fail(item.ID, errors.New("remote unavailable")))

	// Rescheduled, not dropped.
	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Not ready until the backoff delay passes.
	got, err := q.Dequeue()
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err := q.readItem(item.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	assert.Equal(t, "remote unavailable", stored.LastError)
	assert.Greater(t, stored.NextRetryAt, stored.CreatedAt)
}

func TestFailDropsAfterMaxRetries(t *testing.T) {
	q := openTestQueue(t, Options{MaxRetries: 2})

	item, err := q.Enqueue(OperationSave, "rec-1", "")
	require.NoError(t, err)

	require.NoError(t, q.Fail(item.ID, errors.New("attempt 1")))
	require.NoError(t, q.Fail(item.ID, errors.New("attempt 2")))

	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEnqueueFullQueue(t *testing.T) {
	q := openTestQueue(t, Options{MaxSize: 2})

	_, err := q.Enqueue(OperationSave, "rec-1", "")
	require.NoError(t, err)
	_, err = q.Enqueue(OperationSave, "rec-2", "")
	require.NoError(t, err)

	_, err = q.Enqueue(OperationSave, "rec-3", "")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrQueueFull, apperrors.Code(err))
}

func TestBackoffSeconds(t *testing.T) {
	assert.Equal(t, int64(120), backoffSeconds(1))
	assert.Equal(t, int64(240), backoffSeconds(2))
	assert.Equal(t, int64(480), backoffSeconds(3))
	assert.Equal(t, int64(3600), backoffSeconds(10))
}

func TestResetStale(t *testing.T) {
	q := openTestQueue(t, Options{})

	item, err := q.Enqueue(OperationSaveProfile, "", "")
	require.NoError(t, err)
	_, err = q.Dequeue()
	require.NoError(t, err)

	// Simulate a restart after a crash mid-operation.
	require.NoError(t, q.ResetStale())

	got, err := q.Dequeue()
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, item.ID, got.ID)
}
