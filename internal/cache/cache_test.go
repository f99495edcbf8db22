// Package cache tests for local replica persistence.
package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/chronicle-app/chronicle/internal/errors"
	"github.com/chronicle-app/chronicle/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoadRecordsEmpty(t *testing.T) {
	store := openTestStore(t)

	records, err := store.LoadRecords()
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSaveAndLoadRecords(t *testing.T) {
	store := openTestStore(t)

	records := []models.Record{
		{
			ID:           "a1b2c3d4-0000-4000-8000-000000000001",
			OwnerLabel:   "Ryan",
			AuthorID:     "user-1",
			Kind:         models.RecordKindRegular,
			Body:         "went climbing",
			Note:         "probably bouldering",
			CreatedAt:    100,
			LastModified: 100,
		},
		{
			ID:           "a1b2c3d4-0000-4000-8000-000000000002",
			OwnerLabel:   "Evan",
			Kind:         models.RecordKindLocationUpdate,
			Body:         "moved to Denver",
			CreatedAt:    200,
			LastModified: 250,
			RemoteRef:    "rec-2",
		},
	}

	require.NoError(t, store.SaveRecords(records))

	loaded, err := store.LoadRecords()
	require.NoError(t, err)
	assert.Equal(t, records, loaded)
}

func TestSaveRecordsFullReplace(t *testing.T) {
	store := openTestStore(t)

	first := []models.Record{{ID: "a1b2c3d4-0000-4000-8000-000000000001", CreatedAt: 1, LastModified: 1}}
	second := []models.Record{{ID: "a1b2c3d4-0000-4000-8000-000000000002", CreatedAt: 2, LastModified: 2}}

	require.NoError(t, store.SaveRecords(first))
	require.NoError(t, store.SaveRecords(second))

	loaded, err := store.LoadRecords()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, second[0].ID, loaded[0].ID)
}

func TestSaveAndLoadProfile(t *testing.T) {
	store := openTestStore(t)

	loaded, err := store.LoadProfile()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	profile := &models.Profile{
		ID:           "b1b2c3d4-0000-4000-8000-000000000001",
		Name:         "Evan",
		Vision:       "be outside more",
		AuthorID:     "user-1",
		CreatedAt:    100,
		LastModified: 100,
		LocationHistory: []models.LocationEntry{
			{ID: "c1b2c3d4-0000-4000-8000-000000000001", Location: "Denver", Date: 50, IsTravel: true},
		},
	}
	require.NoError(t, store.SaveProfile(profile))

	loaded, err = store.LoadProfile()
	require.NoError(t, err)
	assert.Equal(t, profile, loaded)
}

func TestClear(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SaveRecords([]models.Record{{ID: "a1b2c3d4-0000-4000-8000-000000000001"}}))
	require.NoError(t, store.SaveProfile(&models.Profile{ID: "b1b2c3d4-0000-4000-8000-000000000001"}))

	require.NoError(t, store.Clear())

	records, err := store.LoadRecords()
	require.NoError(t, err)
	assert.Empty(t, records)

	profile, err := store.LoadProfile()
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestCorruptBlobSurfacesCacheError(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.put(keyRecords, []byte("{not json")))

	_, err := store.LoadRecords()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrCache))
}
