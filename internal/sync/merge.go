// Package sync provides local/cloud reconciliation for the record replica.
package sync

import (
	"sort"

	"github.com/chronicle-app/chronicle/internal/models"
)

// Merge reconciles a fetched remote snapshot into the local replica and
// returns the new authoritative collection.
//
// For records present on both sides the copy with the greater LastModified
// wins; ties keep the local copy. Remote-only records are added. Local
// records absent from the snapshot are kept only while they have never been
// pushed; a previously pushed record that is missing remotely has been
// deleted on another device, and its absence is the tombstone.
//
// The result is sorted by CreatedAt ascending, the canonical journal order.
// Merge is pure and idempotent: with unchanged inputs, a second pass
// returns the same collection.
func Merge(local, remote []models.Record) []models.Record {
	localByID := make(map[models.UUID]models.Record, len(local))
	for _, rec := range local {
		localByID[rec.ID] = rec
	}

	remoteIDs := make(map[models.UUID]bool, len(remote))
	merged := make([]models.Record, 0, len(remote)+len(local))

	for _, remoteRec := range remote {
		remoteIDs[remoteRec.ID] = true
		localRec, ok := localByID[remoteRec.ID]
		if !ok {
			merged = append(merged, remoteRec)
			continue
		}
		if remoteRec.LastModified > localRec.LastModified {
			merged = append(merged, remoteRec)
		} else {
			merged = append(merged, localRec)
		}
	}

	for _, localRec := range local {
		if remoteIDs[localRec.ID] {
			continue
		}
		if !localRec.IsPushed() {
			// Never uploaded: still pending, not deleted.
			merged = append(merged, localRec)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt < merged[j].CreatedAt
	})

	return merged
}

// MergeProfile reconciles the singleton profile: the copy with the greater
// LastModified wins, ties keep local. A nil side loses to the other.
func MergeProfile(local, remote *models.Profile) *models.Profile {
	if local == nil {
		return remote
	}
	if remote == nil {
		return local
	}
	if remote.LastModified > local.LastModified {
		return remote
	}
	return local
}
