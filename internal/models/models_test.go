// Package models tests for data model definitions.
package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestUUIDValue(t *testing.T) {
	id := UUID("123e4567-e89b-12d3-a456-426614174000")

	val, err := id.Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	if val != "123e4567-e89b-12d3-a456-426614174000" {
		t.Errorf("Value() = %v", val)
	}
}

func TestUUIDScan(t *testing.T) {
	var id UUID
	if err := id.Scan("abc"); err != nil || id != "abc" {
		t.Errorf("Scan(string) = %v, %v", id, err)
	}
	if err := id.Scan([]byte("def")); err != nil || id != "def" {
		t.Errorf("Scan([]byte) = %v, %v", id, err)
	}
	if err := id.Scan(nil); err != nil || id != "" {
		t.Errorf("Scan(nil) = %v, %v", id, err)
	}
	if err := id.Scan(42); err == nil {
		t.Error("Scan(int) should fail")
	}
}

func TestRecordKindValid(t *testing.T) {
	for _, kind := range []RecordKind{
		RecordKindRegular, RecordKindActivity, RecordKindLocationUpdate,
	} {
		if !kind.Valid() {
			t.Errorf("%q should be valid", kind)
		}
	}
	if RecordKind("selfie").Valid() {
		t.Error("unknown kind should be invalid")
	}
	if RecordKind("").Valid() {
		t.Error("empty kind should be invalid")
	}
}

func TestRecordTouch(t *testing.T) {
	record := Record{CreatedAt: 100, LastModified: 100}

	before := time.Now().Unix()
	record.Touch()

	if record.LastModified < before {
		t.Errorf("LastModified = %d, want >= %d", record.LastModified, before)
	}
	if record.CreatedAt != 100 {
		t.Error("Touch must not change CreatedAt")
	}
}

func TestRecordIsPushed(t *testing.T) {
	record := Record{ID: "r1"}
	if record.IsPushed() {
		t.Error("record without remote ref reported pushed")
	}
	record.RemoteRef = "rec-r1"
	if !record.IsPushed() {
		t.Error("record with remote ref reported un-pushed")
	}
}

func TestRecordHasAuthor(t *testing.T) {
	record := Record{ID: "r1"}
	if record.HasAuthor() {
		t.Error("legacy record reported an author")
	}
	record.AuthorID = "user-1"
	if !record.HasAuthor() {
		t.Error("authored record reported no author")
	}
}

func TestRecordJSONOmitsEmptyOptionalFields(t *testing.T) {
	record := Record{
		ID:           "r1",
		OwnerLabel:   "Sam",
		Kind:         RecordKindRegular,
		Body:         "text",
		CreatedAt:    100,
		LastModified: 100,
	}

	data, err := json.Marshal(record)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"author_id", "note", "attachment_ref", "remote_ref"} {
		if _, present := decoded[key]; present {
			t.Errorf("empty field %q serialized", key)
		}
	}
	if decoded["kind"] != "regular" {
		t.Errorf("kind = %v", decoded["kind"])
	}
}

func TestProfileMoveTo(t *testing.T) {
	profile := Profile{ID: "p1", Name: "Evan", CurrentLocation: "Portland"}

	profile.MoveTo("loc-1", "Tokyo", true)

	if profile.CurrentLocation != "Tokyo" {
		t.Errorf("CurrentLocation = %q", profile.CurrentLocation)
	}
	if len(profile.LocationHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(profile.LocationHistory))
	}
	entry := profile.LocationHistory[0]
	if entry.ID != "loc-1" || entry.Location != "Tokyo" || !entry.IsTravel {
		t.Errorf("history entry = %+v", entry)
	}
	if entry.Date == 0 {
		t.Error("history entry missing date")
	}
	if profile.LastModified == 0 {
		t.Error("MoveTo must touch LastModified")
	}

	profile.MoveTo("loc-2", "Lisbon", false)
	if len(profile.LocationHistory) != 2 {
		t.Errorf("history length = %d, want 2", len(profile.LocationHistory))
	}
	if profile.CurrentLocation != "Lisbon" {
		t.Errorf("CurrentLocation = %q", profile.CurrentLocation)
	}
}

func TestProfileIsPushed(t *testing.T) {
	profile := Profile{ID: "p1"}
	if profile.IsPushed() {
		t.Error("profile without remote ref reported pushed")
	}
	profile.RemoteRef = "prof-p1"
	if !profile.IsPushed() {
		t.Error("profile with remote ref reported un-pushed")
	}
}
