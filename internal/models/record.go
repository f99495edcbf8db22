// Package models provides data model definitions for the Chronicle sync engine.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*u = ""
	case string:
		*u = UUID(v)
	case []byte:
		*u = UUID(v)
	default:
		return fmt.Errorf("cannot scan %T into UUID", value)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// RecordKind discriminates the closed set of record kinds.
type RecordKind string

const (
	RecordKindRegular        RecordKind = "regular"
	RecordKindActivity       RecordKind = "activity"
	RecordKindLocationUpdate RecordKind = "location_update"
)

// Valid reports whether k is a known record kind.
func (k RecordKind) Valid() bool {
	switch k {
	case RecordKindRegular, RecordKindActivity, RecordKindLocationUpdate:
		return true
	}
	return false
}

// Record represents a unit of user-generated content in the shared journal.
//
// ID and CreatedAt are immutable after creation. LastModified is
// monotonically non-decreasing per ID at any single replica and is the
// sole conflict tie-breaker. RemoteRef is empty until the record has been
// successfully pushed to the remote store.
type Record struct {
	ID            UUID       `db:"id" json:"id"`
	OwnerLabel    string     `db:"owner_label" json:"owner_label"`
	AuthorID      string     `db:"author_id" json:"author_id,omitempty"`
	AuthorName    string     `db:"author_name" json:"author_name,omitempty"`
	Kind          RecordKind `db:"kind" json:"kind"`
	Body          string     `db:"body" json:"body"`
	Note          string     `db:"note" json:"note,omitempty"`
	AttachmentRef string     `db:"attachment_ref" json:"attachment_ref,omitempty"`
	CreatedAt     int64      `db:"created_at" json:"created_at"`
	LastModified  int64      `db:"last_modified" json:"last_modified"`
	RemoteRef     string     `db:"remote_ref" json:"remote_ref,omitempty"`
}

// TableName returns the table name for Record.
func (Record) TableName() string {
	return "records"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (r *Record) CreatedAtTime() time.Time {
	return time.Unix(r.CreatedAt, 0)
}

// LastModifiedTime returns the LastModified as time.Time.
func (r *Record) LastModifiedTime() time.Time {
	return time.Unix(r.LastModified, 0)
}

// Touch updates the LastModified timestamp.
func (r *Record) Touch() {
	r.LastModified = time.Now().Unix()
}

// IsPushed reports whether the record has ever been saved to the remote
// store. Only un-pushed records survive absence from a remote snapshot.
func (r *Record) IsPushed() bool {
	return r.RemoteRef != ""
}

// HasAuthor reports whether the record carries a resolved author identity.
// Legacy records created before author stamping do not.
func (r *Record) HasAuthor() bool {
	return r.AuthorID != ""
}
