// Package models provides data model definitions for the Chronicle sync engine.
package models

import "time"

// LocationEntry is a single entry in a profile's location history.
type LocationEntry struct {
	ID       UUID   `json:"id"`
	Location string `json:"location"`
	Date     int64  `json:"date"`
	IsTravel bool   `json:"is_travel"` // true for travel, false for a permanent move
}

// Profile is the singleton-per-author owner profile record. It follows the
// same remote-backed persistence pattern as Record: one per AuthorID, merged
// by LastModified when read by multiple devices.
type Profile struct {
	ID              UUID            `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Vision          string          `db:"vision" json:"vision,omitempty"`
	ImageRef        string          `db:"image_ref" json:"image_ref,omitempty"`
	CurrentLocation string          `db:"current_location" json:"current_location,omitempty"`
	LocationHistory []LocationEntry `db:"location_history" json:"location_history,omitempty"`
	AuthorID        string          `db:"author_id" json:"author_id,omitempty"`
	CreatedAt       int64           `db:"created_at" json:"created_at"`
	LastModified    int64           `db:"last_modified" json:"last_modified"`
	RemoteRef       string          `db:"remote_ref" json:"remote_ref,omitempty"`
}

// TableName returns the table name for Profile.
func (Profile) TableName() string {
	return "profiles"
}

// Touch updates the LastModified timestamp.
func (p *Profile) Touch() {
	p.LastModified = time.Now().Unix()
}

// IsPushed reports whether the profile has ever been saved to the remote store.
func (p *Profile) IsPushed() bool {
	return p.RemoteRef != ""
}

// MoveTo records a location change: the new location becomes current and is
// appended to the history.
func (p *Profile) MoveTo(id UUID, location string, isTravel bool) {
	p.CurrentLocation = location
	p.LocationHistory = append(p.LocationHistory, LocationEntry{
		ID:       id,
		Location: location,
		Date:     time.Now().Unix(),
		IsTravel: isTravel,
	})
	p.Touch()
}
