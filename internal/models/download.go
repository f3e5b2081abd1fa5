package models

import "time"

// DownloadEvent is an append-only record of one tracked download.
type DownloadEvent struct {
	ID           string    `db:"id" json:"id"`
	MaterialID   string    `db:"material_id" json:"material_id"`
	UserID       string    `db:"user_id" json:"user_id"`
	DownloadedAt time.Time `db:"downloaded_at" json:"downloaded_at"`
}

// RecentDownload joins an event with material and user display fields.
// Display fields are empty when the material or user no longer exists.
type RecentDownload struct {
	DownloadEvent
	MaterialTitle string       `db:"material_title" json:"material_title"`
	MaterialType  MaterialType `db:"material_type" json:"material_type"`
	FirstName     string       `db:"first_name" json:"first_name"`
	LastName      string       `db:"last_name" json:"last_name"`
	Department    string       `db:"department" json:"department"`
	Level         int          `db:"current_level" json:"level"`
}
