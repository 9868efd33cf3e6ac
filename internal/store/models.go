package store

import (
	"database/sql"
	"time"
)

// Reminder is a persisted per-user reminder row. RemindAt stays in its raw
// "HH:MM" text form here; the supervisor parses it at load so one corrupt row
// is skipped instead of failing startup.
type Reminder struct {
	UserID    int64
	Username  string
	RemindAt  string
	TZ        string
	UpdatedAt time.Time
}

// VoiceMemo is an admin-uploaded voice clip referenced by Telegram file_id.
type VoiceMemo struct {
	ID        int64
	FileID    string
	CreatedAt time.Time
}

// Interaction is one logged user action.
type Interaction struct {
	ID        int64
	UserID    int64
	Username  string
	Kind      string
	Data      string
	CreatedAt time.Time
}

// UserExport aggregates one user's data for the spreadsheet export.
type UserExport struct {
	UserID       int64
	Username     string
	RemindAt     string
	TZ           string
	UpdatedAt    time.Time
	PillsTaken   int
	FirstTaken   string // ISO date of the first acknowledgement, "" if none
	Interactions int
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func fromNullString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
