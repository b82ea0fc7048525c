// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Tokens collects an issued access token.
type Tokens struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID           uuid.UUID // PK
	Username     string    // unique
	PasswordHash string    // encoded Argon2id hash, see crypto.HashPassword
	CreatedAt    time.Time
}

// Solve is a single timed attempt recorded for a user.
type Solve struct {
	ID        int64
	UserID    uuid.UUID // FK -> users.id
	TimeMs    int64     // >= 0
	Scramble  string
	CreatedAt time.Time
}

// NewSolve is a client request to record a solve.
type NewSolve struct {
	TimeMs   int64
	Scramble string
}

// Record is a single world record entry. Result is in hundredths of a second.
type Record struct {
	Result          int64  `json:"result"`
	PersonName      string `json:"person_name"`
	CompetitionName string `json:"competition_name"`
	Year            int    `json:"year"`
}

// EventRecords holds the single and average records of one event.
type EventRecords struct {
	Single  Record `json:"single"`
	Average Record `json:"average"`
}

// WorldRecords is the stats document keyed by WCA event id ("333", ...).
type WorldRecords struct {
	Records map[string]EventRecords `json:"records"`
}
