package model

import (
	"time"

	"github.com/google/uuid"
)

// AccountRecord is a single extracted credential, normalized to
// "identifier:secret". Equality is exact string equality.
type AccountRecord string

// ScanRequest describes one extraction run. Immutable once constructed.
type ScanRequest struct {
	RequesterID int64
	Keyword     string
	Quota       int
	// Exclusion holds previously delivered records. Read-only for the
	// duration of the request and shared by reference across workers.
	Exclusion map[string]struct{}
	// Token is the command token the request was started under. The scan
	// aborts once a newer token is minted for the requester.
	Token uuid.UUID
}

// Summary describes a completed delivery.
type Summary struct {
	Name       string
	Timestamp  time.Time
	TotalLines int
}

// AuditReport is the result of validating identifiers in a delivered file.
type AuditReport struct {
	Valid   int
	Invalid int
	// InvalidSamples holds up to a handful of offending identifiers.
	InvalidSamples []string
}
