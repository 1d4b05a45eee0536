package domain

import (
	"time"

	"github.com/google/uuid"
)

// LineStatus is the lifecycle status of a messaging line.
type LineStatus string

const (
	LineStatusActive       LineStatus = "active"
	LineStatusBanned       LineStatus = "banned"
	LineStatusDisconnected LineStatus = "disconnected"
)

// Line is a messaging-capable phone number under a gateway instance.
// Lines are a finite shared resource allocated to operators by segment.
type Line struct {
	ID              uuid.UUID     `json:"id"`
	PhoneNumber     string        `json:"phone_number"`
	Status          LineStatus    `json:"status"`
	SegmentID       uuid.NullUUID `json:"segment_id,omitempty"`
	GatewayInstance string        `json:"gateway_instance"`
	// Official channel credentials; both set when the line is connected
	// to the official cloud API instead of the fallback gateway.
	OfficialNumberID *string   `json:"official_number_id,omitempty"`
	OfficialToken    *string   `json:"-"`
	CreatedAt        time.Time `json:"created_at"`
}

// HasOfficialChannel reports whether the line carries official cloud
// API credentials.
func (l *Line) HasOfficialChannel() bool {
	return l.OfficialNumberID != nil && *l.OfficialNumberID != "" &&
		l.OfficialToken != nil && *l.OfficialToken != ""
}

// AgeDays is the line age used for rate-tier selection.
func (l *Line) AgeDays(now time.Time) int {
	return int(now.Sub(l.CreatedAt).Hours() / 24)
}

// Segment groups operators and lines by business segment.
type Segment struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	MaxOperatorsPerLine int       `json:"max_operators_per_line"`
	CreatedAt           time.Time `json:"created_at"`
}

// DefaultMaxOperatorsPerLine applies when a segment has no explicit cap.
const DefaultMaxOperatorsPerLine = 2
