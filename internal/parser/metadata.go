package parser

import (
	"fmt"
	"time"
)

// Metadata contains context about the file being parsed.
// Extracted from directory structure: ~/statements/{broker}/{account}/[{period}/]file.ext
//
// Create instances using NewMetadata(filePath, detectedAt). Optional fields
// (broker, account, period) can be set after construction using setter
// methods.
//
// When Broker() or AccountHint() return empty strings, the file path didn't
// match the expected directory structure. This is not an error - the
// statement content itself is the authoritative source for account identity.
type Metadata struct {
	filePath    string
	broker      string // Inferred from directory (e.g., "interactive_brokers")
	accountHint string // Inferred from directory (e.g., "U1234567")
	period      string // Optional period directory (e.g., "2025-10")
	detectedAt  time.Time
}

// NewMetadata creates a new Metadata instance with validated required fields.
// Returns an error if filePath is empty or detectedAt is zero.
func NewMetadata(filePath string, detectedAt time.Time) (*Metadata, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}
	if detectedAt.IsZero() {
		return nil, fmt.Errorf("detected time cannot be zero")
	}
	return &Metadata{
		filePath:   filePath,
		detectedAt: detectedAt,
	}, nil
}

// FilePath returns the absolute file path
func (m *Metadata) FilePath() string {
	return m.filePath
}

// Broker returns the broker name inferred from directory structure.
// Returns empty string if path didn't match expected structure.
func (m *Metadata) Broker() string {
	return m.broker
}

// AccountHint returns the account identifier inferred from directory
// structure. Returns empty string if path didn't match expected structure.
func (m *Metadata) AccountHint() string {
	return m.accountHint
}

// Period returns the period inferred from directory structure.
// Returns empty string if no period directory exists.
func (m *Metadata) Period() string {
	return m.period
}

// DetectedAt returns the timestamp when the file was detected
func (m *Metadata) DetectedAt() time.Time {
	return m.detectedAt
}

// SetBroker sets the broker name
func (m *Metadata) SetBroker(broker string) {
	m.broker = broker
}

// SetAccountHint sets the account identifier hint
func (m *Metadata) SetAccountHint(accountHint string) {
	m.accountHint = accountHint
}

// SetPeriod sets the period
func (m *Metadata) SetPeriod(period string) {
	m.period = period
}
