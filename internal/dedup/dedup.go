// Package dedup provides trade deduplication via SHA256 fingerprinting and
// state persistence, so re-importing an overlapping statement does not
// double-count executions.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
)

// State represents the deduplication state with fingerprint history.
type State struct {
	Version      int                           `json:"version"`
	Fingerprints map[string]*FingerprintRecord `json:"fingerprints"`
	Metadata     StateMetadata                 `json:"metadata"`
}

// FingerprintRecord tracks a trade fingerprint across multiple observations.
type FingerprintRecord struct {
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	Count     int       `json:"count"`
	TradeID   string    `json:"tradeId"`
}

// StateMetadata contains aggregate statistics about the state.
type StateMetadata struct {
	LastUpdated       time.Time `json:"lastUpdated"`
	TotalFingerprints int       `json:"totalFingerprints"`
}

// CurrentVersion is the current state file format version
const CurrentVersion = 1

// NewState creates an empty deduplication state.
func NewState() *State {
	return &State{
		Version:      CurrentVersion,
		Fingerprints: make(map[string]*FingerprintRecord),
		Metadata: StateMetadata{
			LastUpdated:       time.Now(),
			TotalFingerprints: 0,
		},
	}
}

// Fingerprint creates a SHA256 hash identifying one execution.
// Format: SHA256("{symbol}|{dateTime}|{quantity}|{price}").
// Symbol is normalized (uppercase, trimmed); quantity and price are
// formatted with fixed precision so float representation differences
// between imports do not defeat matching.
func Fingerprint(trade domain.Trade) string {
	symbol := strings.ToUpper(strings.TrimSpace(trade.Symbol))
	input := fmt.Sprintf("%s|%s|%.4f|%.6f",
		symbol, strings.TrimSpace(trade.DateTime), trade.Quantity, trade.TradePrice)

	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])
}

// LoadState loads a state file from disk.
// Returns os.IsNotExist error if file doesn't exist (caller should handle).
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err // Preserve os.IsNotExist for caller
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	if state.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported state file version %d (current version: %d)", state.Version, CurrentVersion)
	}

	if state.Fingerprints == nil {
		state.Fingerprints = make(map[string]*FingerprintRecord)
	}

	return &state, nil
}

// SaveState atomically writes the state to disk: write to temp file, then
// rename. Ensures the parent directory exists.
func SaveState(state *State, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	state.Metadata.LastUpdated = time.Now()
	state.Metadata.TotalFingerprints = len(state.Fingerprints)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tempFile, filePath); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// IsDuplicate checks if a fingerprint exists in the state.
func (s *State) IsDuplicate(fingerprint string) bool {
	_, exists := s.Fingerprints[fingerprint]
	return exists
}

// RecordTrade records a trade fingerprint in the state.
// If new: creates record with firstSeen=timestamp, count=1.
// If exists: updates lastSeen=timestamp, increments count.
func (s *State) RecordTrade(fingerprint, tradeID string, timestamp time.Time) error {
	if fingerprint == "" {
		return fmt.Errorf("fingerprint cannot be empty")
	}
	if tradeID == "" {
		return fmt.Errorf("trade ID cannot be empty")
	}

	if record, exists := s.Fingerprints[fingerprint]; exists {
		record.LastSeen = timestamp
		record.Count++
	} else {
		s.Fingerprints[fingerprint] = &FingerprintRecord{
			FirstSeen: timestamp,
			LastSeen:  timestamp,
			Count:     1,
			TradeID:   tradeID,
		}
	}

	return nil
}

// FilterNew partitions trades into unseen and duplicate sets without
// mutating the state. Trades duplicated within the same batch count as
// duplicates after their first occurrence.
func (s *State) FilterNew(trades []domain.Trade) (fresh, duplicates []domain.Trade) {
	seenInBatch := make(map[string]struct{})

	for _, trade := range trades {
		fp := Fingerprint(trade)
		if s.IsDuplicate(fp) {
			duplicates = append(duplicates, trade)
			continue
		}
		if _, ok := seenInBatch[fp]; ok {
			duplicates = append(duplicates, trade)
			continue
		}
		seenInBatch[fp] = struct{}{}
		fresh = append(fresh, trade)
	}

	return fresh, duplicates
}
