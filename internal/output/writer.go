package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
)

// Report is the JSON import result aggregated across all parsed
// statements.
type Report struct {
	GeneratedAt  time.Time            `json:"generatedAt"`
	Accounts     []domain.Account     `json:"accounts"`
	Trades       []domain.Trade       `json:"trades"`
	Positions    []domain.Position    `json:"positions"`
	OptionTrades []domain.OptionTrade `json:"optionTrades"`
	RoundTrips   []domain.RoundTrip   `json:"roundTrips"`
	CumulativePL float64              `json:"cumulativePL"`
	WinRate      float64              `json:"winRate"`
	Warnings     []string             `json:"warnings"`
}

// NewReport creates an empty report with initialized slices so JSON output
// renders [] instead of null.
func NewReport() *Report {
	return &Report{
		GeneratedAt:  time.Now(),
		Accounts:     []domain.Account{},
		Trades:       []domain.Trade{},
		Positions:    []domain.Position{},
		OptionTrades: []domain.OptionTrade{},
		RoundTrips:   []domain.RoundTrip{},
		Warnings:     []string{},
	}
}

// AddResult folds one successful parse result into the report. Accounts
// are deduplicated by ID; positions accumulate (the caller decides whether
// older snapshots were already merged away). Cumulative P&L sums across
// statements.
func (r *Report) AddResult(result *domain.ParseResult) {
	if result == nil || !result.Success {
		return
	}

	if result.Account.IsIdentified() && !r.hasAccount(result.Account.AccountID) {
		r.Accounts = append(r.Accounts, result.Account)
	}

	r.Trades = append(r.Trades, result.Trades...)
	r.Positions = append(r.Positions, result.Positions...)
	r.OptionTrades = append(r.OptionTrades, result.OptionTrades...)
	r.CumulativePL += result.CumulativePL
	r.Warnings = append(r.Warnings, result.Warnings...)
}

func (r *Report) hasAccount(accountID string) bool {
	for _, acc := range r.Accounts {
		if acc.AccountID == accountID {
			return true
		}
	}
	return false
}

// WriteOptions configures how the report is written
type WriteOptions struct {
	MergeMode bool   // If true, load existing file and merge
	FilePath  string // Output path (empty = stdout)
}

// WriteReport serializes the report to JSON with 2-space indentation
func WriteReport(report *Report, w io.Writer) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(report); err != nil {
		return fmt.Errorf("failed to encode report as JSON: %w", err)
	}

	return nil
}

// WriteReportToFile writes the report to file or stdout based on options
func WriteReportToFile(report *Report, opts WriteOptions) (err error) {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	if opts.MergeMode && opts.FilePath != "" {
		existing, err := LoadReport(opts.FilePath)
		if err != nil {
			// If file doesn't exist, treat as fresh mode
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to load existing report for merge: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Warning: merge mode requested but %s does not exist, creating new file\n", opts.FilePath)
		} else {
			mergeReports(existing, report)
			report = existing
		}
	}

	if opts.FilePath == "" {
		return WriteReport(report, os.Stdout)
	}

	f, err := os.Create(opts.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create output file %s: %w", opts.FilePath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close output file %s: %w", opts.FilePath, closeErr)
		}
	}()

	if err = WriteReport(report, f); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", opts.FilePath, err)
	}

	return nil
}

// LoadReport reads an existing report JSON file for merge mode
func LoadReport(filePath string) (*Report, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	f, err := os.Open(filePath)
	if err != nil {
		// Return unwrapped error so caller can check os.IsNotExist
		return nil, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close %s: %v\n", filePath, closeErr)
		}
	}()

	var report Report
	decoder := json.NewDecoder(f)
	if err := decoder.Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report JSON: %w", err)
	}

	return &report, nil
}

// mergeReports folds source into target. Accounts merge idempotently by
// ID; trades, option trades and warnings append; positions are replaced by
// the newer snapshot; cumulative P&L sums. Round trips and win rate come
// from the newer run since they are recomputed over the merged trade set
// by the caller when needed.
func mergeReports(target, source *Report) {
	for _, acc := range source.Accounts {
		if !target.hasAccount(acc.AccountID) {
			target.Accounts = append(target.Accounts, acc)
		}
	}

	target.Trades = append(target.Trades, source.Trades...)
	target.OptionTrades = append(target.OptionTrades, source.OptionTrades...)
	target.Warnings = append(target.Warnings, source.Warnings...)
	target.CumulativePL += source.CumulativePL

	if len(source.Positions) > 0 {
		target.Positions = source.Positions
	}
	if len(source.RoundTrips) > 0 {
		target.RoundTrips = source.RoundTrips
		target.WinRate = source.WinRate
	}
	target.GeneratedAt = source.GeneratedAt
}
