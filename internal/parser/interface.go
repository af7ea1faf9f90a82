// Package parser defines the strategy interface implemented by all
// statement format parsers.
package parser

import (
	"context"
	"io"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/domain"
)

// Parser is the strategy interface for all statement format parsers
type Parser interface {
	// Name returns parser identifier (e.g., "ibkr-activity", "ofx")
	Name() string

	// CanParse checks if parser can handle this file
	// Returns true if this parser should be used for the file
	CanParse(path string, header []byte) bool

	// Parse extracts a ParseResult from the statement content.
	//
	// Parse never returns an error for malformed statement content: content
	// problems surface through the result's Success flag and Errors list.
	// The returned error is reserved for I/O failures and context
	// cancellation.
	Parse(ctx context.Context, r io.Reader, meta *Metadata) (*domain.ParseResult, error)
}
