package registry

import (
	"fmt"
	"io"
	"os"

	"github.com/rumor-ml/commons.systems/tradeparse/internal/parser"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/parsers/activity"
	"github.com/rumor-ml/commons.systems/tradeparse/internal/parsers/ofx"
)

// Registry holds all registered parsers
type Registry struct {
	parsers []parser.Parser
}

// New creates a registry with all built-in parsers
func New() *Registry {
	return &Registry{
		parsers: []parser.Parser{
			activity.NewParser(),
			ofx.NewParser(),
		},
	}
}

// Register adds a custom parser (for extensibility)
func (r *Registry) Register(p parser.Parser) {
	r.parsers = append(r.parsers, p)
}

// FindParser returns the best parser for this file.
// Reads first 512 bytes for format detection via header inspection, which
// is sufficient to detect magic numbers and headers in common brokerage
// formats (OFX, QFX, CSV activity statements).
func (r *Registry) FindParser(path string) (parser.Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	header := make([]byte, 512)
	n, err := f.Read(header)
	if err != nil && err != io.EOF {
		f.Close()
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}
	// EOF is OK - minimal statement files may be < 512 bytes. Parsers
	// receive whatever was read and handle variable header sizes.
	header = header[:n]

	for _, p := range r.parsers {
		if p.CanParse(path, header) {
			if err := f.Close(); err != nil {
				return nil, fmt.Errorf("failed to close file %s: %w", path, err)
			}
			return p, nil
		}
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file %s: %w", path, err)
	}
	return nil, fmt.Errorf("no parser found for file: %s", path)
}

// ListParsers returns all registered parser names
func (r *Registry) ListParsers() []string {
	names := make([]string, len(r.parsers))
	for i, p := range r.parsers {
		names[i] = p.Name()
	}
	return names
}
