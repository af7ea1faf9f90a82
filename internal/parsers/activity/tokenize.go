// Package activity provides IBKR activity statement (CSV) parsing.
//
// Activity statements are section-oriented: every line starts with a section
// name followed by a row-type marker ("Header", "Data", "Total", ...). The
// parser splits the document into sections, applies a per-section column
// schema to pull typed values out of data rows, and assembles account,
// trade, position and cumulative P&L information into a ParseResult.
package activity

import "strings"

// Tokenize splits a raw statement line into comma-delimited fields.
//
// Commas inside double-quote spans do not split. A doubled quote ("") inside
// a quoted span is un-escaped to a single quote. Leading and trailing
// whitespace of each field is trimmed. Malformed quoting degrades
// gracefully: an unterminated quote consumes the rest of the line as one
// field. Pure function, no error conditions.
func Tokenize(line string) []string {
	fields := []string{}
	var b strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				// Escaped quote inside a quoted span
				b.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(b.String()))
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	fields = append(fields, strings.TrimSpace(b.String()))

	return fields
}

// splitAndTokenize breaks the full statement text into tokenized lines,
// skipping blank lines. Carriage returns from CRLF exports are stripped.
func splitAndTokenize(fullText string) [][]string {
	var lines [][]string
	for _, raw := range strings.Split(fullText, "\n") {
		raw = strings.TrimRight(raw, "\r")
		if strings.TrimSpace(raw) == "" {
			continue
		}
		lines = append(lines, Tokenize(raw))
	}
	return lines
}
