package activity

// Row type markers found in the second field of every statement line.
const (
	rowTypeData   = "Data"
	rowTypeHeader = "Header"
)

// SectionOpenPositions is special-cased during section identification: its
// data region starts at the header's own line (inclusive), because open
// position statements place the header row itself among the rows the
// extractor must inspect for a "Header" marker later.
const SectionOpenPositions = "Open Positions"

// Sections groups contiguous data rows under their owning section name.
// Repeated sections are merged by appending rows in document order; Names
// preserves first-occurrence order.
type Sections struct {
	names []string
	rows  map[string][][]string
}

// Names returns section names in first-occurrence order.
func (s *Sections) Names() []string {
	return append([]string(nil), s.names...)
}

// Rows returns the accumulated data rows for a section name. The second
// return value reports whether the section was present at all.
func (s *Sections) Rows(name string) ([][]string, bool) {
	rows, ok := s.rows[name]
	return rows, ok
}

// Has reports whether a section occurs in the document.
func (s *Sections) Has(name string) bool {
	_, ok := s.rows[name]
	return ok
}

// Len returns the number of distinct sections.
func (s *Sections) Len() int {
	return len(s.names)
}

func (s *Sections) add(name string, row []string) {
	if _, ok := s.rows[name]; !ok {
		s.names = append(s.names, name)
	}
	s.rows[name] = append(s.rows[name], row)
}

// IdentifySections scans all lines of a statement, classifies each as a
// section header or data row, and groups contiguous data rows under their
// owning section name.
//
// A line is a section header when its second field is present and is not
// the literal "Data". Each header opens a data region that extends to the
// next header (exclusive). Within a region, rows are kept when their second
// field is "Data"; the "Open Positions" section additionally keeps "Header"
// rows and its region starts at the header line itself (see
// SectionOpenPositions).
func IdentifySections(fullText string) *Sections {
	return identifySectionLines(splitAndTokenize(fullText))
}

func identifySectionLines(lines [][]string) *Sections {
	s := &Sections{rows: make(map[string][][]string)}

	type headerMark struct {
		name  string
		index int
	}
	var headers []headerMark
	for i, fields := range lines {
		if len(fields) >= 2 && fields[1] != "" && fields[1] != rowTypeData {
			headers = append(headers, headerMark{name: fields[0], index: i})
		}
	}

	for hi, h := range headers {
		start := h.index + 1
		if h.name == SectionOpenPositions {
			start = h.index
		}
		end := len(lines)
		if hi+1 < len(headers) {
			end = headers[hi+1].index
		}
		if start > end {
			continue
		}

		for _, fields := range lines[start:end] {
			if len(fields) < 2 {
				continue
			}
			keep := fields[1] == rowTypeData
			if h.name == SectionOpenPositions {
				keep = keep || fields[1] == rowTypeHeader
			}
			if keep {
				s.add(h.name, fields)
			}
		}
	}

	return s
}
