package earlog

import (
	"strings"

	"codeberg.org/mutker/drowsyctl/internal/errors"
)

const (
	columnTimestamp = "timestamp"
	columnEAR       = "ear"
	columnStatus    = "status"
)

// Header is the canonical column layout written to new logs.
var Header = []string{columnTimestamp, columnEAR, columnStatus}

// legacyColumns maps column names used by earlier log versions onto their
// canonical name.
var legacyColumns = map[string]string{
	"ear_value": columnEAR,
}

// layout records where each canonical column sits in a file's header.
// status is -1 when the file has no status column. Rows shorter than width
// are incomplete.
type layout struct {
	width     int
	timestamp int
	ear       int
	status    int
	legacy    bool
}

// resolveLayout matches a header row against the current schema first and
// falls back to the legacy column names.
func resolveLayout(header []string) (layout, error) {
	l := layout{width: len(header), timestamp: -1, ear: -1, status: -1}

	canonical := make([]string, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		canonical[i] = name
	}

	assign := func(name string, i int) {
		switch name {
		case columnTimestamp:
			if l.timestamp < 0 {
				l.timestamp = i
			}
		case columnEAR:
			if l.ear < 0 {
				l.ear = i
			}
		case columnStatus:
			if l.status < 0 {
				l.status = i
			}
		}
	}

	for i, name := range canonical {
		assign(name, i)
	}
	for i, name := range canonical {
		if mapped, ok := legacyColumns[name]; ok {
			before := l
			assign(mapped, i)
			if before != l {
				l.legacy = true
			}
		}
	}

	if l.timestamp < 0 || l.ear < 0 {
		return l, errors.New().WithData(errors.ErrLogSchema, struct {
			Columns []string
		}{header})
	}

	return l, nil
}
