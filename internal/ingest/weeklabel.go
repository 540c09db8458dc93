package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const filenameDateLayout = "2006-01-02"

// ResolveWeekLabel picks the label for an ingested export: the explicit
// label when given, else the date range embedded in the filename, else
// the ISO week of the processing time.
func ResolveWeekLabel(explicit, sourceName string, now time.Time) string {
	if explicit != "" {
		return explicit
	}
	if label, ok := ParseLabelFromFilename(sourceName); ok {
		return label
	}
	year, week := now.ISOWeek()
	return fmt.Sprintf("Semana %d, %d", week, year)
}

// ParseLabelFromFilename extracts a week label from the export filename
// convention "..._sent_<start-date><end-date>.csv", where both dates
// are 10-character ISO dates. Returns false when the name does not
// follow the convention.
func ParseLabelFromFilename(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, ".csv") {
		return "", false
	}

	i := strings.Index(base, "sent_")
	if i < 0 {
		return "", false
	}

	datePart := strings.TrimSuffix(base[i+len("sent_"):], ".csv")
	if len(datePart) != 2*len(filenameDateLayout) {
		return "", false
	}

	start, end := datePart[:10], datePart[10:]
	if _, err := time.Parse(filenameDateLayout, start); err != nil {
		return "", false
	}
	if _, err := time.Parse(filenameDateLayout, end); err != nil {
		return "", false
	}

	return start + " a " + end, true
}
