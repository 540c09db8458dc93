package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/godilite/email-insights/internal/repository/models"
)

const (
	colAutomation = "Automacao"
)

// ParseMappingCSV reads a campaign-to-automation mapping file. The same
// header cleanup as the weekly export applies. Rows with an empty
// message name are skipped.
func ParseMappingCSV(r io.Reader) ([]models.MappingEntry, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read mapping header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[cleanHeader(name)] = i
	}

	var missing []string
	for _, name := range []string{colMessageName, colAutomation} {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("mapping file missing required columns: %s", strings.Join(missing, ", "))
	}

	var entries []models.MappingEntry
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read mapping line %d: %w", line, err)
		}

		name := ""
		if i := index[colMessageName]; i < len(record) {
			name = strings.TrimSpace(record[i])
		}
		if name == "" {
			continue
		}

		automation := ""
		if i := index[colAutomation]; i < len(record) {
			automation = strings.TrimSpace(record[i])
		}

		entries = append(entries, models.MappingEntry{
			MessageName: name,
			Automation:  automation,
		})
	}

	return entries, nil
}
