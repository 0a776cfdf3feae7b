// Package formatter renders query results for terminal output
package formatter

import (
	"fmt"
	"strings"
	"time"
)

// Formatter handles result output formatting
type Formatter struct{}

// New creates a new formatter instance
func New() *Formatter {
	return &Formatter{}
}

// FormatTable renders rows as an aligned text table. Column order follows
// the columns slice, not map iteration order.
func (f *Formatter) FormatTable(columns []string, rows []map[string]interface{}) string {
	if len(columns) == 0 {
		return "(no columns)\n"
	}

	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = len(col)
	}

	cells := make([][]string, len(rows))

	for r, row := range rows {
		cells[r] = make([]string, len(columns))

		for i, col := range columns {
			text := f.FormatCell(row[col])
			cells[r][i] = text

			if len(text) > widths[i] {
				widths[i] = len(text)
			}
		}
	}

	var sb strings.Builder

	writeRow := func(values []string) {
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fmt.Sprintf("%-*s", widths[i], v)
		}

		sb.WriteString(strings.TrimRight(strings.Join(parts, "  "), " "))
		sb.WriteString("\n")
	}

	writeRow(columns)

	separators := make([]string, len(columns))
	for i := range columns {
		separators[i] = strings.Repeat("-", widths[i])
	}

	writeRow(separators)

	for _, row := range cells {
		writeRow(row)
	}

	return sb.String()
}

// FormatCell renders a single database value
func (f *Formatter) FormatCell(v interface{}) string {
	if v == nil {
		return "NULL"
	}

	switch val := v.(type) {
	case float64:
		return fmt.Sprintf("%g", val)
	case float32:
		return fmt.Sprintf("%g", val)
	case time.Time:
		return val.Format("2006-01-02")
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// FormatSummary renders the one line result footer
func (f *Formatter) FormatSummary(rowCount int, elapsedMs int64, cached, truncated bool, confidence float64) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%d row(s) in %dms", rowCount, elapsedMs)

	if cached {
		sb.WriteString(" (cached)")
	}

	if truncated {
		sb.WriteString(" (truncated at row cap)")
	}

	fmt.Fprintf(&sb, ", confidence %.2f", confidence)

	return sb.String()
}
