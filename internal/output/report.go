package output

import (
	"io"
	"time"

	"github.com/meTasking/sync/pkg/interval"
	"github.com/meTasking/sync/pkg/provider"
)

// WriteReport renders the destination's run report in the requested
// format. Table output lists one row per record grouped by bucket;
// JSON and YAML emit the report structure as-is.
func WriteReport(w io.Writer, format Format, report *provider.Report) error {
	formatter := NewFormatter(format)
	if format == FormatTable {
		return formatter.Format(w, reportToTableData(report))
	}
	return formatter.Format(w, report)
}

func reportToTableData(report *provider.Report) *TableData {
	td := &TableData{
		Headers: []string{"Result", "ID", "Name", "Start", "End"},
	}
	buckets := []struct {
		label   string
		records []*interval.Record
	}{
		{"created", report.Created},
		{"updated", report.Updated},
		{"deleted", report.Deleted},
		{"skipped", report.Skipped},
		{"failed", report.Failed},
		{"unprocessed", report.Unprocessed},
	}
	for _, bucket := range buckets {
		for _, rec := range bucket.records {
			td.Rows = append(td.Rows, []string{
				bucket.label,
				rec.ID,
				rec.Name,
				rec.Start.Format(time.RFC3339),
				rec.End.Format(time.RFC3339),
			})
		}
	}
	return td
}
