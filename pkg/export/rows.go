// Package export flattens alert detail records into tabular rows and writes
// them as a formatted spreadsheet.
package export

import (
	"strings"

	"github.com/oncall-tools/genie-export/pkg/alert"
)

// Audit log entry types that populate the ownership columns.
const (
	logTypeAcknowledge = "AcknowledgeAlert"
	logTypeAssign      = "AssignOwnership"
	logTypeClose       = "CloseAlert"
)

// timestampLayout is the human-readable timestamp format used in exports.
const timestampLayout = "2006-01-02 15:04:05"

// Row is one exported alert.
type Row struct {
	ID             string
	Alias          string
	Message        string
	Status         string
	Priority       string
	CreatedAt      string
	UpdatedAt      string
	AcknowledgedBy string
	AcknowledgedAt string
	AssignedTo     string
	AssignedAt     string
	ClosedBy       string
	ClosedAt       string
	Source         string
	Integration    string
	Tags           string
	Description    string
}

// Columns is the export column order.
var Columns = []string{
	"Alert ID", "Alert Alias", "Message", "Status", "Priority",
	"Created At", "Updated At",
	"Acknowledged By", "Acknowledged At",
	"Assigned To", "Assigned At",
	"Closed By", "Closed At",
	"Source", "Integration", "Tags", "Description",
}

// Values returns the row's cells in Columns order.
func (r Row) Values() []any {
	return []any{
		r.ID, r.Alias, r.Message, r.Status, r.Priority,
		r.CreatedAt, r.UpdatedAt,
		r.AcknowledgedBy, r.AcknowledgedAt,
		r.AssignedTo, r.AssignedAt,
		r.ClosedBy, r.ClosedAt,
		r.Source, r.Integration, r.Tags, r.Description,
	}
}

// BuildRows flattens alert details into rows, reading the ownership columns
// from each alert's audit log. The first matching log entry of each type
// wins; an owner on the alert record itself backfills AssignedTo when the
// log carried no assignment.
func BuildRows(details []alert.Detail) []Row {
	rows := make([]Row, 0, len(details))
	for _, d := range details {
		row := Row{
			ID:          d.ID(),
			Alias:       d.String("alias"),
			Message:     d.String("message"),
			Status:      d.String("status"),
			Priority:    d.String("priority"),
			CreatedAt:   formatTimestamp(d, "createdAt"),
			UpdatedAt:   formatTimestamp(d, "updatedAt"),
			Source:      d.String("source"),
			Integration: d.IntegrationName(),
			Tags:        strings.Join(d.Tags(), ", "),
			Description: d.String("description"),
		}

		for _, entry := range d.LogEntries() {
			at := formatLogTimestamp(entry)
			switch entry.Type() {
			case logTypeAcknowledge:
				if row.AcknowledgedBy == "" {
					row.AcknowledgedBy = entry.Owner()
					row.AcknowledgedAt = at
				}
			case logTypeAssign:
				if row.AssignedTo == "" {
					row.AssignedTo = entry.Owner()
					row.AssignedAt = at
				}
			case logTypeClose:
				if row.ClosedBy == "" {
					row.ClosedBy = entry.Owner()
					row.ClosedAt = at
				}
			}
		}

		if row.AssignedTo == "" {
			row.AssignedTo = d.String("owner")
		}

		rows = append(rows, row)
	}
	return rows
}

func formatTimestamp(d alert.Detail, key string) string {
	t := d.Time(key)
	if t.IsZero() {
		// Keep the raw value when it exists but did not parse.
		return d.String(key)
	}
	return t.Format(timestampLayout)
}

func formatLogTimestamp(e alert.LogEntry) string {
	t := e.CreatedAt()
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}
