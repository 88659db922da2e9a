package export

import (
	"testing"

	"github.com/oncall-tools/genie-export/pkg/alert"
)

func sampleDetail() alert.Detail {
	return alert.Detail{
		"id":        "a-1",
		"alias":     "db-disk",
		"message":   "Disk usage above 90%",
		"status":    "closed",
		"priority":  "P2",
		"createdAt": "2026-08-20T10:15:30Z",
		"updatedAt": "2026-08-20T14:00:00Z",
		"source":    "prometheus",
		"integration": map[string]any{
			"id":   "i-9",
			"name": "Prometheus",
		},
		"tags": []any{"prod", "database"},
		"logs": []any{
			map[string]any{
				"type":      "AcknowledgeAlert",
				"owner":     "kim@example.com",
				"createdAt": "2026-08-20T10:30:00Z",
			},
			map[string]any{
				"type":      "AssignOwnership",
				"owner":     "lee@example.com",
				"createdAt": "2026-08-20T10:45:00Z",
			},
			map[string]any{
				"type":      "CloseAlert",
				"owner":     "lee@example.com",
				"createdAt": "2026-08-20T13:59:00Z",
			},
		},
	}
}

func TestBuildRows(t *testing.T) {
	rows := BuildRows([]alert.Detail{sampleDetail()})
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	row := rows[0]

	if row.ID != "a-1" {
		t.Errorf("ID = %q, want a-1", row.ID)
	}
	if row.CreatedAt != "2026-08-20 10:15:30" {
		t.Errorf("CreatedAt = %q, want formatted timestamp", row.CreatedAt)
	}
	if row.AcknowledgedBy != "kim@example.com" || row.AcknowledgedAt != "2026-08-20 10:30:00" {
		t.Errorf("Acknowledged = %q/%q, want kim@example.com at 10:30", row.AcknowledgedBy, row.AcknowledgedAt)
	}
	if row.AssignedTo != "lee@example.com" {
		t.Errorf("AssignedTo = %q, want lee@example.com", row.AssignedTo)
	}
	if row.ClosedBy != "lee@example.com" || row.ClosedAt != "2026-08-20 13:59:00" {
		t.Errorf("Closed = %q/%q, want lee@example.com at 13:59", row.ClosedBy, row.ClosedAt)
	}
	if row.Integration != "Prometheus" {
		t.Errorf("Integration = %q, want Prometheus", row.Integration)
	}
	if row.Tags != "prod, database" {
		t.Errorf("Tags = %q, want joined tags", row.Tags)
	}
}

func TestBuildRows_FirstLogEntryWins(t *testing.T) {
	d := sampleDetail()
	d["logs"] = []any{
		map[string]any{
			"type":      "AcknowledgeAlert",
			"owner":     "first@example.com",
			"createdAt": "2026-08-20T10:30:00Z",
		},
		map[string]any{
			"type":      "AcknowledgeAlert",
			"owner":     "second@example.com",
			"createdAt": "2026-08-20T11:30:00Z",
		},
	}

	rows := BuildRows([]alert.Detail{d})
	if rows[0].AcknowledgedBy != "first@example.com" {
		t.Errorf("AcknowledgedBy = %q, want the first acknowledge entry", rows[0].AcknowledgedBy)
	}
}

func TestBuildRows_OwnerBackfillsAssignment(t *testing.T) {
	d := alert.Detail{
		"id":    "a-2",
		"owner": "oncall@example.com",
	}

	rows := BuildRows([]alert.Detail{d})
	if rows[0].AssignedTo != "oncall@example.com" {
		t.Errorf("AssignedTo = %q, want owner backfill", rows[0].AssignedTo)
	}
}

func TestBuildRows_Empty(t *testing.T) {
	rows := BuildRows(nil)
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
}

func TestBuildRows_UnparseableTimestampKeptRaw(t *testing.T) {
	d := alert.Detail{
		"id":        "a-3",
		"createdAt": "yesterday-ish",
	}

	rows := BuildRows([]alert.Detail{d})
	if rows[0].CreatedAt != "yesterday-ish" {
		t.Errorf("CreatedAt = %q, want the raw value preserved", rows[0].CreatedAt)
	}
}

func TestRow_ValuesMatchColumns(t *testing.T) {
	row := Row{}
	if len(row.Values()) != len(Columns) {
		t.Errorf("Values() has %d cells, Columns has %d", len(row.Values()), len(Columns))
	}
}
