// Package alert defines the alert records exchanged with the Opsgenie API.
//
// The API does not publish a fixed schema for alert payloads, so records are
// kept as raw key/value maps. Typed accessors cover the handful of fields the
// fetch and export layers rely on; everything else passes through untouched.
package alert

import (
	"time"
)

// Summary is one entry from the alert list endpoint. At minimum it carries an
// identifier and a creation timestamp; all other keys are preserved as-is.
type Summary map[string]any

// Detail is the full record from the alert detail endpoint, a superset of
// Summary. The gateway merges the alert's audit log entries under the "logs"
// key (see LogEntries).
type Detail map[string]any

// ID returns the alert identifier, or "" when absent.
func (s Summary) ID() string {
	return stringField(s, "id")
}

// CreatedAt returns the alert creation timestamp, or the zero time when the
// field is absent or unparseable.
func (s Summary) CreatedAt() time.Time {
	return timeField(s, "createdAt")
}

// ID returns the alert identifier, or "" when absent.
func (d Detail) ID() string {
	return stringField(d, "id")
}

// CreatedAt returns the alert creation timestamp, or the zero time when the
// field is absent or unparseable.
func (d Detail) CreatedAt() time.Time {
	return timeField(d, "createdAt")
}

// String returns the named top-level field as a string, or "" when the field
// is absent or not a string.
func (d Detail) String(key string) string {
	return stringField(d, key)
}

// Time returns the named top-level field parsed as a timestamp.
func (d Detail) Time(key string) time.Time {
	return timeField(d, key)
}

// Tags returns the alert's tags, or nil when absent.
func (d Detail) Tags() []string {
	raw, ok := d["tags"].([]any)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}

// IntegrationName returns the name of the integration that created the alert,
// or "" when absent.
func (d Detail) IntegrationName() string {
	integration, ok := d["integration"].(map[string]any)
	if !ok {
		return ""
	}
	name, _ := integration["name"].(string)
	return name
}

// LogEntry is one audit log record attached to an alert detail. Entry types
// of interest are AcknowledgeAlert, AssignOwnership and CloseAlert.
type LogEntry map[string]any

// Type returns the log entry type, e.g. "AcknowledgeAlert".
func (e LogEntry) Type() string {
	return stringField(e, "type")
}

// Owner returns the user that performed the logged action.
func (e LogEntry) Owner() string {
	return stringField(e, "owner")
}

// CreatedAt returns the timestamp of the logged action.
func (e LogEntry) CreatedAt() time.Time {
	return timeField(e, "createdAt")
}

// LogEntries returns the audit log entries merged into the detail under the
// "logs" key, or nil when none were fetched.
func (d Detail) LogEntries() []LogEntry {
	raw, ok := d["logs"].([]any)
	if !ok {
		return nil
	}
	entries := make([]LogEntry, 0, len(raw))
	for _, e := range raw {
		if m, ok := e.(map[string]any); ok {
			entries = append(entries, LogEntry(m))
		}
	}
	return entries
}

// SetLogEntries stores raw audit log records under the "logs" key.
func (d Detail) SetLogEntries(logs []any) {
	d["logs"] = logs
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// timeField parses the named field as a timestamp. Opsgenie emits RFC 3339
// strings; numeric values are treated as unix milliseconds.
func timeField(m map[string]any, key string) time.Time {
	switch v := m[key].(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return t
		}
		return time.Time{}
	case float64:
		return time.UnixMilli(int64(v)).UTC()
	case int64:
		return time.UnixMilli(v).UTC()
	default:
		return time.Time{}
	}
}
