package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	UserMappingKey = "user_mapping"
	RemindersKey   = "reminders"
)

const timestampLayout = time.RFC3339Nano

// Layouts written by older files, which carry no UTC offset.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

func IsReservedKey(key string) bool {
	return key == UserMappingKey || key == RemindersKey
}

// Timestamp is a JSON time that reads both RFC 3339 and offset-less ISO
// values. Unparseable values decode to the zero time instead of failing the
// whole document.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func TimestampPtr(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	return &Timestamp{Time: *t}
}

func (ts *Timestamp) TimePtr() *time.Time {
	if ts == nil || ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}

func ParseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(timestampLayout, raw); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("storage: invalid timestamp %q", raw)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Format(timestampLayout))
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		ts.Time = time.Time{}
		return nil
	}
	t, err := ParseTimestamp(*raw)
	if err != nil {
		ts.Time = time.Time{}
		return nil
	}
	ts.Time = t
	return nil
}

type TaskRecord struct {
	ID           int        `json:"id"`
	ContentHash  string     `json:"task_hash"`
	Content      string     `json:"task_encrypted"`
	Completed    bool       `json:"completed"`
	CreatedAt    Timestamp  `json:"created_at"`
	CompletedAt  *Timestamp `json:"completed_at"`
	Deadline     *Timestamp `json:"deadline"`
	ReminderSent bool       `json:"reminder_sent"`
}

type ReminderRecord struct {
	ID          int       `json:"id"`
	MessageHash string    `json:"message_hash"`
	Message     string    `json:"message_encrypted"`
	FireAt      Timestamp `json:"reminder_time"`
	CreatedAt   Timestamp `json:"created_at"`
	Sent        bool      `json:"sent"`
}

// Document is the whole persisted state. On disk the task lists sit at the
// top level keyed by pseudonym, next to the reserved user_mapping and
// reminders keys.
type Document struct {
	Tasks       map[string][]TaskRecord
	UserMapping map[string]string
	Reminders   map[string][]ReminderRecord

	skipped []string
}

func NewDocument() *Document {
	return &Document{
		Tasks:       make(map[string][]TaskRecord),
		UserMapping: make(map[string]string),
		Reminders:   make(map[string][]ReminderRecord),
	}
}

// SkippedKeys lists the entries that could not be decoded on load.
func (d *Document) SkippedKeys() []string {
	return append([]string(nil), d.skipped...)
}

func (d *Document) Empty() bool {
	return len(d.Tasks) == 0 && len(d.UserMapping) == 0 && len(d.Reminders) == 0
}

func (d *Document) Clone() *Document {
	out := NewDocument()
	for k, v := range d.Tasks {
		tasks := make([]TaskRecord, len(v))
		for i, rec := range v {
			rec.CompletedAt = cloneTimestamp(rec.CompletedAt)
			rec.Deadline = cloneTimestamp(rec.Deadline)
			tasks[i] = rec
		}
		out.Tasks[k] = tasks
	}
	for k, v := range d.UserMapping {
		out.UserMapping[k] = v
	}
	for k, v := range d.Reminders {
		out.Reminders[k] = append([]ReminderRecord(nil), v...)
	}
	return out
}

func cloneTimestamp(ts *Timestamp) *Timestamp {
	if ts == nil {
		return nil
	}
	c := *ts
	return &c
}

func (d *Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Tasks)+2)
	for pseudonym, tasks := range d.Tasks {
		if IsReservedKey(pseudonym) {
			return nil, fmt.Errorf("storage: task list uses reserved key %q", pseudonym)
		}
		if tasks == nil {
			tasks = []TaskRecord{}
		}
		out[pseudonym] = tasks
	}
	mapping := d.UserMapping
	if mapping == nil {
		mapping = map[string]string{}
	}
	reminders := d.Reminders
	if reminders == nil {
		reminders = map[string][]ReminderRecord{}
	}
	out[UserMappingKey] = mapping
	out[RemindersKey] = reminders

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON decodes leniently: an entry that does not have the expected
// shape is dropped and reported through SkippedKeys.
func (d *Document) UnmarshalJSON(data []byte) error {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return fmt.Errorf("storage: decode document: %w", err)
	}
	fresh := NewDocument()
	for key, raw := range top {
		switch key {
		case UserMappingKey:
			var entries map[string]json.RawMessage
			if err := json.Unmarshal(raw, &entries); err != nil {
				fresh.skipped = append(fresh.skipped, key)
				continue
			}
			for pseudonym, v := range entries {
				var s string
				if err := json.Unmarshal(v, &s); err != nil {
					fresh.skipped = append(fresh.skipped, key+"/"+pseudonym)
					continue
				}
				fresh.UserMapping[pseudonym] = s
			}
		case RemindersKey:
			var entries map[string]json.RawMessage
			if err := json.Unmarshal(raw, &entries); err != nil {
				fresh.skipped = append(fresh.skipped, key)
				continue
			}
			for pseudonym, v := range entries {
				var list []ReminderRecord
				if err := json.Unmarshal(v, &list); err != nil {
					fresh.skipped = append(fresh.skipped, key+"/"+pseudonym)
					continue
				}
				fresh.Reminders[pseudonym] = list
			}
		default:
			var list []TaskRecord
			if err := json.Unmarshal(raw, &list); err != nil {
				fresh.skipped = append(fresh.skipped, key)
				continue
			}
			fresh.Tasks[key] = list
		}
	}
	sort.Strings(fresh.skipped)
	*d = *fresh
	return nil
}
