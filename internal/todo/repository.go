// Package todo owns the per-user task lists and reminders. Every exported
// operation takes the repository lock, so command handlers and the scanner
// can share one Repository.
package todo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/sandeepkv93/todobot/internal/logging"
	"github.com/sandeepkv93/todobot/internal/model"
	"github.com/sandeepkv93/todobot/internal/storage"
)

var (
	ErrCapacityExceeded = errors.New("todo: capacity exceeded")
	ErrNotFound         = errors.New("todo: not found")
	ErrUnchanged        = errors.New("todo: already in requested state")
	ErrEmptyContent     = errors.New("todo: empty content")
)

type Options struct {
	MaxTasks     int
	MaxReminders int
	SaveDebounce time.Duration
	CacheSize    int
	Now          func() time.Time
	Logger       *log.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxTasks:     50,
		MaxReminders: 20,
		SaveDebounce: 30 * time.Second,
		CacheSize:    128,
	}
}

type Repository struct {
	mu       sync.Mutex
	store    storage.DocumentStore
	crypter  *storage.Crypter
	doc      *storage.Document
	opts     Options
	now      func() time.Time
	logger   *log.Logger
	cache    *lru.Cache[string, string]
	dirty    bool
	lastSave time.Time
}

// Open loads the document from store and returns a repository over it.
func Open(store storage.DocumentStore, crypter *storage.Crypter, opts Options) (*Repository, error) {
	if store == nil || crypter == nil {
		return nil, errors.New("todo: nil store or crypter")
	}
	defaults := DefaultOptions()
	if opts.MaxTasks <= 0 {
		opts.MaxTasks = defaults.MaxTasks
	}
	if opts.MaxReminders <= 0 {
		opts.MaxReminders = defaults.MaxReminders
	}
	if opts.SaveDebounce < 0 {
		opts.SaveDebounce = 0
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaults.CacheSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	cache, err := lru.New[string, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("todo: pseudonym cache: %w", err)
	}
	r := &Repository{
		store:   store,
		crypter: crypter,
		doc:     store.Load(),
		opts:    opts,
		now:     opts.Now,
		logger:  opts.Logger,
		cache:   cache,
	}
	r.lastSave = r.now()
	r.reportInvalid()
	return r, nil
}

// reportInvalid logs loaded records that fail validation. They stay in the
// document as stored, so the next save keeps them for manual repair.
func (r *Repository) reportInvalid() int {
	n := 0
	for _, p := range sortedKeys(r.doc.Tasks) {
		for _, rec := range r.doc.Tasks[p] {
			if err := r.taskFromRecord(rec).Validate(); err != nil {
				n++
				r.logger.Warn("invalid task record", "user", logging.Pseudonym(p), "id", rec.ID, "err", err)
			}
		}
	}
	for _, p := range sortedKeys(r.doc.Reminders) {
		for _, rec := range r.doc.Reminders[p] {
			if err := r.reminderFromRecord(rec).Validate(); err != nil {
				n++
				r.logger.Warn("invalid reminder record", "user", logging.Pseudonym(p), "id", rec.ID, "err", err)
			}
		}
	}
	return n
}

func (r *Repository) Limits() (maxTasks, maxReminders int) {
	return r.opts.MaxTasks, r.opts.MaxReminders
}

// Pseudonym returns the keyed hash under which userID's data is stored.
func (r *Repository) Pseudonym(userID string) string {
	if p, ok := r.cache.Get(userID); ok {
		return p
	}
	p := r.crypter.Hash(userID)
	r.cache.Add(userID, p)
	return p
}

func (r *Repository) AddTask(userID, content string, deadline *time.Time) (model.Task, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return model.Task{}, ErrEmptyContent
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.Pseudonym(userID)
	r.rememberRecipient(p, userID)
	tasks := r.doc.Tasks[p]
	if len(tasks) >= r.opts.MaxTasks {
		return model.Task{}, fmt.Errorf("%w: %d tasks", ErrCapacityExceeded, r.opts.MaxTasks)
	}
	rec := storage.TaskRecord{
		ID:          len(tasks) + 1,
		ContentHash: r.crypter.Hash(content),
		Content:     r.crypter.Encrypt(content),
		CreatedAt:   storage.NewTimestamp(r.now()),
		Deadline:    storage.TimestampPtr(deadline),
	}
	r.doc.Tasks[p] = append(tasks, rec)
	r.saveLocked()
	return r.taskFromRecord(rec), nil
}

func (r *Repository) Tasks(userID string) []model.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := r.doc.Tasks[r.Pseudonym(userID)]
	out := make([]model.Task, 0, len(recs))
	for _, rec := range recs {
		out = append(out, r.taskFromRecord(rec))
	}
	return out
}

func (r *Repository) Task(userID string, id int) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := r.doc.Tasks[r.Pseudonym(userID)]
	idx := findTask(tasks, id)
	if idx < 0 {
		return model.Task{}, fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	return r.taskFromRecord(tasks[idx]), nil
}

func (r *Repository) CompleteTask(userID string, id int) (model.Task, error) {
	return r.updateTask(userID, id, func(rec *storage.TaskRecord) error {
		if rec.Completed {
			return ErrUnchanged
		}
		now := storage.NewTimestamp(r.now())
		rec.Completed = true
		rec.CompletedAt = &now
		return nil
	})
}

func (r *Repository) UncompleteTask(userID string, id int) (model.Task, error) {
	return r.updateTask(userID, id, func(rec *storage.TaskRecord) error {
		if !rec.Completed {
			return ErrUnchanged
		}
		rec.Completed = false
		rec.CompletedAt = nil
		return nil
	})
}

// SetDeadline replaces the deadline and re-arms its notification.
func (r *Repository) SetDeadline(userID string, id int, deadline time.Time) (model.Task, error) {
	return r.updateTask(userID, id, func(rec *storage.TaskRecord) error {
		ts := storage.NewTimestamp(deadline)
		rec.Deadline = &ts
		rec.ReminderSent = false
		return nil
	})
}

func (r *Repository) updateTask(userID string, id int, apply func(*storage.TaskRecord) error) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.Pseudonym(userID)
	tasks := r.doc.Tasks[p]
	idx := findTask(tasks, id)
	if idx < 0 {
		return model.Task{}, fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	if err := apply(&tasks[idx]); err != nil {
		return r.taskFromRecord(tasks[idx]), err
	}
	r.saveLocked()
	return r.taskFromRecord(tasks[idx]), nil
}

// RemoveTask deletes one task and renumbers the rest 1..N-1.
func (r *Repository) RemoveTask(userID string, id int) (model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.Pseudonym(userID)
	tasks := r.doc.Tasks[p]
	idx := findTask(tasks, id)
	if idx < 0 {
		return model.Task{}, fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	removed := r.taskFromRecord(tasks[idx])
	tasks = append(tasks[:idx], tasks[idx+1:]...)
	renumberTasks(tasks)
	r.doc.Tasks[p] = tasks
	r.saveLocked()
	return removed, nil
}

func (r *Repository) ClearCompletedTasks(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.Pseudonym(userID)
	tasks, ok := r.doc.Tasks[p]
	if !ok {
		return 0
	}
	kept := make([]storage.TaskRecord, 0, len(tasks))
	for _, rec := range tasks {
		if !rec.Completed {
			kept = append(kept, rec)
		}
	}
	removed := len(tasks) - len(kept)
	renumberTasks(kept)
	r.doc.Tasks[p] = kept
	r.saveLocked()
	return removed
}

// ClearAllTasks deletes the task list and the identity mapping. Reminders
// stay, but cannot be delivered until the user adds a task or reminder again.
func (r *Repository) ClearAllTasks(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.Pseudonym(userID)
	n := len(r.doc.Tasks[p])
	delete(r.doc.Tasks, p)
	delete(r.doc.UserMapping, p)
	r.saveLocked()
	return n
}

func (r *Repository) AddReminder(userID, message string, fireAt time.Time) (model.Reminder, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return model.Reminder{}, ErrEmptyContent
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.Pseudonym(userID)
	r.rememberRecipient(p, userID)
	reminders := r.doc.Reminders[p]
	if len(reminders) >= r.opts.MaxReminders {
		return model.Reminder{}, fmt.Errorf("%w: %d reminders", ErrCapacityExceeded, r.opts.MaxReminders)
	}
	rec := storage.ReminderRecord{
		ID:          len(reminders) + 1,
		MessageHash: r.crypter.Hash(message),
		Message:     r.crypter.Encrypt(message),
		FireAt:      storage.NewTimestamp(fireAt),
		CreatedAt:   storage.NewTimestamp(r.now()),
	}
	r.doc.Reminders[p] = append(reminders, rec)
	r.saveLocked()
	return r.reminderFromRecord(rec), nil
}

func (r *Repository) Reminders(userID string) []model.Reminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	recs := r.doc.Reminders[r.Pseudonym(userID)]
	out := make([]model.Reminder, 0, len(recs))
	for _, rec := range recs {
		out = append(out, r.reminderFromRecord(rec))
	}
	return out
}

func (r *Repository) DeleteReminder(userID string, id int) (model.Reminder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.Pseudonym(userID)
	reminders := r.doc.Reminders[p]
	idx := findReminder(reminders, id)
	if idx < 0 {
		return model.Reminder{}, fmt.Errorf("%w: reminder %d", ErrNotFound, id)
	}
	removed := r.reminderFromRecord(reminders[idx])
	reminders = append(reminders[:idx], reminders[idx+1:]...)
	for i := range reminders {
		reminders[i].ID = i + 1
	}
	r.doc.Reminders[p] = reminders
	r.saveLocked()
	return removed, nil
}

func (r *Repository) ClearReminders(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.Pseudonym(userID)
	n := len(r.doc.Reminders[p])
	delete(r.doc.Reminders, p)
	r.saveLocked()
	return n
}

// MarkReminderSent is idempotent. It reports whether the reminder exists.
func (r *Repository) MarkReminderSent(pseudonym string, id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reminders := r.doc.Reminders[pseudonym]
	idx := findReminder(reminders, id)
	if idx < 0 {
		return false
	}
	if !reminders[idx].Sent {
		reminders[idx].Sent = true
		r.dirty = true
	}
	return true
}

func (r *Repository) MarkDeadlineReminderSent(pseudonym string, taskID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := r.doc.Tasks[pseudonym]
	idx := findTask(tasks, taskID)
	if idx < 0 {
		return false
	}
	if !tasks[idx].ReminderSent {
		tasks[idx].ReminderSent = true
		r.dirty = true
	}
	return true
}

// MarkReminderDelivered marks the reminder due was scanned from. The record
// is matched by creation time and message, so a delete that renumbers the
// list between scan and mark cannot move the mark onto another reminder.
// It reports whether the scanned reminder still exists.
func (r *Repository) MarkReminderDelivered(due model.DueReminder) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reminders := r.doc.Reminders[due.Pseudonym]
	want := due.Reminder
	idx := matchRecord(len(reminders), want.ID,
		func(i int) int { return reminders[i].ID },
		func(i int) bool {
			rec := reminders[i]
			return rec.CreatedAt.Time.Equal(want.CreatedAt) &&
				rec.FireAt.Time.Equal(want.FireAt) &&
				r.sameContent(rec.MessageHash, rec.Message, want.Message)
		})
	if idx < 0 {
		return false
	}
	if !reminders[idx].Sent {
		reminders[idx].Sent = true
		r.dirty = true
	}
	return true
}

// MarkDeadlineDelivered is MarkReminderDelivered for deadline notices. A
// task whose deadline changed since the scan is left unmarked.
func (r *Repository) MarkDeadlineDelivered(up model.UpcomingDeadline) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	tasks := r.doc.Tasks[up.Pseudonym]
	want := up.Task
	idx := matchRecord(len(tasks), want.ID,
		func(i int) int { return tasks[i].ID },
		func(i int) bool {
			rec := tasks[i]
			return rec.CreatedAt.Time.Equal(want.CreatedAt) &&
				sameDeadline(rec.Deadline.TimePtr(), want.Deadline) &&
				r.sameContent(rec.ContentHash, rec.Content, want.Content)
		})
	if idx < 0 {
		return false
	}
	if !tasks[idx].ReminderSent {
		tasks[idx].ReminderSent = true
		r.dirty = true
	}
	return true
}

func (r *Repository) sameContent(hash, stored, plain string) bool {
	if hash != "" && hash == r.crypter.Hash(plain) {
		return true
	}
	return r.crypter.Decrypt(stored) == plain
}

func (r *Repository) ResolveRecipient(pseudonym string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolveLocked(pseudonym)
}

// DueReminders returns unsent reminders whose fire time is not after now,
// ordered by fire time.
func (r *Repository) DueReminders(now time.Time) []model.DueReminder {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.DueReminder, 0)
	for _, p := range sortedKeys(r.doc.Reminders) {
		recipient, _ := r.resolveLocked(p)
		for _, rec := range r.doc.Reminders[p] {
			rem := r.reminderFromRecord(rec)
			if !rem.IsDue(now) {
				continue
			}
			out = append(out, model.DueReminder{Recipient: recipient, Pseudonym: p, Reminder: rem})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Reminder.FireAt.Before(out[j].Reminder.FireAt)
	})
	return out
}

// UpcomingDeadlines returns incomplete, not yet notified tasks with a
// deadline in [now, now+lookahead]. Overdue tasks are never included.
func (r *Repository) UpcomingDeadlines(now time.Time, lookahead time.Duration) []model.UpcomingDeadline {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := now.Add(lookahead)
	out := make([]model.UpcomingDeadline, 0)
	for _, p := range sortedKeys(r.doc.Tasks) {
		recipient, _ := r.resolveLocked(p)
		for _, rec := range r.doc.Tasks[p] {
			if rec.Completed || rec.ReminderSent {
				continue
			}
			deadline := rec.Deadline.TimePtr()
			if deadline == nil || deadline.Before(now) || deadline.After(cutoff) {
				continue
			}
			out = append(out, model.UpcomingDeadline{Recipient: recipient, Pseudonym: p, Task: r.taskFromRecord(rec)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Task.Deadline.Before(*out[j].Task.Deadline)
	})
	return out
}

// Flush writes pending changes once the debounce interval has passed since
// the last write. It reports whether a write happened.
func (r *Repository) Flush() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty || r.now().Sub(r.lastSave) < r.opts.SaveDebounce {
		return false
	}
	return r.saveLocked()
}

// ForceSave writes pending changes without waiting for the debounce
// interval. A clean repository never touches the store. It reports whether
// the store now holds every change.
func (r *Repository) ForceSave() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return true
	}
	return r.saveLocked()
}

func (r *Repository) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dirty
}

// Snapshot returns a deep copy of the stored document.
func (r *Repository) Snapshot() *storage.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc.Clone()
}

// Close writes pending changes. Like ForceSave it leaves the store alone
// when nothing changed, so read-only runs never rewrite the data file.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dirty && !r.saveLocked() {
		return errors.New("todo: final save failed")
	}
	return nil
}

func (r *Repository) saveLocked() bool {
	if err := r.store.Save(r.doc); err != nil {
		r.dirty = true
		r.logger.Error("save data file failed", "err", err)
		return false
	}
	r.dirty = false
	r.lastSave = r.now()
	return true
}

func (r *Repository) rememberRecipient(pseudonym, userID string) {
	if current, ok := r.doc.UserMapping[pseudonym]; ok && r.crypter.Decrypt(current) == userID {
		return
	}
	r.doc.UserMapping[pseudonym] = r.crypter.Encrypt(userID)
}

func (r *Repository) resolveLocked(pseudonym string) (string, bool) {
	enc, ok := r.doc.UserMapping[pseudonym]
	if !ok || enc == "" {
		return "", false
	}
	return r.crypter.Decrypt(enc), true
}

func (r *Repository) taskFromRecord(rec storage.TaskRecord) model.Task {
	return model.Task{
		ID:                   rec.ID,
		Content:              r.crypter.Decrypt(rec.Content),
		Completed:            rec.Completed,
		CreatedAt:            rec.CreatedAt.Time,
		CompletedAt:          rec.CompletedAt.TimePtr(),
		Deadline:             rec.Deadline.TimePtr(),
		DeadlineReminderSent: rec.ReminderSent,
	}
}

func (r *Repository) reminderFromRecord(rec storage.ReminderRecord) model.Reminder {
	return model.Reminder{
		ID:        rec.ID,
		Message:   r.crypter.Decrypt(rec.Message),
		FireAt:    rec.FireAt.Time,
		CreatedAt: rec.CreatedAt.Time,
		Sent:      rec.Sent,
	}
}

func findTask(tasks []storage.TaskRecord, id int) int {
	for i := range tasks {
		if tasks[i].ID == id {
			return i
		}
	}
	return -1
}

func findReminder(reminders []storage.ReminderRecord, id int) int {
	for i := range reminders {
		if reminders[i].ID == id {
			return i
		}
	}
	return -1
}

// matchRecord returns the index of the record that is still the scanned
// one, preferring the one that kept its id, or -1.
func matchRecord(n, id int, idAt func(int) int, same func(int) bool) int {
	found := -1
	for i := 0; i < n; i++ {
		if !same(i) {
			continue
		}
		if idAt(i) == id {
			return i
		}
		if found < 0 {
			found = i
		}
	}
	return found
}

func sameDeadline(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func renumberTasks(tasks []storage.TaskRecord) {
	for i := range tasks {
		tasks[i].ID = i + 1
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
