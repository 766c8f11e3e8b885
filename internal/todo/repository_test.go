package todo

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/todobot/internal/logging"
	"github.com/sandeepkv93/todobot/internal/storage"
)

type memStore struct {
	doc   *storage.Document
	saves int
	fail  bool
}

func (m *memStore) Load() *storage.Document {
	if m.doc == nil {
		return storage.NewDocument()
	}
	return m.doc.Clone()
}

func (m *memStore) Save(doc *storage.Document) error {
	if m.fail {
		return errors.New("disk full")
	}
	m.saves++
	m.doc = doc.Clone()
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRepo(t *testing.T, store storage.DocumentStore, clock *fakeClock) *Repository {
	t.Helper()
	crypter := storage.NewCrypter("test-secret", true, logging.Discard())
	opts := DefaultOptions()
	opts.Now = clock.Now
	repo, err := Open(store, crypter, opts)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	return repo
}

func startClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)}
}

func assertDenseIDs(t *testing.T, repo *Repository, user string) {
	t.Helper()
	for i, task := range repo.Tasks(user) {
		if task.ID != i+1 {
			t.Fatalf("expected dense ids, position %d has id %d", i, task.ID)
		}
	}
}

func TestAddTaskAndDenseRenumbering(t *testing.T) {
	repo := newTestRepo(t, &memStore{}, startClock())
	for i := 1; i <= 5; i++ {
		task, err := repo.AddTask("u1", fmt.Sprintf("task %d", i), nil)
		if err != nil {
			t.Fatalf("add task %d: %v", i, err)
		}
		if task.ID != i {
			t.Fatalf("expected id %d, got %d", i, task.ID)
		}
	}

	removed, err := repo.RemoveTask("u1", 2)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if removed.Content != "task 2" {
		t.Fatalf("unexpected removed task: %#v", removed)
	}
	assertDenseIDs(t, repo, "u1")

	tasks := repo.Tasks("u1")
	if len(tasks) != 4 || tasks[1].Content != "task 3" {
		t.Fatalf("unexpected tasks after remove: %#v", tasks)
	}

	if _, err := repo.RemoveTask("u1", 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.AddTask("u1", "   ", nil); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestAddTaskCapacity(t *testing.T) {
	repo := newTestRepo(t, &memStore{}, startClock())
	for i := 0; i < 50; i++ {
		if _, err := repo.AddTask("u1", fmt.Sprintf("task %d", i), nil); err != nil {
			t.Fatalf("add task %d: %v", i, err)
		}
	}
	if _, err := repo.AddTask("u1", "one too many", nil); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if got := len(repo.Tasks("u1")); got != 50 {
		t.Fatalf("expected 50 tasks, got %d", got)
	}
	if _, err := repo.AddTask("u2", "other owner", nil); err != nil {
		t.Fatalf("expected other owner unaffected, got %v", err)
	}
}

func TestCompleteAndUncomplete(t *testing.T) {
	clock := startClock()
	repo := newTestRepo(t, &memStore{}, clock)
	if _, err := repo.AddTask("u1", "write report", nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	clock.Advance(time.Hour)
	task, err := repo.CompleteTask("u1", 1)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !task.Completed || task.CompletedAt == nil || !task.CompletedAt.Equal(clock.now) {
		t.Fatalf("unexpected completed task: %#v", task)
	}
	if _, err := repo.CompleteTask("u1", 1); !errors.Is(err, ErrUnchanged) {
		t.Fatalf("expected ErrUnchanged, got %v", err)
	}

	task, err = repo.UncompleteTask("u1", 1)
	if err != nil {
		t.Fatalf("uncomplete: %v", err)
	}
	if task.Completed || task.CompletedAt != nil {
		t.Fatalf("unexpected uncompleted task: %#v", task)
	}
	if err := task.Validate(); err != nil {
		t.Fatalf("expected valid task, got %v", err)
	}
	if _, err := repo.UncompleteTask("u1", 1); !errors.Is(err, ErrUnchanged) {
		t.Fatalf("expected ErrUnchanged, got %v", err)
	}
	if _, err := repo.CompleteTask("u1", 7); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClearCompletedAndClearAll(t *testing.T) {
	repo := newTestRepo(t, &memStore{}, startClock())
	for _, c := range []string{"a", "b", "c", "d"} {
		if _, err := repo.AddTask("u1", c, nil); err != nil {
			t.Fatalf("add: %v", err)
		}
	}
	for _, id := range []int{1, 3} {
		if _, err := repo.CompleteTask("u1", id); err != nil {
			t.Fatalf("complete %d: %v", id, err)
		}
	}
	if n := repo.ClearCompletedTasks("u1"); n != 2 {
		t.Fatalf("expected 2 cleared, got %d", n)
	}
	tasks := repo.Tasks("u1")
	if len(tasks) != 2 || tasks[0].Content != "b" || tasks[1].Content != "d" {
		t.Fatalf("unexpected remaining tasks: %#v", tasks)
	}
	assertDenseIDs(t, repo, "u1")

	if _, ok := repo.ResolveRecipient(repo.Pseudonym("u1")); !ok {
		t.Fatal("expected identity mapping before clear all")
	}
	if n := repo.ClearAllTasks("u1"); n != 2 {
		t.Fatalf("expected 2 cleared, got %d", n)
	}
	if len(repo.Tasks("u1")) != 0 {
		t.Fatal("expected no tasks after clear all")
	}
	if _, ok := repo.ResolveRecipient(repo.Pseudonym("u1")); ok {
		t.Fatal("expected identity mapping erased by clear all")
	}
	if n := repo.ClearCompletedTasks("nobody"); n != 0 {
		t.Fatalf("expected 0 for unknown owner, got %d", n)
	}
}

func TestReminderOperations(t *testing.T) {
	clock := startClock()
	repo := newTestRepo(t, &memStore{}, clock)
	for i := 1; i <= 3; i++ {
		rem, err := repo.AddReminder("u1", fmt.Sprintf("reminder %d", i), clock.now.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("add reminder: %v", err)
		}
		if rem.ID != i {
			t.Fatalf("expected reminder id %d, got %d", i, rem.ID)
		}
	}
	if _, err := repo.DeleteReminder("u1", 1); err != nil {
		t.Fatalf("delete reminder: %v", err)
	}
	rems := repo.Reminders("u1")
	if len(rems) != 2 || rems[0].ID != 1 || rems[0].Message != "reminder 2" || rems[1].ID != 2 {
		t.Fatalf("unexpected reminders after delete: %#v", rems)
	}
	if _, err := repo.DeleteReminder("u1", 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := repo.ClearReminders("u1"); n != 2 {
		t.Fatalf("expected 2 cleared, got %d", n)
	}

	for i := 0; i < 20; i++ {
		if _, err := repo.AddReminder("u1", "again", clock.now.Add(time.Hour)); err != nil {
			t.Fatalf("add reminder %d: %v", i, err)
		}
	}
	if _, err := repo.AddReminder("u1", "over", clock.now.Add(time.Hour)); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
}

func TestDueRemindersAndMark(t *testing.T) {
	clock := startClock()
	repo := newTestRepo(t, &memStore{}, clock)
	if _, err := repo.AddReminder("u1", "stretch", clock.now.Add(10*time.Minute)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := repo.AddReminder("u2", "later", clock.now.Add(2*time.Hour)); err != nil {
		t.Fatalf("add: %v", err)
	}

	if due := repo.DueReminders(clock.now); len(due) != 0 {
		t.Fatalf("expected nothing due yet, got %#v", due)
	}

	clock.Advance(10 * time.Minute)
	due := repo.DueReminders(clock.now)
	if len(due) != 1 {
		t.Fatalf("expected one due reminder, got %#v", due)
	}
	if due[0].Recipient != "u1" || due[0].Reminder.Message != "stretch" || due[0].Pseudonym != repo.Pseudonym("u1") {
		t.Fatalf("unexpected due reminder: %#v", due[0])
	}

	if !repo.MarkReminderSent(due[0].Pseudonym, due[0].Reminder.ID) {
		t.Fatal("expected mark to find reminder")
	}
	if !repo.MarkReminderSent(due[0].Pseudonym, due[0].Reminder.ID) {
		t.Fatal("expected repeated mark to be idempotent")
	}
	if repo.MarkReminderSent(due[0].Pseudonym, 99) {
		t.Fatal("expected mark of unknown reminder to report false")
	}
	if again := repo.DueReminders(clock.now); len(again) != 0 {
		t.Fatalf("expected sent reminder omitted, got %#v", again)
	}
}

func TestDueReminderWithoutMappingHasEmptyRecipient(t *testing.T) {
	clock := startClock()
	repo := newTestRepo(t, &memStore{}, clock)
	if _, err := repo.AddReminder("u1", "orphan", clock.now); err != nil {
		t.Fatalf("add: %v", err)
	}
	repo.ClearAllTasks("u1")
	due := repo.DueReminders(clock.now)
	if len(due) != 1 || due[0].Recipient != "" {
		t.Fatalf("expected due reminder without recipient, got %#v", due)
	}
}

func TestUpcomingDeadlines(t *testing.T) {
	clock := startClock()
	repo := newTestRepo(t, &memStore{}, clock)
	in11 := clock.now.Add(11 * time.Hour)
	in13 := clock.now.Add(13 * time.Hour)
	past := clock.now.Add(-time.Hour)
	for _, tc := range []struct {
		content  string
		deadline *time.Time
	}{
		{"soon", &in11},
		{"later", &in13},
		{"done", &in11},
		{"overdue", &past},
		{"none", nil},
	} {
		if _, err := repo.AddTask("u1", tc.content, tc.deadline); err != nil {
			t.Fatalf("add %s: %v", tc.content, err)
		}
	}
	if _, err := repo.CompleteTask("u1", 3); err != nil {
		t.Fatalf("complete: %v", err)
	}

	upcoming := repo.UpcomingDeadlines(clock.now, 12*time.Hour)
	if len(upcoming) != 1 || upcoming[0].Task.Content != "soon" || upcoming[0].Recipient != "u1" {
		t.Fatalf("unexpected upcoming deadlines: %#v", upcoming)
	}

	if !repo.MarkDeadlineReminderSent(upcoming[0].Pseudonym, upcoming[0].Task.ID) {
		t.Fatal("expected mark to find task")
	}
	if again := repo.UpcomingDeadlines(clock.now, 12*time.Hour); len(again) != 0 {
		t.Fatalf("expected notified task omitted, got %#v", again)
	}

	if _, err := repo.SetDeadline("u1", 1, clock.now.Add(time.Hour)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	rearmed := repo.UpcomingDeadlines(clock.now, 12*time.Hour)
	if len(rearmed) != 1 || rearmed[0].Task.ID != 1 {
		t.Fatalf("expected new deadline to re-arm notification, got %#v", rearmed)
	}
}

func TestUpcomingDeadlinesIncludesWindowEnds(t *testing.T) {
	clock := startClock()
	repo := newTestRepo(t, &memStore{}, clock)
	lookahead := 12 * time.Hour
	for _, tc := range []struct {
		content  string
		deadline time.Time
	}{
		{"at now", clock.now},
		{"at cutoff", clock.now.Add(lookahead)},
		{"just before now", clock.now.Add(-time.Nanosecond)},
		{"just past cutoff", clock.now.Add(lookahead + time.Nanosecond)},
	} {
		deadline := tc.deadline
		if _, err := repo.AddTask("u1", tc.content, &deadline); err != nil {
			t.Fatalf("add %s: %v", tc.content, err)
		}
	}

	upcoming := repo.UpcomingDeadlines(clock.now, lookahead)
	if len(upcoming) != 2 {
		t.Fatalf("expected both window ends included, got %#v", upcoming)
	}
	if upcoming[0].Task.Content != "at now" || upcoming[1].Task.Content != "at cutoff" {
		t.Fatalf("unexpected upcoming order: %q, %q", upcoming[0].Task.Content, upcoming[1].Task.Content)
	}
}

func TestMarkDeliveredMatchesScannedRecord(t *testing.T) {
	clock := startClock()
	repo := newTestRepo(t, &memStore{}, clock)
	for _, msg := range []string{"one", "two", "three"} {
		if _, err := repo.AddReminder("u1", msg, clock.now); err != nil {
			t.Fatalf("add %s: %v", msg, err)
		}
	}
	due := repo.DueReminders(clock.now)
	if len(due) != 3 {
		t.Fatalf("expected three due reminders, got %d", len(due))
	}
	if _, err := repo.DeleteReminder("u1", 1); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if repo.MarkReminderDelivered(due[0]) {
		t.Fatal("expected deleted reminder not to be marked")
	}
	if !repo.MarkReminderDelivered(due[1]) {
		t.Fatal("expected renumbered reminder to be found")
	}
	got := repo.Reminders("u1")
	if !got[0].Sent || got[0].Message != "two" || got[1].Sent {
		t.Fatalf("expected only the delivered reminder marked, got %+v", got)
	}

	deadline := clock.now.Add(time.Hour)
	if _, err := repo.AddTask("u1", "pay rent", &deadline); err != nil {
		t.Fatalf("add task: %v", err)
	}
	upcoming := repo.UpcomingDeadlines(clock.now, 12*time.Hour)
	if len(upcoming) != 1 {
		t.Fatalf("expected one upcoming deadline, got %d", len(upcoming))
	}
	if _, err := repo.SetDeadline("u1", 1, clock.now.Add(2*time.Hour)); err != nil {
		t.Fatalf("set deadline: %v", err)
	}
	if repo.MarkDeadlineDelivered(upcoming[0]) {
		t.Fatal("expected moved deadline not to be marked by the old notice")
	}
	if again := repo.UpcomingDeadlines(clock.now, 12*time.Hour); len(again) != 1 {
		t.Fatalf("expected moved deadline still pending, got %#v", again)
	}
	if !repo.MarkDeadlineDelivered(repo.UpcomingDeadlines(clock.now, 12*time.Hour)[0]) {
		t.Fatal("expected current notice to mark the task")
	}
}

func TestCloseWithoutChangesLeavesStoreAlone(t *testing.T) {
	clock := startClock()
	seed := &memStore{}
	seeded := newTestRepo(t, seed, clock)
	if _, err := seeded.AddTask("u1", "keep", nil); err != nil {
		t.Fatalf("add: %v", err)
	}

	store := &memStore{doc: seed.doc}
	repo := newTestRepo(t, store, clock)
	repo.Tasks("u1")
	repo.DueReminders(clock.now)
	if !repo.ForceSave() {
		t.Fatal("expected clean force save to report success")
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("expected no writes for a read-only session, got %d", store.saves)
	}
}

func TestOpenReportsInvalidRecords(t *testing.T) {
	crypter := storage.NewCrypter("test-secret", true, logging.Discard())
	p := crypter.Hash("u1")
	created := storage.NewTimestamp(startClock().now)
	doc := storage.NewDocument()
	doc.Tasks[p] = []storage.TaskRecord{
		{ID: 1, Content: crypter.Encrypt("fine"), CreatedAt: created},
		{ID: 2, Content: crypter.Encrypt("done"), Completed: true, CreatedAt: created},
	}
	doc.Reminders[p] = []storage.ReminderRecord{{ID: 1, FireAt: created, CreatedAt: created}}

	var buf bytes.Buffer
	logOpts := logging.DefaultOptions()
	logOpts.Level = "warn"
	logger, err := logging.New(&buf, logOpts)
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	opts := DefaultOptions()
	opts.Logger = logger
	repo, err := Open(&memStore{doc: doc}, crypter, opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if n := repo.reportInvalid(); n != 2 {
		t.Fatalf("expected two invalid records, got %d", n)
	}
	out := buf.String()
	if !strings.Contains(out, "invalid task record") || !strings.Contains(out, "invalid reminder record") {
		t.Fatalf("expected invalid records logged, got %q", out)
	}
	if len(repo.Tasks("u1")) != 2 {
		t.Fatal("expected invalid records to stay in the document")
	}
}

func TestPersistenceRules(t *testing.T) {
	clock := startClock()
	store := &memStore{}
	repo := newTestRepo(t, store, clock)

	if _, err := repo.AddTask("u1", "a", &clock.now); err != nil {
		t.Fatalf("add: %v", err)
	}
	if store.saves != 1 {
		t.Fatalf("expected user mutation to be saved immediately, got %d saves", store.saves)
	}

	repo.MarkDeadlineReminderSent(repo.Pseudonym("u1"), 1)
	if store.saves != 1 || !repo.Pending() {
		t.Fatalf("expected scanner mark to be deferred, saves=%d", store.saves)
	}
	if repo.Flush() {
		t.Fatal("expected flush inside debounce window to wait")
	}
	clock.Advance(31 * time.Second)
	if !repo.Flush() || store.saves != 2 || repo.Pending() {
		t.Fatalf("expected flush after debounce window, saves=%d", store.saves)
	}
	if repo.Flush() {
		t.Fatal("expected flush with nothing pending to do nothing")
	}

	repo.MarkDeadlineReminderSent(repo.Pseudonym("u1"), 1)
	if repo.Pending() {
		t.Fatal("expected repeated mark not to dirty the document")
	}

	store.fail = true
	if _, err := repo.AddTask("u1", "b", nil); err != nil {
		t.Fatalf("expected add to succeed despite save failure, got %v", err)
	}
	if !repo.Pending() {
		t.Fatal("expected failed save to stay pending")
	}
	if err := repo.Close(); err == nil {
		t.Fatal("expected close to report failed save")
	}
	store.fail = false
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestFileRoundTrip(t *testing.T) {
	clock := startClock()
	path := filepath.Join(t.TempDir(), "todo_database.json")
	crypter := storage.NewCrypter("test-secret", true, logging.Discard())
	opts := DefaultOptions()
	opts.Now = clock.Now

	repo, err := Open(storage.NewFileStore(path, crypter, logging.Discard()), crypter, opts)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	deadline := clock.now.Add(48 * time.Hour)
	if _, err := repo.AddTask("u1", "ship release 🚀", &deadline); err != nil {
		t.Fatalf("add task: %v", err)
	}
	if _, err := repo.CompleteTask("u1", 1); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := repo.AddReminder("u1", "standup", clock.now.Add(time.Hour)); err != nil {
		t.Fatalf("add reminder: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(storage.NewFileStore(path, crypter, logging.Discard()), crypter, opts)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	tasks := reopened.Tasks("u1")
	if len(tasks) != 1 || tasks[0].Content != "ship release 🚀" || !tasks[0].Completed {
		t.Fatalf("unexpected tasks after reload: %#v", tasks)
	}
	if tasks[0].Deadline == nil || !tasks[0].Deadline.Equal(deadline) {
		t.Fatalf("unexpected deadline after reload: %v", tasks[0].Deadline)
	}
	rems := reopened.Reminders("u1")
	if len(rems) != 1 || rems[0].Message != "standup" || !rems[0].FireAt.Equal(clock.now.Add(time.Hour)) {
		t.Fatalf("unexpected reminders after reload: %#v", rems)
	}
	if recipient, ok := reopened.ResolveRecipient(reopened.Pseudonym("u1")); !ok || recipient != "u1" {
		t.Fatalf("expected recipient to survive reload, got %q", recipient)
	}

	snapshot := reopened.Snapshot()
	for _, rec := range snapshot.Tasks[reopened.Pseudonym("u1")] {
		if strings.Contains(rec.Content, "ship") {
			t.Fatal("expected stored content to be encrypted")
		}
	}
}
