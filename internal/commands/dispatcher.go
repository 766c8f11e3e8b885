package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sandeepkv93/todobot/internal/model"
	"github.com/sandeepkv93/todobot/internal/timeparse"
	"github.com/sandeepkv93/todobot/internal/todo"
	"github.com/sandeepkv93/todobot/internal/views"
)

// Repository is the subset of *todo.Repository the dispatcher drives.
type Repository interface {
	Limits() (maxTasks, maxReminders int)
	AddTask(userID, content string, deadline *time.Time) (model.Task, error)
	Tasks(userID string) []model.Task
	Task(userID string, id int) (model.Task, error)
	SetDeadline(userID string, id int, deadline time.Time) (model.Task, error)
	CompleteTask(userID string, id int) (model.Task, error)
	UncompleteTask(userID string, id int) (model.Task, error)
	RemoveTask(userID string, id int) (model.Task, error)
	ClearCompletedTasks(userID string) int
	ClearAllTasks(userID string) int
	AddReminder(userID, message string, fireAt time.Time) (model.Reminder, error)
	Reminders(userID string) []model.Reminder
	DeleteReminder(userID string, id int) (model.Reminder, error)
	ClearReminders(userID string) int
}

type Limits struct {
	MaxTaskLength     int
	MaxReminderLength int
}

func DefaultLimits() Limits {
	return Limits{MaxTaskLength: 200, MaxReminderLength: 200}
}

type Dispatcher struct {
	Repo   Repository
	Now    func() time.Time
	Limits Limits
}

// userError carries the text shown to the user alongside the cause.
type userError struct {
	msg string
	err error
}

func (e *userError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *userError) Unwrap() error { return e.err }

func failf(err error, format string, args ...any) error {
	return &userError{msg: fmt.Sprintf(format, args...), err: err}
}

// Handle parses and runs one command for userID. The returned Result always
// carries a reply; err is the underlying failure, if any, for logging.
func (d *Dispatcher) Handle(userID, input string) (Result, error) {
	cmd, err := Parse(input)
	if err == nil {
		var res Result
		res, err = Execute(cmd, d.handlers(userID))
		if err == nil {
			return res, nil
		}
	}
	return Result{Message: Describe(err)}, err
}

// Describe turns an error from Parse, Execute or a handler into reply text.
func Describe(err error) string {
	var ue *userError
	if errors.As(err, &ue) {
		return views.Failure(ue.msg)
	}
	var ce *CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case ErrCodeEmptyInput:
			return views.Failure("Please enter a command. Use `!help` to see what I can do.")
		case ErrCodeUnknownCommand:
			return views.Failure(fmt.Sprintf("%s. Use `!help` to see available commands.", upperFirst(ce.Message)))
		default:
			return views.Failure(upperFirst(ce.Message) + ".")
		}
	}
	var ite *timeparse.InvalidTimeExpressionError
	if errors.As(err, &ite) {
		var b strings.Builder
		fmt.Fprintf(&b, "**Invalid %s format:** `%s`\n\n**Valid formats:**\n", ite.Kind, ite.Input)
		for _, ex := range ite.Examples() {
			fmt.Fprintf(&b, "- `%s`\n", ex)
		}
		return views.Failure(strings.TrimSpace(b.String()))
	}
	return views.Failure("Something went wrong. Please try again.")
}

func (d *Dispatcher) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}

func (d *Dispatcher) limits() Limits {
	l := d.Limits
	def := DefaultLimits()
	if l.MaxTaskLength <= 0 {
		l.MaxTaskLength = def.MaxTaskLength
	}
	if l.MaxReminderLength <= 0 {
		l.MaxReminderLength = def.MaxReminderLength
	}
	return l
}

func (d *Dispatcher) handlers(userID string) Handlers {
	return Handlers{
		Add: func(a AddArgs) (Result, error) { return d.add(userID, a) },
		List: func() (Result, error) {
			return Result{Message: views.TaskList(d.Repo.Tasks(userID), d.now())}, nil
		},
		Deadline:   func(a DeadlineArgs) (Result, error) { return d.deadline(userID, a) },
		Complete:   func(a IDArgs) (Result, error) { return d.complete(userID, a) },
		Uncomplete: func(a IDArgs) (Result, error) { return d.uncomplete(userID, a) },
		Remove: func(a IDArgs) (Result, error) {
			t, err := d.Repo.RemoveTask(userID, a.ID)
			if err != nil {
				return Result{}, taskError(err)
			}
			return Result{Message: views.TaskRemoved(t)}, nil
		},
		Clear: func() (Result, error) {
			return Result{Message: views.CompletedCleared(d.Repo.ClearCompletedTasks(userID))}, nil
		},
		ClearAll: func() (Result, error) {
			return Result{Message: views.AllCleared(d.Repo.ClearAllTasks(userID))}, nil
		},
		RemindMe: func(a RemindArgs) (Result, error) { return d.remindMe(userID, a) },
		Reminders: func() (Result, error) {
			return Result{Message: views.ReminderList(d.Repo.Reminders(userID), d.now())}, nil
		},
		DelReminder: func(a IDArgs) (Result, error) {
			r, err := d.Repo.DeleteReminder(userID, a.ID)
			if errors.Is(err, todo.ErrNotFound) {
				return Result{}, failf(err, "Reminder not found! Use `!reminders` to see your reminders.")
			}
			if err != nil {
				return Result{}, err
			}
			return Result{Message: views.ReminderDeleted(r)}, nil
		},
		ClearReminders: func() (Result, error) {
			return Result{Message: views.RemindersCleared(d.Repo.ClearReminders(userID))}, nil
		},
		Help: func() (Result, error) { return Result{Message: views.Help()}, nil },
	}
}

func (d *Dispatcher) add(userID string, a AddArgs) (Result, error) {
	now := d.now()
	var deadline *time.Time
	if a.Deadline != "" {
		t, err := timeparse.ParseDeadline(a.Deadline, now)
		if err != nil {
			return Result{}, err
		}
		deadline = &t
	}
	if limit := d.limits().MaxTaskLength; utf8.RuneCountInString(a.Content) > limit {
		return Result{}, failf(nil, "Task is too long! Maximum %d characters.", limit)
	}
	t, err := d.Repo.AddTask(userID, a.Content, deadline)
	if errors.Is(err, todo.ErrCapacityExceeded) {
		maxTasks, _ := d.Repo.Limits()
		return Result{}, failf(err, "You have reached the maximum number of tasks (%d). Remove or clear some first.", maxTasks)
	}
	if errors.Is(err, todo.ErrEmptyContent) {
		return Result{}, failf(err, "Please provide a task!")
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Message: views.TaskAdded(t, now)}, nil
}

func (d *Dispatcher) deadline(userID string, a DeadlineArgs) (Result, error) {
	if _, err := d.Repo.Task(userID, a.ID); err != nil {
		return Result{}, taskError(err)
	}
	now := d.now()
	at, err := timeparse.ParseDeadline(a.When, now)
	if err != nil {
		return Result{}, err
	}
	t, err := d.Repo.SetDeadline(userID, a.ID, at)
	if err != nil {
		return Result{}, taskError(err)
	}
	return Result{Message: views.DeadlineSet(t, now)}, nil
}

func (d *Dispatcher) complete(userID string, a IDArgs) (Result, error) {
	t, err := d.Repo.CompleteTask(userID, a.ID)
	if errors.Is(err, todo.ErrUnchanged) {
		return Result{}, failf(err, "This task is already completed!")
	}
	if err != nil {
		return Result{}, taskError(err)
	}
	return Result{Message: views.TaskCompleted(t)}, nil
}

func (d *Dispatcher) uncomplete(userID string, a IDArgs) (Result, error) {
	t, err := d.Repo.UncompleteTask(userID, a.ID)
	if errors.Is(err, todo.ErrUnchanged) {
		return Result{}, failf(err, "This task is not completed!")
	}
	if err != nil {
		return Result{}, taskError(err)
	}
	return Result{Message: views.TaskUncompleted(t)}, nil
}

func (d *Dispatcher) remindMe(userID string, a RemindArgs) (Result, error) {
	if limit := d.limits().MaxReminderLength; utf8.RuneCountInString(a.Message) > limit {
		return Result{}, failf(nil, "Reminder message is too long! Maximum %d characters.", limit)
	}
	now := d.now()
	at, err := timeparse.ParseReminderTime(a.When, now)
	if err != nil {
		return Result{}, err
	}
	switch err := timeparse.CheckReminderWindow(at, now); {
	case errors.Is(err, timeparse.ErrReminderInPast):
		return Result{}, failf(err, "Reminder time must be in the future!")
	case errors.Is(err, timeparse.ErrReminderTooFar):
		return Result{}, failf(err, "Reminders cannot be set more than 1 year in advance!")
	}
	r, err := d.Repo.AddReminder(userID, a.Message, at)
	if errors.Is(err, todo.ErrCapacityExceeded) {
		_, maxReminders := d.Repo.Limits()
		return Result{}, failf(err, "You have too many active reminders (max %d).", maxReminders)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Message: views.ReminderSet(r, now)}, nil
}

func taskError(err error) error {
	if errors.Is(err, todo.ErrNotFound) {
		return failf(err, "Task not found! Use `!list` to see your tasks.")
	}
	return err
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return strings.ToUpper(string(r)) + s[size:]
}
