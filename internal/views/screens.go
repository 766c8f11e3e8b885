// Package views builds the markdown replies shown to users and the console
// layout around them.
package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/todobot/internal/model"
	"github.com/sandeepkv93/todobot/internal/notify"
)

const (
	deadlineLayout = "2006-01-02 15:04"
	exactLayout    = "2006-01-02 15:04:05"
)

func FormatDeadline(t time.Time) string {
	return t.Format(deadlineLayout)
}

// FormatReminderTime describes how far away t is, with the absolute time at
// a precision that shrinks as t gets closer.
func FormatReminderTime(t, now time.Time) string {
	diff := t.Sub(now)
	if diff <= 0 {
		return fmt.Sprintf("**OVERDUE** (%s)", t.Format(deadlineLayout))
	}
	days := int(diff / (24 * time.Hour))
	hours := int((diff % (24 * time.Hour)) / time.Hour)
	minutes := int((diff % time.Hour) / time.Minute)
	switch {
	case days > 0:
		return fmt.Sprintf("in %d day(s), %dh %dm (%s)", days, hours, minutes, t.Format(deadlineLayout))
	case hours > 0:
		return fmt.Sprintf("in %dh %dm (%s)", hours, minutes, t.Format("01-02 15:04"))
	default:
		return fmt.Sprintf("in %dm (%s)", minutes, t.Format("15:04"))
	}
}

func TaskList(tasks []model.Task, now time.Time) string {
	var b strings.Builder
	b.WriteString("## Your To-Do List\n\n")
	if len(tasks) == 0 {
		b.WriteString("You have no tasks!\n\nTip: use `!add <task>` to add a new task.")
		return b.String()
	}

	var pending, completed []model.Task
	for _, t := range tasks {
		if t.Completed {
			completed = append(completed, t)
		} else {
			pending = append(pending, t)
		}
	}

	if len(pending) > 0 {
		fmt.Fprintf(&b, "### ⏳ Pending Tasks (%d)\n\n", len(pending))
		for _, t := range pending {
			fmt.Fprintf(&b, "- **#%d** %s%s\n", t.ID, escape(t.Content), pendingDeadline(t, now))
		}
		b.WriteString("\n")
	}
	if len(completed) > 0 {
		fmt.Fprintf(&b, "### ✅ Completed Tasks (%d)\n\n", len(completed))
		for _, t := range completed {
			line := fmt.Sprintf("- **#%d** ~~%s~~", t.ID, escape(t.Content))
			if t.CompletedAt != nil {
				line += fmt.Sprintf(" (Completed: %s)", t.CompletedAt.Format(deadlineLayout))
			}
			if t.HasDeadline() {
				line += fmt.Sprintf(" (Deadline: %s)", FormatDeadline(*t.Deadline))
			}
			b.WriteString(line + "\n")
		}
	}
	return strings.TrimSpace(b.String())
}

func pendingDeadline(t model.Task, now time.Time) string {
	if !t.HasDeadline() {
		return ""
	}
	st := model.StatusOf(*t.Deadline, now)
	switch st.Kind {
	case model.DeadlineOverdue:
		return fmt.Sprintf(" 🔴 (Overdue: %s)", FormatDeadline(*t.Deadline))
	case model.DeadlineUrgent:
		return fmt.Sprintf(" 🟡 (Due soon: %s)", st.Remaining)
	default:
		return fmt.Sprintf(" ⏰ (Due: %s)", st.Remaining)
	}
}

func ReminderList(reminders []model.Reminder, now time.Time) string {
	var b strings.Builder
	if len(reminders) == 0 {
		b.WriteString("## Your Reminders\n\nYou have no active reminders.\n\n")
		b.WriteString("Tip: use `!remindme <message> | <time>` to set a reminder.")
		return b.String()
	}
	b.WriteString("## Your Active Reminders\n\n")
	for _, r := range reminders {
		fmt.Fprintf(&b, "### 🔔 Reminder #%d\n\n", r.ID)
		fmt.Fprintf(&b, "- **Message:** %s\n", escape(r.Message))
		fmt.Fprintf(&b, "- **Time:** %s\n", FormatReminderTime(r.FireAt, now))
		fmt.Fprintf(&b, "- **Created:** %s\n\n", r.CreatedAt.Format(deadlineLayout))
	}
	fmt.Fprintf(&b, "You have %d active reminder(s).", len(reminders))
	return b.String()
}

func TaskAdded(t model.Task, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## ✅ Task Added!\n\n**Task #%d:** %s", t.ID, escape(t.Content))
	if t.HasDeadline() {
		fmt.Fprintf(&b, "\n\n**Deadline:** %s (%s)", FormatDeadline(*t.Deadline), model.StatusOf(*t.Deadline, now).Remaining)
	}
	b.WriteString("\n\nUse `!list` to see your tasks.")
	return b.String()
}

func DeadlineSet(t model.Task, now time.Time) string {
	msg := fmt.Sprintf("## ⏰ Deadline Updated!\n\n**Task #%d:** %s", t.ID, escape(t.Content))
	if t.HasDeadline() {
		msg += fmt.Sprintf("\n\n**New Deadline:** %s (%s)", FormatDeadline(*t.Deadline), model.StatusOf(*t.Deadline, now).Remaining)
	}
	return msg
}

func TaskCompleted(t model.Task) string {
	msg := fmt.Sprintf("## ✅ Task Completed!\n\n**Task #%d:** %s", t.ID, escape(t.Content))
	if t.HasDeadline() {
		msg += fmt.Sprintf("\n\n**Original Deadline:** %s", FormatDeadline(*t.Deadline))
	}
	return msg
}

func TaskUncompleted(t model.Task) string {
	return fmt.Sprintf("## ⏳ Task Uncompleted!\n\n**Task #%d:** %s", t.ID, escape(t.Content))
}

func TaskRemoved(t model.Task) string {
	return fmt.Sprintf("## 🗑️ Task Removed!\n\n**Task #%d:** %s", t.ID, escape(t.Content))
}

func CompletedCleared(n int) string {
	return fmt.Sprintf("## 🧹 Completed Tasks Cleared!\n\nRemoved %d completed task(s).", n)
}

func AllCleared(n int) string {
	return fmt.Sprintf("## 🗑️ All Tasks Cleared!\n\nRemoved %d task(s).", n)
}

func ReminderSet(r model.Reminder, now time.Time) string {
	return fmt.Sprintf("## ⏰ Reminder Set!\n\n**Message:** %s\n\n- **Reminder Time:** %s\n- **Exact Time:** %s\n\nYou'll receive a private message when the reminder is due!",
		escape(r.Message), FormatReminderTime(r.FireAt, now), r.FireAt.Format(exactLayout))
}

func ReminderDeleted(r model.Reminder) string {
	return fmt.Sprintf("## ✅ Reminder Deleted\n\nReminder #%d has been deleted.", r.ID)
}

func RemindersCleared(n int) string {
	return fmt.Sprintf("## 🗑️ Reminders Cleared\n\nDeleted %d reminder(s).", n)
}

// Failure renders a user-facing error line.
func Failure(msg string) string {
	return "❌ " + msg
}

func Help() string {
	return strings.Join([]string{
		"## 🤖 To-Do Bot Help",
		"",
		"### 📋 To-Do Commands",
		"",
		"- `!add <task>` - Add a new task",
		"- `!add <task> | <deadline>` - Add task with deadline",
		"- `!list` - Show your to-do list",
		"- `!deadline <id> <deadline>` - Set deadline for a task",
		"- `!complete <id>` - Mark task as completed",
		"- `!uncomplete <id>` - Mark task as uncompleted",
		"- `!remove <id>` - Remove a task",
		"- `!clear` - Remove all completed tasks",
		"- `!clearall` - Remove all tasks",
		"",
		"### ⏰ Reminder Commands",
		"",
		"- `!remindme <message> | <time>` - Set a custom reminder",
		"- `!reminders` - Show your active reminders",
		"- `!delreminder <id>` - Delete a specific reminder",
		"- `!clearreminders` - Delete all your reminders",
		"",
		"### Time Formats",
		"",
		"- **Deadlines:** `in 2 hours`, `in 3 days`, `2024-12-31 17:00`, `12/31/2024`, `14:30`",
		"- **Reminders:** `in 30 minutes`, `14:30`, `2024-12-31 17:00`, `2024-12-31` (9 AM)",
		"",
		"### 🔒 Privacy",
		"",
		"- Task lists are private to you",
		"- Stored content is encrypted and user ids are hashed",
		"- Reminders are delivered privately",
	}, "\n")
}

// Notification renders a delivered reminder or deadline alert.
func Notification(n notify.Notification, now time.Time) string {
	var b strings.Builder
	switch n.Kind {
	case notify.KindDeadline:
		fmt.Fprintf(&b, "## ⏰ Deadline Reminder!\n\n**Task #%d:** %s\n\n", n.ItemID, escape(n.Text))
		fmt.Fprintf(&b, "- **Deadline:** %s\n", FormatDeadline(n.At))
		st := model.StatusOf(n.At, now)
		if st.Kind == model.DeadlineOverdue {
			b.WriteString("- **Status:** **OVERDUE**\n")
		} else {
			fmt.Fprintf(&b, "- **Time Remaining:** %s\n", st.Remaining)
		}
	default:
		fmt.Fprintf(&b, "## 🔔 Reminder!\n\n**%s**\n\n", escape(n.Text))
		fmt.Fprintf(&b, "- **Set For:** %s\n", n.At.Format(exactLayout))
		if !n.CreatedAt.IsZero() {
			fmt.Fprintf(&b, "- **Created:** %s\n", n.CreatedAt.Format(deadlineLayout))
		}
	}
	return strings.TrimSpace(b.String())
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`", "~", `\~`, "#", `\#`, "[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`, "|", `\|`,
)

// escape keeps user text from being read as markdown.
func escape(s string) string {
	return markdownEscaper.Replace(s)
}
