package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/sandeepkv93/todobot/internal/storage"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the decrypted data file as JSON for inspection",
	Long: "Write every stored task and reminder with decrypted content. Users appear by " +
		"pseudonym only. The output is plaintext: handle it as sensitive.",
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to this file instead of stdout")
	rootCmd.AddCommand(exportCmd)
}

type exportTask struct {
	ID           int        `json:"id"`
	Content      string     `json:"content"`
	Completed    bool       `json:"completed"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	ReminderSent bool       `json:"reminder_sent"`
}

type exportReminder struct {
	ID        int       `json:"id"`
	Message   string    `json:"message"`
	FireAt    time.Time `json:"reminder_time"`
	CreatedAt time.Time `json:"created_at"`
	Sent      bool      `json:"sent"`
}

type exportUser struct {
	Tasks     []exportTask     `json:"tasks"`
	Reminders []exportReminder `json:"reminders"`
	Mapped    bool             `json:"has_identity_mapping"`
}

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cfg, appOptions{logOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer a.release()

	out := buildExport(a.repo.Snapshot(), a.crypter)
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	data = append(data, '\n')
	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return os.WriteFile(exportOutput, data, 0o600)
}

func buildExport(doc *storage.Document, crypter *storage.Crypter) map[string]*exportUser {
	out := map[string]*exportUser{}
	user := func(p string) *exportUser {
		u, ok := out[p]
		if !ok {
			u = &exportUser{Tasks: []exportTask{}, Reminders: []exportReminder{}}
			out[p] = u
		}
		return u
	}
	for p, tasks := range doc.Tasks {
		u := user(p)
		for _, rec := range tasks {
			u.Tasks = append(u.Tasks, exportTask{
				ID:           rec.ID,
				Content:      crypter.Decrypt(rec.Content),
				Completed:    rec.Completed,
				CreatedAt:    rec.CreatedAt.Time,
				CompletedAt:  rec.CompletedAt.TimePtr(),
				Deadline:     rec.Deadline.TimePtr(),
				ReminderSent: rec.ReminderSent,
			})
		}
	}
	for p, reminders := range doc.Reminders {
		u := user(p)
		for _, rec := range reminders {
			u.Reminders = append(u.Reminders, exportReminder{
				ID:        rec.ID,
				Message:   crypter.Decrypt(rec.Message),
				FireAt:    rec.FireAt.Time,
				CreatedAt: rec.CreatedAt.Time,
				Sent:      rec.Sent,
			})
		}
	}
	for p := range doc.UserMapping {
		if u, ok := out[p]; ok {
			u.Mapped = true
		}
	}
	return out
}
