package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/sandeepkv93/todobot/internal/logging"
	"github.com/sandeepkv93/todobot/internal/storage"
)

var (
	historyStatus string
	historyKind   string
	historySweep  string
	historyLimit  int
	historyCounts bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded delivery attempts",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	flags := historyCmd.Flags()
	flags.StringVar(&historyStatus, "status", "", "filter by status (delivered, forbidden, failed, skipped)")
	flags.StringVar(&historyKind, "kind", "", "filter by kind (reminder, deadline)")
	flags.StringVar(&historySweep, "sweep", "", "filter by sweep id")
	flags.IntVar(&historyLimit, "limit", 20, "maximum rows to show")
	flags.BoolVar(&historyCounts, "counts", false, "show totals per status instead of rows")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	ledger, err := storage.OpenLedger(ctx, cfg.LedgerFile)
	if err != nil {
		return fmt.Errorf("open ledger %s: %w", cfg.LedgerFile, err)
	}
	defer ledger.Close()

	if historyCounts {
		counts, err := ledger.Counts(ctx)
		if err != nil {
			return err
		}
		statuses := make([]string, 0, len(counts))
		for s := range counts {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)
		rows := make([][]string, 0, len(statuses))
		for _, s := range statuses {
			rows = append(rows, []string{s, strconv.Itoa(counts[s])})
		}
		printf(cmd, "%s\n", renderTable([]string{"STATUS", "COUNT"}, rows))
		return nil
	}

	deliveries, err := ledger.List(ctx, storage.DeliveryFilter{
		SweepID: historySweep,
		Status:  historyStatus,
		Kind:    historyKind,
		Limit:   historyLimit,
	})
	if err != nil {
		return err
	}
	if len(deliveries) == 0 {
		printf(cmd, "no deliveries recorded\n")
		return nil
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(deliveries))
	for _, d := range deliveries {
		rows = append(rows, []string{
			d.AttemptedAt.In(loc).Format("2006-01-02 15:04:05"),
			d.Kind,
			logging.Pseudonym(d.Pseudonym),
			strconv.Itoa(d.ItemID),
			d.Status,
			d.Error,
		})
	}
	printf(cmd, "%s\n", renderTable([]string{"ATTEMPTED", "KIND", "USER", "ITEM", "STATUS", "ERROR"}, rows))
	return nil
}

func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		String()
}
