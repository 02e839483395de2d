package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"

	"github.com/bobmcallan/simtrade/internal/app"
	"github.com/bobmcallan/simtrade/internal/common"
	"github.com/bobmcallan/simtrade/internal/models"
	"github.com/bobmcallan/simtrade/internal/services/incremental"
)

// commandFunc runs a subcommand and returns the process exit code.
type commandFunc func(ctx context.Context, a *app.App, args []string) (int, error)

var commands = map[string]commandFunc{
	"sync":     runSync,
	"gaps":     runGaps,
	"export":   runExport,
	"status":   runStatus,
	"register": runRegister,
}

func runSync(ctx context.Context, a *app.App, args []string) (int, error) {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	dateFlag := fs.String("date", "", "target date YYYY-MM-DD (default today)")
	symbolsFlag := fs.String("symbols", "", "comma-separated symbols (default active stocks)")
	freqFlag := fs.String("freq", "", "comma-separated frequencies (default [sync] frequencies)")
	force := fs.Bool("force", false, "reprocess the lookback window and overwrite stored bars")
	if err := fs.Parse(args); err != nil {
		return 2, nil
	}

	target, err := parseDate(*dateFlag)
	if err != nil {
		return 2, err
	}
	freqs, err := parseFrequencies(*freqFlag)
	if err != nil {
		return 2, err
	}
	symbols, err := symbolsOrActive(ctx, a, splitList(*symbolsFlag))
	if err != nil {
		return 1, err
	}
	if len(symbols) == 0 {
		fmt.Println("No symbols to sync; use `simtrade register -symbols ...` first")
		return 0, nil
	}

	var bars []*progressbar.ProgressBar
	defer func() {
		for _, b := range bars {
			_ = b.Close()
		}
	}()
	newProgress := func(total int, desc string) incremental.Progress {
		b := progressbar.Default(int64(total), desc)
		bars = append(bars, b)
		return b
	}

	a.Coordinator.SetForceUpdate(*force)
	result, backfill, err := syncAndBackfill(ctx, a.Coordinator, a.Config.Sync, target, symbols, freqs, newProgress)
	if result != nil {
		printSyncResult(os.Stdout, result)
	}
	if backfill != nil {
		fmt.Println("Gap backfill:")
		printSyncResult(os.Stdout, backfill)
	}
	if err != nil {
		return 1, err
	}

	if result.AllFailed() {
		return 1, fmt.Errorf("all %d symbols failed", result.TotalSymbols)
	}
	return 0, nil
}

// syncAndBackfill runs the sync and, when configured, a daily gap backfill
// over the lookback window. Each run reports to its own progress sink.
func syncAndBackfill(
	ctx context.Context,
	coord *incremental.Coordinator,
	cfg common.SyncConfig,
	target time.Time,
	symbols []string,
	freqs []models.Frequency,
	newProgress func(total int, desc string) incremental.Progress,
) (result, backfill *models.SyncResult, err error) {
	defer coord.SetProgress(nil)

	coord.SetProgress(newProgress(len(symbols), "sync"))
	result, err = coord.SyncAllSymbols(ctx, target, symbols, freqs)
	if err != nil || !cfg.BackfillGaps {
		return result, nil, err
	}

	end := result.TargetDate
	start := end.AddDate(0, 0, -cfg.LookbackDays)
	coord.SetProgress(newProgress(len(symbols), "backfill"))
	backfill, err = coord.BackfillGaps(ctx, symbols, models.Freq1d, start, end)
	return result, backfill, err
}

func runGaps(ctx context.Context, a *app.App, args []string) (int, error) {
	fs := flag.NewFlagSet("gaps", flag.ContinueOnError)
	symbolsFlag := fs.String("symbols", "", "comma-separated symbols (default active stocks)")
	startFlag := fs.String("start", "", "range start YYYY-MM-DD (default end - lookback)")
	endFlag := fs.String("end", "", "range end YYYY-MM-DD (default today)")
	backfill := fs.Bool("backfill", false, "reprocess every detected gap")
	if err := fs.Parse(args); err != nil {
		return 2, nil
	}

	end, err := parseDate(*endFlag)
	if err != nil {
		return 2, err
	}
	if end.IsZero() {
		end = models.TruncateDay(time.Now())
	}
	start, err := parseDate(*startFlag)
	if err != nil {
		return 2, err
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -a.Config.Sync.LookbackDays)
	}
	symbols, err := symbolsOrActive(ctx, a, splitList(*symbolsFlag))
	if err != nil {
		return 1, err
	}

	if *backfill {
		result, err := a.Coordinator.BackfillGaps(ctx, symbols, models.Freq1d, start, end)
		if result != nil {
			printSyncResult(os.Stdout, result)
		}
		if err != nil {
			return 1, err
		}
		if result.AllFailed() {
			return 1, fmt.Errorf("all %d symbols failed", result.TotalSymbols)
		}
		return 0, nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Symbol", "Start", "End", "Trading Days", "Calendar Days", "Severity"})
	found := 0
	for _, symbol := range symbols {
		gaps, err := a.Coordinator.Gaps().Detect(ctx, symbol, models.Freq1d, start, end)
		if err != nil {
			a.Logger.Warn().Err(err).Str("symbol", symbol).Msg("Gap detection failed")
			continue
		}
		for _, g := range gaps {
			found++
			table.Append([]string{
				g.Symbol,
				models.DateKey(g.Start),
				models.DateKey(g.End),
				strconv.Itoa(g.TradingDays),
				strconv.Itoa(g.CalendarDays),
				g.Severity,
			})
		}
	}
	if found == 0 {
		fmt.Println("No gaps found")
		return 0, nil
	}
	table.Render()
	return 0, nil
}

func runExport(ctx context.Context, a *app.App, args []string) (int, error) {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	symbolFlag := fs.String("symbol", "", "symbol to export (required)")
	freqFlag := fs.String("freq", "1d", "frequency")
	startFlag := fs.String("start", "", "range start YYYY-MM-DD (default [sync] default_start_date)")
	endFlag := fs.String("end", "", "range end YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return 2, nil
	}
	if *symbolFlag == "" {
		return 2, errors.New("export: -symbol is required")
	}

	freq, ok := models.ParseFrequency(*freqFlag)
	if !ok {
		return 2, fmt.Errorf("export: unknown frequency %q", *freqFlag)
	}
	start, err := parseDate(*startFlag)
	if err != nil {
		return 2, err
	}
	if start.IsZero() {
		start = a.Config.Sync.GetDefaultStartDate()
	}
	end, err := parseDate(*endFlag)
	if err != nil {
		return 2, err
	}
	if end.IsZero() {
		end = models.TruncateDay(time.Now())
	}

	path, n, err := a.Exporter.Export(ctx, *symbolFlag, freq, start, end)
	if err != nil {
		if common.IsNotFound(err) {
			fmt.Printf("No stored %s bars for %s\n", freq, *symbolFlag)
			return 1, nil
		}
		return 1, err
	}
	fmt.Printf("Exported %d bars to %s\n", n, path)
	return 0, nil
}

func runStatus(ctx context.Context, a *app.App, args []string) (int, error) {
	statuses, err := a.Storage.SyncStatusStore().ListSyncStatus(ctx)
	if err != nil {
		return 1, err
	}
	if len(statuses) == 0 {
		fmt.Println("No sync history")
		return 0, nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Symbol", "Freq", "Status", "Last Sync", "Last Data", "Records", "Error"})
	for _, st := range statuses {
		table.Append([]string{
			st.Symbol,
			string(st.Frequency),
			st.Status,
			formatDate(st.LastSyncDate),
			formatDate(st.LastDataDate),
			strconv.Itoa(st.TotalRecords),
			truncate(st.ErrorMessage, 60),
		})
	}
	table.Render()
	return 0, nil
}

func runRegister(ctx context.Context, a *app.App, args []string) (int, error) {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	symbolsFlag := fs.String("symbols", "", "comma-separated symbols to mark active")
	if err := fs.Parse(args); err != nil {
		return 2, nil
	}
	symbols := splitList(*symbolsFlag)
	if len(symbols) == 0 {
		return 2, errors.New("register: -symbols is required")
	}

	now := time.Now().UTC()
	stocks := make([]models.Stock, len(symbols))
	for i, s := range symbols {
		stocks[i] = models.Stock{
			Symbol:    s,
			Market:    models.InferMarket(s),
			Status:    models.StockActive,
			UpdatedAt: now,
		}
	}
	n, err := a.Storage.StockStore().UpsertStocks(ctx, stocks)
	if err != nil {
		return 1, err
	}
	fmt.Printf("Registered %d symbols\n", n)
	return 0, nil
}

func symbolsOrActive(ctx context.Context, a *app.App, symbols []string) ([]string, error) {
	if len(symbols) > 0 {
		return symbols, nil
	}
	return a.Storage.StockStore().ActiveSymbols(ctx)
}

// printSyncResult renders one row per symbol followed by the totals.
func printSyncResult(w io.Writer, r *models.SyncResult) {
	symbols := make([]string, 0, len(r.Symbols))
	for s := range r.Symbols {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Symbol", "State", "Written", "Invalid", "Error"})
	for _, s := range symbols {
		o := r.Symbols[s]
		table.Append([]string{
			s,
			string(o.State),
			strconv.Itoa(o.RowsWritten),
			strconv.Itoa(o.RowsInvalid),
			truncate(o.Error, 60),
		})
	}
	table.SetFooter([]string{
		"Total " + strconv.Itoa(r.TotalSymbols),
		fmt.Sprintf("ok %d / failed %d / skipped %d", r.SuccessCount, r.FailedCount, r.SkippedCount),
		"", "", r.RunID,
	})
	table.Render()
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(common.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

func parseFrequencies(s string) ([]models.Frequency, error) {
	var out []models.Frequency
	for _, item := range splitList(s) {
		f, ok := models.ParseFrequency(item)
		if !ok {
			return nil, fmt.Errorf("unknown frequency %q", item)
		}
		if !common.IsSupportedFrequency(string(f)) {
			return nil, fmt.Errorf("frequency %q is not available upstream (supported: %s)", item, strings.Join(common.SupportedFrequencies, ", "))
		}
		out = append(out, f)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return models.DateKey(t)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
