package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/keytest/internal/config"
	"github.com/verte-zerg/keytest/internal/device"
	"github.com/verte-zerg/keytest/internal/layout"
	"github.com/verte-zerg/keytest/internal/model"
	"github.com/verte-zerg/keytest/internal/rawinput"
	"github.com/verte-zerg/keytest/internal/session"
	"github.com/verte-zerg/keytest/internal/stats"
	"github.com/verte-zerg/keytest/internal/statsui"
	"github.com/verte-zerg/keytest/internal/store"
)

var (
	layoutsShow string

	historyPlain  bool
	historySince  string
	historyLast   int
	historyStatus string
	historyLayout string
	historyWindow int

	exportFormat string
)

func newLayoutsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layouts",
		Short: "List built-in and user layouts",
		Args:  cobra.NoArgs,
		RunE:  runLayoutsCmd,
	}
	cmd.Flags().StringVar(&layoutsShow, "show", "", "print the rows of one layout")
	return cmd
}

func runLayoutsCmd(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	dir := config.DefaultLayoutDir()
	if layoutsShow != "" {
		l, err := layout.Resolve(layoutsShow, dir)
		if err != nil {
			return fmt.Errorf("failed to load layout: %w", err)
		}
		if _, err := fmt.Fprintf(out, "# %s (%s, %d keys)\n", l.Name, l.Source, l.Len()); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return layout.Format(out, l)
	}

	infos, err := layout.List(dir)
	if err != nil {
		return fmt.Errorf("failed to read layout directory: %w", err)
	}
	for _, info := range infos {
		line := fmt.Sprintf("%-12s %4d keys  %s", info.Name, info.Keys, info.Source)
		if info.Err != nil {
			line = fmt.Sprintf("%-12s   invalid  %s: %v", info.Name, info.Source, info.Err)
		}
		if _, err := fmt.Fprintln(out, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored test results",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().BoolVar(&historyPlain, "plain", false, "print tables instead of the interactive view")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N sessions")
	cmd.Flags().StringVar(&historyStatus, "status", "", "status filter (passed, aborted, errored)")
	cmd.Flags().StringVar(&historyLayout, "layout", "", "layout filter")
	cmd.Flags().IntVar(&historyWindow, "window", statsui.DefaultWindow, "moving average window for plain trends")
	return cmd
}

func historyConfig() (model.HistoryConfig, error) {
	var sinceTime *time.Time
	if historySince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return model.HistoryConfig{}, fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if historyLast < 0 {
		return model.HistoryConfig{}, fmt.Errorf("--last must be >= 0")
	}
	status := model.Status(strings.ToLower(historyStatus))
	if status != "" && !status.Valid() {
		return model.HistoryConfig{}, fmt.Errorf("invalid --status %q (use passed, aborted or errored)", historyStatus)
	}
	return model.HistoryConfig{
		Status: status,
		Since:  sinceTime,
		Last:   historyLast,
		Layout: historyLayout,
	}, nil
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := historyConfig()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	if historyPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return renderPlainHistory(cmd.Context(), cmd.OutOrStdout(), st, cfg, historyWindow)
	}

	m := statsui.NewModel(st, cfg)
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run history TUI: %w", err)
	}
	return nil
}

func renderPlainHistory(ctx context.Context, w io.Writer, st *store.Store, cfg model.HistoryConfig, window int) error {
	if ctx == nil {
		ctx = context.Background()
	}
	report, err := stats.BuildReport(ctx, st, cfg)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if err := stats.RenderSummary(w, report.Sessions); err != nil {
		return err
	}
	if len(report.Sessions) == 0 {
		return nil
	}
	if err := stats.RenderTrends(w, report.Sessions, window); err != nil {
		return err
	}
	if err := stats.RenderKeyTable(w, report.KeyAggs); err != nil {
		return err
	}
	return stats.RenderSessionTable(w, report.Sessions)
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Write one stored result as YAML or JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportFormat, "format", "yaml", "output format (yaml, json)")
	return cmd
}

// exportDoc is the exported form of a stored result.
type exportDoc struct {
	ID         int64          `yaml:"id" json:"id"`
	Status     string         `yaml:"status" json:"status"`
	Layout     string         `yaml:"layout" json:"layout"`
	StartedAt  time.Time      `yaml:"started_at" json:"started_at"`
	EndedAt    time.Time      `yaml:"ended_at" json:"ended_at"`
	DurationMs int64          `yaml:"duration_ms" json:"duration_ms"`
	TotalKeys  int            `yaml:"total_keys" json:"total_keys"`
	FailedKeys []string       `yaml:"failed_keys" json:"failed_keys"`
	Devices    []exportDevice `yaml:"devices,omitempty" json:"devices,omitempty"`
	Error      string         `yaml:"error,omitempty" json:"error,omitempty"`
}

type exportDevice struct {
	Path     string `yaml:"path" json:"path"`
	Internal bool   `yaml:"internal" json:"internal"`
	Accepted int    `yaml:"accepted" json:"accepted"`
	Rejected int    `yaml:"rejected" json:"rejected"`
}

func newExportDoc(r model.Result) exportDoc {
	doc := exportDoc{
		ID:         r.ID,
		Status:     string(r.Status),
		Layout:     r.Layout,
		StartedAt:  r.StartedAt,
		EndedAt:    r.EndedAt,
		DurationMs: r.Duration().Milliseconds(),
		TotalKeys:  r.TotalKeys,
		FailedKeys: append([]string{}, r.FailedKeys...),
		Error:      r.Error,
	}
	for _, d := range r.Devices {
		doc.Devices = append(doc.Devices, exportDevice(d))
	}
	return doc
}

func writeExport(w io.Writer, r model.Result, format string) error {
	doc := newExportDoc(r)
	switch strings.ToLower(format) {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown --format %q (use yaml or json)", format)
	}
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid session id %q", args[0])
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeQuietly(st, "db")

	r, err := st.GetResult(context.Background(), id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("session #%d not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	return writeExport(cmd.OutOrStdout(), r, exportFormat)
}

func newProbeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Print raw key events from every keyboard until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runProbeCmd,
	}
}

func runProbeCmd(cmd *cobra.Command, _ []string) error {
	logger, closer, err := consoleLogger(cmd)
	if err != nil {
		return err
	}
	defer closeQuietly(closer, "log file")

	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	whitelist := device.DefaultWhitelist
	if len(fileCfg.Test.Whitelist) > 0 {
		whitelist = fileCfg.Test.Whitelist
	}

	platform, err := rawinput.NewPlatform()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if term.IsTerminal(int(os.Stderr.Fd())) {
		logErrln("Focus the probe window and press keys. Ctrl+C or close the window to stop.")
	}

	// Lines are queued so the window thread never waits on the terminal.
	lines := make(chan string, 256)
	printed := make(chan struct{})
	out := cmd.OutOrStdout()
	go func() {
		defer close(printed)
		for line := range lines {
			if _, err := fmt.Fprintln(out, line); err != nil {
				logger.Warn("write probe output", "err", err)
			}
		}
	}()

	ctrl := session.NewController(platform, device.NewWhitelist(whitelist), logger)
	err = ctrl.Probe(ctx, "keytest probe", func(ev session.ProbeEvent) {
		select {
		case lines <- ev.String():
		default:
			logger.Debug("probe output dropped")
		}
	})
	close(lines)
	<-printed
	return err
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List attached keyboards",
		Args:  cobra.NoArgs,
		RunE:  runDevicesCmd,
	}
}

func runDevicesCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	whitelist := device.DefaultWhitelist
	if len(fileCfg.Test.Whitelist) > 0 {
		whitelist = fileCfg.Test.Whitelist
	}
	platform, err := rawinput.NewPlatform()
	if err != nil {
		return err
	}
	kbs, err := rawinput.Keyboards(platform)
	if err != nil {
		return err
	}
	return writeDevices(cmd.OutOrStdout(), kbs, device.NewWhitelist(whitelist))
}

func writeDevices(w io.Writer, kbs []rawinput.Keyboard, wl device.Whitelist) error {
	if len(kbs) == 0 {
		_, err := fmt.Fprintln(w, "No keyboards found.")
		return err
	}
	for _, kb := range kbs {
		path := kb.Path
		if path == "" {
			path = "(unnamed)"
		}
		mark := " "
		if kb.Path != "" && wl.Match(kb.Path) {
			mark = "*"
		}
		if _, err := fmt.Fprintf(w, "%s %-9s 0x%08X %s\n", mark, device.Classify(kb.Path), kb.Handle, path); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	_, err := fmt.Fprintln(w, "* matches the whitelist")
	return err
}
