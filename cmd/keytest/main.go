// Package main provides the CLI entrypoint for keytest.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/keytest/internal/config"
	"github.com/verte-zerg/keytest/internal/device"
	"github.com/verte-zerg/keytest/internal/layout"
	"github.com/verte-zerg/keytest/internal/logging"
	"github.com/verte-zerg/keytest/internal/model"
	"github.com/verte-zerg/keytest/internal/rawinput"
	"github.com/verte-zerg/keytest/internal/session"
	"github.com/verte-zerg/keytest/internal/store"
	"github.com/verte-zerg/keytest/internal/tui"
)

const (
	defaultTitle    = "Keyboard test"
	defaultLogLevel = "info"
)

var (
	testLayout    string
	testWhitelist []string
	testTitle     string
	testNoSave    bool
	logLevel      string
	logFile       string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "keytest",
		Short:         "Built-in keyboard test",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runTestCmd,
	}

	rootCmd.Flags().StringVar(&testLayout, "layout", layout.DefaultName, "layout name (built-in or user file)")
	rootCmd.Flags().StringArrayVar(&testWhitelist, "whitelist", device.DefaultWhitelist, "device path fragment of the built-in keyboard (repeatable)")
	rootCmd.Flags().StringVar(&testTitle, "title", defaultTitle, "title of the test window")
	rootCmd.Flags().BoolVar(&testNoSave, "no-save", false, "do not store the result in history")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "append logs to this file")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newLayoutsCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newDevicesCmd())

	return rootCmd
}

// loadSettings merges the config file into flags the user did not set.
func loadSettings(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	save := !testNoSave
	applyStringConfig(cmd, "layout", &testLayout, fileCfg.Test.Layout)
	applySliceConfig(cmd, "whitelist", &testWhitelist, fileCfg.Test.Whitelist)
	applyStringConfig(cmd, "title", &testTitle, fileCfg.Test.Title)
	applyBoolConfig(cmd, "no-save", &save, fileCfg.Test.Save)
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Log.File)

	cfg := model.Config{
		Layout:    testLayout,
		Whitelist: testWhitelist,
		Title:     testTitle,
		Save:      save,
	}
	if err := config.Validate(cfg, logLevel); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func runTestCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	l, err := layout.Resolve(cfg.Layout, config.DefaultLayoutDir())
	if err != nil {
		return fmt.Errorf("failed to load layout: %w", err)
	}

	// The TUI owns the terminal, so records only go to the log file.
	logger, closer, err := logging.Setup(logLevel, logFile, nil)
	if err != nil {
		return err
	}
	defer closeQuietly(closer, "log file")

	platform, err := rawinput.NewPlatform()
	if err != nil {
		return err
	}

	var st *store.Store
	if cfg.Save {
		st, err = openStore()
		if err != nil {
			return err
		}
		defer closeQuietly(st, "db")
	}

	ctrl := session.NewController(platform, device.NewWhitelist(cfg.Whitelist), logger)
	sess, err := ctrl.Open(session.Options{
		Title:      cfg.Title,
		LayoutName: l.Name,
		Layout:     l.Symbols(),
	})
	if err != nil {
		var setupErr *session.SetupError
		if errors.As(err, &setupErr) && st != nil {
			if _, serr := st.InsertResult(context.Background(), setupErr.Result); serr != nil {
				logErrf("failed to save errored session: %v\n", serr)
			}
		}
		return err
	}

	m := tui.NewModel(sess, l, st, logger)
	program := tea.NewProgram(m, tea.WithAltScreen())
	_, runErr := program.Run()

	result, finished := m.Result()
	if !finished {
		if err := sess.Close(); err != nil {
			logger.Warn("close test window", "err", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if result, err = sess.Wait(ctx); err != nil {
			return fmt.Errorf("keyboard test did not stop: %w", err)
		}
		if st != nil {
			if _, err := st.InsertResult(context.Background(), result); err != nil {
				logErrf("failed to save result: %v\n", err)
			}
		}
	}
	if runErr != nil {
		return fmt.Errorf("failed to run TUI: %w", runErr)
	}
	return reportOutcome(cmd.OutOrStdout(), result)
}

func reportOutcome(w io.Writer, r model.Result) error {
	switch r.Status {
	case model.StatusPassed:
		_, err := fmt.Fprintf(w, "PASSED %d/%d keys in %s\n", r.TotalKeys, r.TotalKeys, r.Duration().Round(time.Millisecond))
		return err
	case model.StatusAborted:
		if _, err := fmt.Fprintf(w, "ABORTED %d/%d keys not pressed: %s\n", len(r.FailedKeys), r.TotalKeys, strings.Join(r.FailedKeys, ", ")); err != nil {
			return err
		}
		return fmt.Errorf("keyboard test aborted with %d keys not pressed", len(r.FailedKeys))
	default:
		return fmt.Errorf("keyboard test ended with status %q", r.Status)
	}
}

func openStore() (*store.Store, error) {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

// consoleLogger builds a logger on stderr for commands without a TUI.
func consoleLogger(cmd *cobra.Command) (*slog.Logger, io.Closer, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "log-level", &logLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-file", &logFile, fileCfg.Log.File)
	return logging.Setup(logLevel, logFile, cmd.ErrOrStderr())
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "notepad"
		if _, err := exec.LookPath(editor); err != nil {
			editor = "vi"
		}
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applySliceConfig(cmd *cobra.Command, name string, target *[]string, value []string) {
	if len(value) == 0 {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = append([]string(nil), value...)
}

// applyBoolConfig sets target from value unless the flag was given.
// target holds the positive sense of the setting.
func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# keytest configuration
# Uncomment a value to enable it. CLI flags override config values.

[test]
# layout = %q            # Built-in layout or file in the layouts directory
# whitelist = [%q]  # Device path fragments of the built-in keyboard
# title = %q      # Title of the test window
# save = true                # Store results in history

[log]
# level = %q               # trace, debug, info, warn or error
# file = ""                  # Append logs to this file
`,
		layout.DefaultName,
		device.DefaultWhitelist[0],
		defaultTitle,
		defaultLogLevel,
	)
}

func closeQuietly(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		logErrf("failed to close %s: %v\n", what, err)
	}
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
