package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"corpus_dups/internal/config"
	"corpus_dups/internal/workspace"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{out: os.Stdout, errOut: os.Stderr}
	err := a.rootCmd().ExecuteContext(ctx)
	if err != nil {
		a.logger().Error("corpusdups failed", "stage", "BOOT", "error", err)
	}
	a.close()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// app carries the state shared by every subcommand once setup has run.
type app struct {
	out    io.Writer
	errOut io.Writer

	workspaceFlag string
	configFlag    string
	logLevelFlag  string

	root    string
	cfg     config.Config
	log     *slog.Logger
	archive *workspace.LogArchive
}

func (a *app) rootCmd() *cobra.Command {
	var run runOptions
	root := &cobra.Command{
		Use:   "corpusdups",
		Short: "Measure duplicated sentences across text corpora",
		Long: `corpusdups counts how many sentences of each corpus occur more than once,
per text and per corpus, and caches the results so later runs only count
what is new.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runCommand(cmd, run)
		},
	}
	root.PersistentFlags().StringVar(&a.workspaceFlag, "workspace", "", "workspace directory (default $CORPUSDUPS_WORKSPACE or ~/"+workspace.BaseDirName+")")
	root.PersistentFlags().StringVar(&a.configFlag, "config", "", "config file (default <workspace>/configs/"+workspace.ConfigFile+")")
	root.PersistentFlags().StringVar(&a.logLevelFlag, "log-level", "", "log level: debug, info, warn or error")
	addRunFlags(root, &run)

	root.AddCommand(
		a.runCmd(),
		a.showCmd(),
		a.clearCmd(),
		a.historyCmd(),
		a.logsCmd(),
	)
	return root
}

func (a *app) setup() error {
	var err error
	root := a.workspaceFlag
	if root == "" {
		root = config.WorkspaceRoot()
	}
	if root == "" {
		root, err = workspace.EnsureDefault()
	} else {
		root, err = workspace.EnsureAt(root)
	}
	if err != nil {
		return err
	}
	a.root = root

	a.archive, err = workspace.OpenLogArchive(root, time.Now())
	if err != nil {
		return err
	}

	cfgPath := a.configFlag
	if cfgPath == "" {
		cfgPath = workspace.ConfigPath(root)
	}
	cfg, err := config.Load(cfgPath, root)
	if err != nil {
		return err
	}
	if a.logLevelFlag != "" {
		cfg.LogLevel = a.logLevelFlag
	}
	a.cfg = cfg

	a.log = newLogger(io.MultiWriter(a.errOut, a.archive), cfg.LogLevel)
	a.log.Debug("Workspace ready", "stage", "BOOT",
		"workspace", root,
		"config", cfgPath,
		"session_log", a.archive.SessionFile())
	return nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func (a *app) logger() *slog.Logger {
	if a.log == nil {
		return slog.New(slog.NewTextHandler(a.errOut, nil))
	}
	return a.log
}

func (a *app) close() {
	if a.archive != nil {
		_ = a.archive.Close()
	}
}
