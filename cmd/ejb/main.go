// Command ejb starts a node with the QA service runtime and drives it from
// the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/javabinding/bindings"
	"github.com/wippyai/javabinding/config"
	"github.com/wippyai/javabinding/exceptions"
	"github.com/wippyai/javabinding/executor"
	"github.com/wippyai/javabinding/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app holds the state shared by all commands.
type app struct {
	configPath string
	logLevel   string
	logFile    string
	dev        bool

	cfg       config.Config
	log       *zap.Logger
	undoProcs func()
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "ejb",
		Short:         "Native binding node for managed services",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			a.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "path to the TOML configuration file")
	flags.StringVar(&a.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	flags.StringVar(&a.logFile, "log-file", "", "write logs to this file instead of stderr")
	flags.BoolVar(&a.dev, "dev", false, "human-readable development logging")

	root.AddCommand(newRunCmd(a), newCheckConfigCmd(a), newConsoleCmd(a))
	return root
}

func (a *app) setup() error {
	a.cfg = config.Default()
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	log, err := newLogger(a.logLevel, a.logFile, a.dev)
	if err != nil {
		return err
	}
	a.setLogger(log)

	undo, err := maxprocs.Set(maxprocs.Logger(log.Sugar().Debugf))
	if err != nil {
		log.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}
	a.undoProcs = undo
	return nil
}

func (a *app) teardown() {
	if a.undoProcs != nil {
		a.undoProcs()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// setLogger installs l as the logger of every package.
func (a *app) setLogger(l *zap.Logger) {
	a.log = l
	executor.SetLogger(l)
	exceptions.SetLogger(l)
	storage.SetLogger(l)
	bindings.SetLogger(l)
}

func newLogger(level, file string, dev bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	cfg := zap.NewProductionConfig()
	if dev {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	if file != "" {
		cfg.OutputPaths = []string{file}
	}
	return cfg.Build()
}

// internalConfig locates the system classpath and native libraries next
// to the binary, or under EJB_HOME when it is set.
func internalConfig() (config.InternalConfig, error) {
	home := os.Getenv("EJB_HOME")
	if home == "" {
		exe, err := os.Executable()
		if err != nil {
			return config.InternalConfig{}, fmt.Errorf("locate executable: %w", err)
		}
		home = filepath.Dir(exe)
	}
	return config.InternalConfig{
		SystemClassPath: filepath.Join(home, "lib", "java", "*"),
		SystemLibPath:   filepath.Join(home, "lib", "native"),
	}, nil
}
