// Command taskline runs declarative JSON5 programs against a keyed
// inserts store. See internal/taskrun for the interpreter and
// internal/program for the program format.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tallowoak/taskline/internal/config"
	"github.com/tallowoak/taskline/internal/logger"
	"github.com/tallowoak/taskline/internal/program"
	"github.com/tallowoak/taskline/internal/taskrun"
)

func main() {
	root := &cobra.Command{
		Use:   "taskline",
		Short: "taskline — runs declarative JSON5 task programs",
		Long:  "taskline executes task-tree programs against a keyed inserts store, with templating, control flow, and concurrency combinators.",
	}

	var logLevel, logFile string
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "debug, info, warn, or error")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this file")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return logger.Init(logLevel, logFile)
	}

	root.AddCommand(
		runCmd(),
		validateCmd(),
		fmtCmd(),
		agentModeCmd(),
	)

	if err := root.Execute(); err != nil {
		msg := formatFatal(err)
		if logger.Log != nil {
			logger.Error(msg)
		} else {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(1)
	}
}

// formatFatal renders a fatal error as "Error at line L: <message>" when it
// carries a source line, per the exit-code/diagnostic contract in §6.5.
func formatFatal(err error) string {
	if line, msg, ok := errorLine(err); ok {
		return fmt.Sprintf("Error at line %d: %s", line, msg)
	}
	return fmt.Sprintf("Error: %v", err)
}

func errorLine(err error) (line int, msg string, ok bool) {
	switch e := err.(type) {
	case *program.ParseError:
		return e.Line, e.Msg, true
	case *program.AnalyzeError:
		return e.Line, e.Msg, true
	case *taskrun.RuntimeError:
		return e.Line, fmt.Sprintf("%s: %v", e.Kind, e.Err), true
	}
	return 0, "", false
}

// loadManagedConfig loads taskline's own merged config from the
// conventional user/project locations, tolerating either being absent.
func loadManagedConfig() (*config.Config, error) {
	userDir, err := config.UserConfigDir()
	if err != nil {
		userDir = ""
	}
	projectDir, err := config.ProjectDir()
	if err != nil {
		projectDir = "."
	}
	mgr := config.NewManager()
	if err := mgr.Load(userDir, projectDir); err != nil {
		return nil, err
	}
	return mgr.Get(), nil
}
