package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tallowoak/taskline/internal/chatclient"
	"github.com/tallowoak/taskline/internal/config"
	"github.com/tallowoak/taskline/internal/insertstore"
	"github.com/tallowoak/taskline/internal/program"
	"github.com/tallowoak/taskline/internal/promptchannel"
	"github.com/tallowoak/taskline/internal/taskrun"
)

func agentModeCmd() *cobra.Command {
	var watch bool
	var outputPath, inputPath string

	cmd := &cobra.Command{
		Use:   "agent-mode <program.json5> [args...]",
		Short: "Run a program driven by a file-based prompt channel",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			programArgs := args[1:]

			cfg, err := loadManagedConfig()
			if err != nil {
				return err
			}
			if outputPath == "" {
				outputPath = cfg.AgentOutput
			}
			if inputPath == "" {
				inputPath = cfg.AgentInput
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			runOnce := func() error {
				return runAgentModeOnce(ctx, path, programArgs, cfg, outputPath, inputPath)
			}

			if !watch {
				return runOnce()
			}

			reload := make(chan struct{}, 1)
			if err := config.Watch(ctx, path, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			}); err != nil {
				return err
			}
			if err := runOnce(); err != nil {
				fmt.Fprintln(os.Stderr, formatFatal(err))
			}
			for {
				select {
				case <-reload:
					if err := runOnce(); err != nil {
						fmt.Fprintln(os.Stderr, formatFatal(err))
					}
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "reload and rerun when the program file changes")
	cmd.Flags().StringVar(&outputPath, "output", "", "agent-mode output path (default /tmp/agent_output)")
	cmd.Flags().StringVar(&inputPath, "input", "", "agent-mode input path (default /tmp/agent_input)")
	return cmd
}

func runAgentModeOnce(ctx context.Context, path string, programArgs []string, cfg *config.Config, outputPath, inputPath string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	prog, err := program.Parse(src)
	if err != nil {
		return err
	}
	if errs := program.Analyze(prog); len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return fmt.Errorf("%d error(s) found while analyzing %s", len(errs), path)
	}

	store := insertstore.New(cfg.InsertsDir, programArgs)
	if prog.DefaultState.Inserts != nil {
		for _, k := range prog.DefaultState.Inserts.Keys() {
			v, _ := prog.DefaultState.Inserts.Get(k)
			store.Set(k, v)
		}
	}

	var ip *taskrun.Interpreter
	driver := promptchannel.NewAgentMode(outputPath, inputPath, func() string {
		if ip == nil {
			return ""
		}
		return ip.CurrentOutput()
	})
	chat := chatclient.NewHTTPClient(cfg.ChatAPIKey, cfg.ChatBaseURL, cfg.ChatModel)
	ip = taskrun.New(prog, store, driver, chat, rand.New(rand.NewSource(1)))

	out, err := ip.Run(ctx)
	fmt.Print(out)
	return err
}
