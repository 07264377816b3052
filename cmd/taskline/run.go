package main

import (
	"fmt"
	"math/rand"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tallowoak/taskline/internal/chatclient"
	"github.com/tallowoak/taskline/internal/insertstore"
	"github.com/tallowoak/taskline/internal/logger"
	"github.com/tallowoak/taskline/internal/program"
	"github.com/tallowoak/taskline/internal/promptchannel"
	"github.com/tallowoak/taskline/internal/savestate"
	"github.com/tallowoak/taskline/internal/taskrun"
)

func runCmd() *cobra.Command {
	var insertsDir string
	var seed int64
	var saveSlot string
	var saveLabel string

	cmd := &cobra.Command{
		Use:   "run <program.json5> [args...]",
		Short: "Parse, analyze, and execute a program",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			programArgs := args[1:]

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

			cfg, err := loadManagedConfig()
			if err != nil {
				return err
			}
			if insertsDir == "" {
				insertsDir = cfg.InsertsDir
			}

			store := insertstore.New(insertsDir, programArgs)
			if prog.DefaultState.Inserts != nil {
				for _, k := range prog.DefaultState.Inserts.Keys() {
					v, _ := prog.DefaultState.Inserts.Get(k)
					store.Set(k, v)
				}
			}

			rnd := rand.New(rand.NewSource(seed))
			prompt := promptchannel.NewStdin(os.Stdin, os.Stdout)
			chat := chatclient.NewHTTPClient(cfg.ChatAPIKey, cfg.ChatBaseURL, cfg.ChatModel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			ip := taskrun.New(prog, store, prompt, chat, rnd)
			if logger.Log != nil {
				logger.Info("run starting", "run_id", ip.RunID, "program", path)
			}
			out, err := ip.Run(ctx)
			fmt.Print(out)
			if _, cancelled := err.(*taskrun.CancelledError); cancelled && saveSlot != "" {
				var collaborator savestate.Collaborator = savestate.Noop{}
				if saveErr := collaborator.Save(prog, saveSlot, ip.Snapshot(), saveLabel); saveErr != nil {
					return saveErr
				}
				if logger.Log != nil {
					logger.Info("run paused and saved", "run_id", ip.RunID, "slot", saveSlot)
				}
				fmt.Fprintf(os.Stderr, "interrupted; saved to slot %s\n", saveSlot)
				return nil
			}
			if err != nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&insertsDir, "inserts-dir", "", "directory of file-backed inserts")
	cmd.Flags().Int64Var(&seed, "seed", 1, "seed for random_choice's PRNG")
	cmd.Flags().StringVar(&saveSlot, "save-slot", "", "save slot (\"1\"-\"10\") to persist state to on interrupt — this CLI's menu-pause equivalent")
	cmd.Flags().StringVar(&saveLabel, "save-label", "", "label recorded alongside --save-slot's save")
	return cmd
}
