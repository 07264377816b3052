package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tallowoak/taskline/internal/program"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <program.json5>",
		Short: "Parse and statically analyze a program without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			prog, err := program.Parse(src)
			if err != nil {
				return err
			}
			errs := program.Analyze(prog)
			for _, e := range errs {
				fmt.Fprintln(os.Stderr, e)
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d error(s) found", len(errs))
			}
			fmt.Println("ok")
			return nil
		},
	}
}
