package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tallowoak/taskline/internal/program"
)

func fmtCmd() *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "fmt <program.json5>",
		Short: "Reformat a program file with consistent indentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			out, err := program.Format(src)
			if err != nil {
				return err
			}
			if write {
				return os.WriteFile(path, out, 0644)
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVarP(&write, "write", "w", false, "write result to the file instead of stdout")
	return cmd
}
