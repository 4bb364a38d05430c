package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AaronLay10/LockStep/internal/scenario"
)

// newCheckCmd validates scenario files without starting a server.
func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE...",
		Short: "Validate scenario files (.json, .yaml, .yml).",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				doc, err := scenario.LoadFile(path)
				if err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					failed++
					continue
				}
				for _, sc := range doc.Scenarios {
					fmt.Fprintf(out, "ok   %s: %s (%d nodes)\n", path, sc.ID, len(sc.Nodes))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}
