package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/blueprint"
)

func newBlueprintsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "blueprints [name]",
		Short: "List the embedded workflow blueprints, or print one as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				bp, err := blueprint.Load(args[0])
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(bp); err != nil {
					return fmt.Errorf("encoding blueprint: %w", err)
				}
				return enc.Close()
			}

			for _, name := range blueprint.Names() {
				bp, err := blueprint.Load(name)
				if err != nil {
					return err
				}
				marker := ""
				if name == blueprint.Default {
					marker = " (default)"
				}
				fmt.Fprintf(out, "%s%s\t%s\t%d states\t%d transitions\n",
					name, marker, bp.Key, len(bp.States), len(bp.Transitions))
			}
			return nil
		},
	}
}
