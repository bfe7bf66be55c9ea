package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RomaoFilipe/StockBackup-sub000/internal/domain"
)

func newProvisionCmd(c *cli) *cobra.Command {
	var (
		tenants    []string
		newVersion bool
	)

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision the configured blueprint for one or more tenants",
		Long: "Creates or reconciles each tenant's active workflow definition.\n" +
			"With --new-version the active definition is retired and the next version created;\n" +
			"requests already in flight keep their definition.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openDB(c.cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			svc, err := newService(c.cfg, db, c.logger)
			if err != nil {
				return err
			}

			for _, tenant := range tenants {
				var def domain.Definition
				if newVersion {
					def, err = svc.Reprovision(cmd.Context(), tenant)
				} else {
					def, err = svc.EnsureDefinition(cmd.Context(), tenant)
				}
				if err != nil {
					return fmt.Errorf("tenant %s: %w", tenant, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tv%d\t%s\n", tenant, def.Key, def.Version, def.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&tenants, "tenant", "t", nil, "tenant id (repeatable)")
	cmd.Flags().BoolVar(&newVersion, "new-version", false, "retire the active definition and create the next version")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
