package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spounge-ai/blitzfind/internal/infra/persistence"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply or roll back the schema migrations",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{persistence.MigrateUp.String(), persistence.MigrateDown.String()},
		RunE: func(cmd *cobra.Command, args []string) error {
			direction := persistence.MigrateUp
			if len(args) == 1 {
				d, err := persistence.ParseMigrateDirection(args[0])
				if err != nil {
					return err
				}
				direction = d
			}
			if err := persistence.Migrate(c.cfg.Persistence, direction, c.logger); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", direction)
			return err
		},
	}
}
