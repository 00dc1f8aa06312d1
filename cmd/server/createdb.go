package main

import (
	"fmt"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

// NewCreateDBCmd creates the create-db subcommand.
func NewCreateDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-db",
		Short: "Create the database tables",
		Long:  `Apply all pending schema migrations to the configured database.`,
		RunE:  runCreateDB,
	}
}

func runCreateDB(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	st, err := openStores(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	if err := st.migrate(cmd.Context()); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Tables created.")
	return nil
}
