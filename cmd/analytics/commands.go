package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alem-hub/strategic-analytics/internal/application/query"
	"github.com/alem-hub/strategic-analytics/internal/domain/analytics"
	"github.com/alem-hub/strategic-analytics/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/strategic-analytics/internal/infrastructure/policyfile"
)

func fingerprintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the content fingerprint of a snapshot under a policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, _ := cmd.Flags().GetString("input")
			policyPath, _ := cmd.Flags().GetString("policy")

			settings, err := policyfile.Load(policyPath)
			if err != nil {
				return err
			}
			snapshot, err := readSnapshot(cmd.InOrStdin(), input)
			if err != nil {
				return err
			}
			fp, err := analytics.Fingerprint(snapshot, settings.Goals, settings.Policy)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), fp)
			return err
		},
	}
	cmd.Flags().StringP("input", "i", "-", "snapshot JSON file (- for stdin)")
	cmd.Flags().StringP("policy", "p", "", "YAML policy file")
	return cmd
}

func policyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the effective policy as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("policy")
			settings, err := policyfile.Load(path)
			if err != nil {
				return err
			}
			return policyfile.Encode(cmd.OutOrStdout(), settings)
		},
	}
	cmd.Flags().StringP("policy", "p", "", "YAML policy file to merge over the defaults")
	return cmd
}

func dbFlags(cmd *cobra.Command) {
	cmd.Flags().String("database-url", "", "PostgreSQL URL (defaults to $DATABASE_URL)")
	cmd.Flags().Duration("timeout", time.Minute, "overall timeout")
}

func connect(cmd *cobra.Command) (*postgres.Connection, context.Context, context.CancelFunc, error) {
	url, _ := cmd.Flags().GetString("database-url")
	if url == "" {
		url = os.Getenv("DATABASE_URL")
	}
	if url == "" {
		return nil, nil, nil, fmt.Errorf("--database-url or DATABASE_URL is required")
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)

	conn, err := postgres.NewConnection(ctx, url, postgres.DefaultPoolDefaults())
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return conn, ctx, cancel, nil
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <institution-id>",
		Short: "Build the strategic report of an institution stored in the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			policyPath, _ := cmd.Flags().GetString("policy")
			output, _ := cmd.Flags().GetString("output")

			settings, err := policyfile.Load(policyPath)
			if err != nil {
				return err
			}
			conn, ctx, cancel, err := connect(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer conn.Close()

			h := query.NewGetStrategicReportHandler(postgres.NewSnapshotRepository(conn),
				settings.Policy, settings.Goals, query.WithLogger(cliLogger(cmd)))
			res, err := h.Handle(ctx, query.GetStrategicReportQuery{InstitutionID: args[0]})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), output, res, true)
		},
	}
	dbFlags(cmd)
	cmd.Flags().StringP("policy", "p", "", "YAML policy file")
	cmd.Flags().StringP("output", "o", "-", "output file (- for stdout)")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetBool("status")

			conn, ctx, cancel, err := connect(cmd)
			if err != nil {
				return err
			}
			defer cancel()
			defer conn.Close()

			m := postgres.NewMigrator(conn)
			out := cmd.OutOrStdout()
			if status {
				migs, err := m.Status(ctx)
				if err != nil {
					return err
				}
				for _, mig := range migs {
					state := "pending"
					if mig.IsApplied {
						state = "applied " + mig.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(out, "%03d %-28s %s\n", mig.Version, mig.Name, state)
				}
				return nil
			}

			n, err := m.Migrate(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "applied %d migration(s)\n", n)
			return nil
		},
	}
	dbFlags(cmd)
	cmd.Flags().Bool("status", false, "show migration status instead of migrating")
	return cmd
}
