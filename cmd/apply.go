package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sayiza/orapgsync/pgexec"
)

var applyDSN string

var applyCmd = &cobra.Command{
	Use:   "apply [files...]",
	Short: "Apply emitted DDL files to PostgreSQL",
	Long: `Apply executes DDL files against PostgreSQL in argument order.
Order matters: trigger functions before their triggers, package helper
functions before the package bodies that call them. Failures are
collected per file; the batch continues.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		applier, err := pgexec.Connect(ctx, applyDSN)
		if err != nil {
			return err
		}

		var stmts []pgexec.Statement
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			stmts = append(stmts, pgexec.Statement{
				Object: filepath.Base(path),
				SQL:    string(data),
			})
		}

		errs := applier.Apply(ctx, stmts)
		for _, e := range errs {
			logrus.WithField("object", e.Object).Error(e.Err)
		}
		if len(errs) == len(stmts) {
			return fmt.Errorf("all %d statements failed", len(errs))
		}
		if len(errs) > 0 {
			logrus.WithField("failed", len(errs)).Warn("apply completed with errors")
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyDSN, "dsn", "", "PostgreSQL DSN or URL (required)")
	_ = applyCmd.MarkFlagRequired("dsn")
	rootCmd.AddCommand(applyCmd)
}
