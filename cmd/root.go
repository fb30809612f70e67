// Package cmd holds the orapgsync CLI.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	logLevel string
	version  = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "orapgsync",
	Short: "orapgsync — Oracle to PostgreSQL code migration",
	Long: `orapgsync rewrites Oracle SQL and PL/SQL (views, functions,
procedures, package bodies, object-type bodies, triggers) into
semantically equivalent PostgreSQL code.

The transform command runs offline from source files and a metadata
snapshot; extract reads the snapshot out of a live Oracle instance;
apply executes emitted DDL against PostgreSQL.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			level = logrus.InfoLevel
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI.
func Execute() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}
