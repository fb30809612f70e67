package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sayiza/orapgsync/catalog"
)

var (
	extractConfig string
	extractOutput string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract a metadata snapshot from Oracle",
	Long: `Extract connects to Oracle, reads the schema facts the
transformer needs (tables and columns, synonyms, package functions,
type methods) and writes them as a YAML snapshot for offline
transform runs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(extractConfig)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		var cfg catalog.Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
		if len(cfg.Schemas) == 0 {
			return fmt.Errorf("config names no schemas")
		}

		src, err := catalog.Open(cfg)
		if err != nil {
			return err
		}
		defer src.Close()

		ctx := context.Background()
		if err := src.Ping(ctx); err != nil {
			return fmt.Errorf("oracle unreachable: %w", err)
		}

		snap := catalog.Snapshot{Schemas: cfg.Schemas}
		if snap.Tables, err = src.ListTables(ctx, cfg.Schemas); err != nil {
			return err
		}
		if snap.Synonyms, err = src.ListSynonyms(ctx, cfg.Schemas); err != nil {
			return err
		}
		if snap.PackageFunctions, err = src.ListPackageFunctions(ctx, cfg.Schemas); err != nil {
			return err
		}
		if snap.TypeMethods, err = src.ListTypeMethods(ctx, cfg.Schemas); err != nil {
			return err
		}

		if err := catalog.WriteSnapshot(extractOutput, snap); err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"tables":   len(snap.Tables),
			"synonyms": len(snap.Synonyms),
			"output":   extractOutput,
		}).Info("snapshot written")
		return nil
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractConfig, "config", "orapgsync.yaml", "Oracle connection config")
	extractCmd.Flags().StringVar(&extractOutput, "out", "metadata.yaml", "snapshot output path")
	rootCmd.AddCommand(extractCmd)
}
