package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Sayiza/orapgsync/catalog"
	"github.com/Sayiza/orapgsync/metadata"
	"github.com/Sayiza/orapgsync/transformer"
)

var (
	transformSchema string
	transformMeta   string
	transformKind   string
	transformOut    string
)

var transformCmd = &cobra.Command{
	Use:   "transform [files...]",
	Short: "Transform Oracle source files into PostgreSQL DDL",
	Long: `Transform reads Oracle source files and writes one PostgreSQL
output file per input. The object kind is taken from --kind, or guessed
from the file extension (.vw.sql view, .fnc.sql function or procedure,
.pkb.sql package body next to a .pks.sql spec).

Errors never stop the batch: the command reports per-object errors,
writes output for the successful objects, and exits zero as long as at
least one object succeeded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := loadIndex(transformMeta, transformSchema)
		if err != nil {
			return err
		}
		tr := transformer.New(idx)

		if transformOut != "" {
			if err := os.MkdirAll(transformOut, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
		}

		failed := 0
		for _, path := range args {
			if err := transformFile(tr, path); err != nil {
				logrus.WithField("file", path).WithError(err).Error("transform failed")
				failed++
			}
		}
		if failed == len(args) {
			return fmt.Errorf("all %d objects failed", failed)
		}
		if failed > 0 {
			logrus.WithField("failed", failed).Warn("job completed with errors")
		}
		return nil
	},
}

func loadIndex(metaPath, schema string) (*metadata.Index, error) {
	if metaPath == "" {
		// An empty index still lets simple rewrites through; name
		// resolution then falls back to pass-through everywhere.
		b := metadata.NewBuilder()
		b.AddSchema(schema)
		return b.Build(), nil
	}
	src, err := catalog.LoadFixture(metaPath)
	if err != nil {
		return nil, err
	}
	schemas := src.Schemas()
	if len(schemas) == 0 {
		schemas = []string{schema}
	}
	return catalog.BuildIndex(context.Background(), src, schemas)
}

func transformFile(tr *transformer.Transformer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	source := string(data)

	kind := transformKind
	if kind == "" {
		kind = guessKind(path)
	}

	var output string
	var errs []transformer.TransformError

	switch kind {
	case "view":
		res := tr.TransformView(source, transformSchema)
		output, errs = res.PostgresSQL, res.Errors
	case "function", "procedure":
		res := tr.TransformFunctionOrProcedure(source, transformSchema)
		output, errs = res.PostgresSQL, res.Errors
	case "package":
		specPath := strings.TrimSuffix(path, ".pkb.sql") + ".pks.sql"
		spec, err := os.ReadFile(specPath)
		if err != nil {
			return fmt.Errorf("package spec %s: %w", specPath, err)
		}
		name := strings.TrimSuffix(filepath.Base(path), ".pkb.sql")
		res := tr.TransformPackageBody(transformSchema, name, string(spec), source)
		var parts []string
		parts = append(parts, res.Helpers...)
		for _, fn := range res.Functions {
			parts = append(parts, fn.DDL)
		}
		output, errs = strings.Join(parts, "\n\n"), res.Errors
	default:
		return fmt.Errorf("cannot determine object kind for %s (use --kind)", path)
	}

	hard := 0
	for _, e := range errs {
		entry := logrus.WithField("file", path)
		if e.Object != "" {
			entry = entry.WithField("object", e.Object)
		}
		if e.Warning {
			entry.Warn(e.Err)
		} else {
			entry.Error(e.Err)
			hard++
		}
	}
	if output == "" && hard > 0 {
		return errs[0]
	}

	outPath := outputPath(path)
	if err := os.WriteFile(outPath, []byte(output+"\n"), 0o644); err != nil {
		return err
	}
	logrus.WithField("file", outPath).Info("written")
	return nil
}

func guessKind(path string) string {
	base := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(base, ".vw.sql"):
		return "view"
	case strings.HasSuffix(base, ".fnc.sql"), strings.HasSuffix(base, ".prc.sql"):
		return "function"
	case strings.HasSuffix(base, ".pkb.sql"):
		return "package"
	}
	return ""
}

func outputPath(in string) string {
	base := filepath.Base(in)
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	out := base + ".pg.sql"
	if transformOut != "" {
		return filepath.Join(transformOut, out)
	}
	return filepath.Join(filepath.Dir(in), out)
}

func init() {
	transformCmd.Flags().StringVar(&transformSchema, "schema", "", "current Oracle schema (required)")
	transformCmd.Flags().StringVar(&transformMeta, "metadata", "", "metadata snapshot YAML (from extract)")
	transformCmd.Flags().StringVar(&transformKind, "kind", "", "object kind: view, function, procedure, package")
	transformCmd.Flags().StringVar(&transformOut, "out", "", "output directory (default: next to input)")
	_ = transformCmd.MarkFlagRequired("schema")
	rootCmd.AddCommand(transformCmd)
}
