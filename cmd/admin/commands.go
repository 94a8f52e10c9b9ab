package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tendant/simple-records/pkg/records"
	"github.com/tendant/simple-records/pkg/records/catalog"
	"github.com/tendant/simple-records/pkg/records/config"
	"github.com/tendant/simple-records/pkg/records/document"
	"github.com/tendant/simple-records/pkg/records/storage"
)

// loadConfig reads the environment, then applies the --schema-dir flag.
func loadConfig(cmd *cobra.Command, extra ...config.Option) (*config.ServerConfig, error) {
	opts := []config.Option{config.WithEnv("")}
	if dir, _ := cmd.Flags().GetString("schema-dir"); dir != "" {
		opts = append(opts, config.WithSchemaDir(dir, false))
	}
	opts = append(opts, extra...)
	return config.Load(opts...)
}

func commandLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelWarn
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func loadCatalog(ctx context.Context, cmd *cobra.Command) (*catalog.Catalog, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.SchemaDir == "" {
		return nil, fmt.Errorf("no schema directory: pass --schema-dir or set SCHEMA_DIR")
	}
	cat := cfg.BuildCatalog(commandLogger(cmd))
	if err := cat.Reload(ctx); err != nil {
		return nil, err
	}
	return cat, nil
}

// NewTypesCommand lists the content types of the schema directory
func NewTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List content types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cat, err := loadCatalog(ctx, cmd)
			if err != nil {
				return err
			}
			types, err := cat.ContentTypes(ctx)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(types))
			for _, ct := range types {
				rels, err := cat.RelationshipsByContentType(ctx, ct)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					ct.ID, ct.Variable, string(ct.BaseType),
					strconv.Itoa(len(ct.Fields)), strconv.Itoa(len(rels)),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Variable", "Base Type", "Fields", "Relationships"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return nil
		},
	}
}

// NewFieldsCommand shows the fields of one content type and their columns
func NewFieldsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fields <type>",
		Short: "Show the fields and column layout of a content type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cat, err := loadCatalog(ctx, cmd)
			if err != nil {
				return err
			}
			ct, err := cat.ContentTypeByVariable(ctx, args[0])
			if err != nil {
				ct, err = cat.ContentTypeByID(ctx, args[0])
			}
			if err != nil {
				return fmt.Errorf("content type %q: %w", args[0], err)
			}
			layout, err := storage.LayoutFor(ct)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(ct.Fields))
			for _, f := range ct.Fields {
				column := layout[f.Variable]
				if column == "" {
					column = "-"
				}
				rows = append(rows, []string{f.Variable, string(f.Kind), string(f.DataType), column})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Variable", "Kind", "Data Type", "Column"}, rows, nil))
			return nil
		},
	}
}

type capability bool

func (c capability) SupportsDocumentColumns() bool { return bool(c) }

// documentCapable tells which database types have a document column.
var documentCapable = map[string]capability{
	"memory":   true,
	"postgres": true,
	"sqlite":   false,
}

// NewStrategyCommand reports the representation a save would use
func NewStrategyCommand() *cobra.Command {
	var dbType string

	cmd := &cobra.Command{
		Use:   "strategy",
		Short: "Show the storage representation selected by the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if dbType == "" {
				dbType = cfg.DatabaseType
			}
			capable, ok := documentCapable[dbType]
			if !ok {
				return fmt.Errorf("unknown database type %q", dbType)
			}

			flags := cfg.FlagSource()()
			rep := storage.StrategyFor(flags, capable)
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Database", "Document Capable", config.EnvPersistAsDocument, config.EnvPersistAsColumns, "Representation"},
				[][]string{{dbType, strconv.FormatBool(bool(capable)), flagString(flags.PersistAsDocument),
					flagString(flags.PersistAsColumns), rep.String()}},
				nil,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&dbType, "database", "", "database type: memory, postgres or sqlite (default: from DATABASE_URL)")
	return cmd
}

func flagString(b *bool) string {
	if b == nil {
		return "unset"
	}
	return strconv.FormatBool(*b)
}

// NewConvertCommand populates a record from a JSON field map and prints its document
func NewConvertCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <type-dir> <map.json>",
		Short: "Convert a JSON field map into a stored document",
		Long: `Populate a record from a JSON field map against in-memory reference stores
and print the document that would be written to the contentlet_as_json column.
Use "-" to read the map from standard input.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			fields, err := readFieldMap(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}

			cfg, err := config.Load(config.WithSchemaDir(args[0], false))
			if err != nil {
				return err
			}
			engine, err := cfg.BuildEngine(ctx, commandLogger(cmd))
			if err != nil {
				return err
			}
			defer engine.Close()

			rec, err := engine.Builder.Populate(ctx, nil, fields)
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), rec)
		},
	}
}

func readFieldMap(stdin io.Reader, path string) (map[string]any, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var fields map[string]any
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("invalid field map: %w", err)
	}
	return fields, nil
}

func writeDocument(w io.Writer, rec *records.Record) error {
	data, err := document.Marshal(rec)
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = out.WriteTo(w)
	return err
}
