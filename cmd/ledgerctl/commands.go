package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/walkmapper/walkmapper_core/internal/app"
	"github.com/walkmapper/walkmapper_core/internal/export"
	"github.com/walkmapper/walkmapper_core/internal/ledger"
)

// showColumns are the ledger columns printed by `show`, by header position
var showColumns = []int{2, 3, 1, 8, 9, 10, 12, 13}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the ledger header up to date",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.Storage.LedgerPath
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}

			header := ledger.Header(cfg.Variant().System)
			res, err := ledger.Migrate(path, header, ctx.logger())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case res.Created:
				fmt.Fprintf(out, "Created %s\n", path)
			case res.Migrated:
				fmt.Fprintf(out, "Migrated %s\n", path)
				if len(res.Missing) > 0 {
					fmt.Fprintf(out, "Added:    %s\n", strings.Join(res.Missing, ", "))
				}
				if len(res.Obsolete) > 0 {
					fmt.Fprintf(out, "Obsolete: %s\n", strings.Join(res.Obsolete, ", "))
				}
			default:
				fmt.Fprintf(out, "%s is up to date\n", path)
			}
			return nil
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the most recent ledger rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				out := cmd.OutOrStdout()
				header, rows, err := rt.Ledger.Records()
				if errors.Is(err, ledger.ErrEmpty) {
					fmt.Fprintln(out, "Ledger is empty")
					return nil
				}
				if err != nil {
					return err
				}

				total := len(rows)
				if limit > 0 && len(rows) > limit {
					rows = rows[len(rows)-limit:]
				}

				headers := make([]string, len(showColumns))
				for i, col := range showColumns {
					headers[i] = header[col]
				}
				picked := make([][]string, len(rows))
				for r, row := range rows {
					picked[r] = make([]string, len(showColumns))
					for i, col := range showColumns {
						if col < len(row) {
							picked[r][i] = row[col]
						}
					}
				}

				fmt.Fprintln(out, renderTable(headers, picked, map[int]bool{0: true, 1: true, 4: true, 5: true, 6: true}))
				fmt.Fprintf(out, "Ledger rows: %d (%s)\n", total, rt.Ledger.Path())
				if rt.Store != nil {
					n, err := rt.Store.Count(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Store rows:  %d\n", n)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of rows to print (0 for all)")
	return cmd
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var outPath string
	var format string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every persisted segment to a spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(outPath) == "" {
				return errors.New("--out is required")
			}
			return ctx.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				var data []byte
				var err error
				switch strings.ToLower(format) {
				case "xlsx":
					data, err = rt.Exporter.Export(cmd.Context())
				case "csv":
					var header []string
					var rows [][]string
					header, rows, err = rt.Ledger.Records()
					if err == nil {
						data, err = export.CSV(header, rows)
					}
				default:
					return fmt.Errorf("unknown format %q (want xlsx or csv)", format)
				}
				if errors.Is(err, export.ErrNotFound) || errors.Is(err, ledger.ErrEmpty) {
					return errors.New("nothing to export")
				}
				if err != nil {
					return err
				}

				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", outPath, len(data))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination file")
	cmd.Flags().StringVarP(&format, "format", "f", "xlsx", "Output format: xlsx or csv")
	return cmd
}

func newRebuildExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild-export",
		Short: "Regenerate the wide route spreadsheet from the relational store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				if rt.Store == nil {
					return errors.New("rebuild-export needs a relational store (storage.driver is none)")
				}
				if rt.Wide == nil {
					return errors.New("wide export is disabled (storage.wide_export_enabled)")
				}

				segs, err := rt.Store.ListSegments(cmd.Context())
				if err != nil {
					return err
				}
				routes := export.GroupRoutes(segs, rt.Variant.System)
				if err := rt.Wide.Rebuild(routes); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rebuilt %s from %d routes (%d segments)\n", rt.Wide.Path(), len(routes), len(segs))
				return nil
			})
		},
	}
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all persisted segments from every sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			return ctx.withRuntime(cmd.Context(), func(rt *app.Runtime) error {
				if err := rt.Coordinator.Clear(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cleared all sinks")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}
