package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spounge-ai/blitzfind/internal/domain"
	"github.com/spounge-ai/blitzfind/internal/importer/source"
	"github.com/spounge-ai/blitzfind/internal/infra/telemetry"
)

func newImportCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Bulk-load records from GeoJSON or SQLite sources",
	}
	cmd.AddCommand(newImportGeoJSONCmd(c), newImportSQLiteCmd(c))
	return cmd
}

func newImportGeoJSONCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "geojson <file|s3://bucket/key>",
		Short: "Import every feature of a FeatureCollection, keyed by feature id",
		Example: `  blitzfind import geojson sample_data.geojson
  blitzfind import geojson s3://maps/buildings.geojson`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImport(cmd, func(ctx context.Context, s session) (*domain.ImportResult, error) {
				return s.ImportGeoJSON(ctx, args[0])
			})
		},
	}
}

func newImportSQLiteCmd(c *cli) *cobra.Command {
	var opts source.TableOptions
	cmd := &cobra.Command{
		Use:     "sqlite <file>",
		Aliases: []string{"spatialite"},
		Short:   "Import rows of a SQLite/SpatiaLite table as GeoJSON features",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runImport(cmd, func(ctx context.Context, s session) (*domain.ImportResult, error) {
				return s.ImportSQLite(ctx, args[0], opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Table, "table", source.DefaultTable, "table to read")
	cmd.Flags().StringVar(&opts.IDColumn, "id-column", source.DefaultIDColumn, "column holding the record id")
	cmd.Flags().StringVar(&opts.GeomColumn, "geom-column", source.DefaultGeomColumn, "column holding GeoJSON geometry")
	return cmd
}

func (c *cli) readGeoJSON(ctx context.Context, target string) ([]domain.ImportItem, error) {
	if source.IsS3URI(target) {
		bucket, key, err := source.ParseS3URI(target)
		if err != nil {
			return nil, err
		}
		client, err := source.NewS3Client(ctx, c.cfg.Import.AWS)
		if err != nil {
			return nil, err
		}
		return source.S3Object(ctx, client, bucket, key, c.logger)
	}

	f, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", target, err)
	}
	defer f.Close()
	return source.GeoJSON(f)
}

func (c *cli) runImport(cmd *cobra.Command, run func(context.Context, session) (*domain.ImportResult, error)) error {
	ctx := cmd.Context()

	shutdownTracing, err := telemetry.Setup(ctx, c.cfg.Telemetry, c.cfg.ServiceVersion)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.WithoutCancel(ctx)) }()

	return c.withSession(ctx, func(s session) error {
		result, err := run(ctx, s)
		if err != nil {
			return err
		}
		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
		if len(result.Errors) > 0 {
			c.logger.Warn("import finished with errors", "errors", len(result.Errors))
		}
		return nil
	})
}
