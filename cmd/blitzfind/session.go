package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spounge-ai/blitzfind/internal/client"
	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/internal/importer/source"
	"github.com/spounge-ai/blitzfind/internal/wiring"
	customvalidator "github.com/spounge-ai/blitzfind/pkg/validator"
)

// session is what the record and import commands operate on: a running
// server by default, or the configured store with --direct.
type session interface {
	Get(ctx context.Context, id string) (*domain.Record, error)
	Query(ctx context.Context, id string) (*client.QueryResult, error)
	Set(ctx context.Context, id string, value json.RawMessage) (*domain.UpsertResult, error)
	Delete(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, skip, limit int) (*domain.Page, error)
	ImportGeoJSON(ctx context.Context, target string) (*domain.ImportResult, error)
	ImportSQLite(ctx context.Context, path string, opts source.TableOptions) (*domain.ImportResult, error)
}

type remoteSession struct {
	cli    *cli
	client *client.Client
}

func (s *remoteSession) Get(ctx context.Context, id string) (*domain.Record, error) {
	return s.client.Get(ctx, id)
}

func (s *remoteSession) Query(ctx context.Context, id string) (*client.QueryResult, error) {
	return s.client.Query(ctx, id)
}

func (s *remoteSession) Set(ctx context.Context, id string, value json.RawMessage) (*domain.UpsertResult, error) {
	return s.client.Set(ctx, id, value)
}

func (s *remoteSession) Delete(ctx context.Context, id string) (bool, error) {
	return s.client.Delete(ctx, id)
}

func (s *remoteSession) List(ctx context.Context, skip, limit int) (*domain.Page, error) {
	return s.client.List(ctx, skip, limit)
}

// ImportGeoJSON streams the file or S3 object to the server unparsed.
func (s *remoteSession) ImportGeoJSON(ctx context.Context, target string) (*domain.ImportResult, error) {
	if source.IsS3URI(target) {
		bucket, key, err := source.ParseS3URI(target)
		if err != nil {
			return nil, err
		}
		s3Client, err := source.NewS3Client(ctx, s.cli.cfg.Import.AWS)
		if err != nil {
			return nil, err
		}
		body, err := source.OpenS3Object(ctx, s3Client, bucket, key)
		if err != nil {
			return nil, err
		}
		defer body.Close()
		return s.client.ImportGeoJSON(ctx, body)
	}

	f, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", target, err)
	}
	defer f.Close()
	return s.client.ImportGeoJSON(ctx, f)
}

func (s *remoteSession) ImportSQLite(ctx context.Context, path string, opts source.TableOptions) (*domain.ImportResult, error) {
	opts = opts.WithDefaults()
	for _, ident := range []string{opts.Table, opts.IDColumn, opts.GeomColumn} {
		if !customvalidator.IsSQLIdent(ident) {
			return nil, fmt.Errorf("%w: invalid identifier %q", app_errors.ErrInvalidInput, ident)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return s.client.ImportSQLite(ctx, filepath.Base(path), f, opts)
}

// directSession works on the store without a server. A running server keeps
// serving its own cached copies of anything changed this way until they expire.
type directSession struct {
	cli       *cli
	container *wiring.Container
}

func (s *directSession) Get(ctx context.Context, id string) (*domain.Record, error) {
	return s.container.Records.Read(ctx, id)
}

func (s *directSession) Query(ctx context.Context, id string) (*client.QueryResult, error) {
	rec, err := s.container.Records.Read(ctx, id)
	switch {
	case errors.Is(err, app_errors.ErrNotFound):
		return &client.QueryResult{ID: id, Value: json.RawMessage("null")}, nil
	case err != nil:
		return nil, err
	}
	return &client.QueryResult{Found: true, ID: rec.ID, Value: rec.Value}, nil
}

func (s *directSession) Set(ctx context.Context, id string, value json.RawMessage) (*domain.UpsertResult, error) {
	return s.container.Records.Write(ctx, id, value)
}

func (s *directSession) Delete(ctx context.Context, id string) (bool, error) {
	return s.container.Records.Delete(ctx, id)
}

func (s *directSession) List(ctx context.Context, skip, limit int) (*domain.Page, error) {
	return s.container.Records.List(ctx, skip, limit)
}

func (s *directSession) ImportGeoJSON(ctx context.Context, target string) (*domain.ImportResult, error) {
	items, err := s.cli.readGeoJSON(ctx, target)
	if err != nil {
		return nil, err
	}
	return s.container.Importer.Import(ctx, items), nil
}

func (s *directSession) ImportSQLite(ctx context.Context, path string, opts source.TableOptions) (*domain.ImportResult, error) {
	items, err := source.SQLiteTable(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return s.container.Importer.Import(ctx, items), nil
}

// withSession runs fn against a server at --url, or against the store with --direct.
func (c *cli) withSession(ctx context.Context, fn func(session) error) error {
	if c.direct {
		return c.withContainer(ctx, func(container *wiring.Container) error {
			return fn(&directSession{cli: c, container: container})
		})
	}

	cl, err := client.New(c.serverURL, client.WithLogger(c.logger))
	if err != nil {
		return err
	}
	return fn(&remoteSession{cli: c, client: cl})
}
