// Package importer turns sequences of (id, value) items into record writes.
package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/pkg/patterns/batch"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("github.com/spounge-ai/blitzfind/internal/importer")

const DefaultMaxConcurrency = 8

// Writer is the write side of the record service.
type Writer interface {
	Write(ctx context.Context, id string, value json.RawMessage) (*domain.UpsertResult, error)
}

// Importer writes batches through a Writer. Items sharing an id are applied in
// input order, so the last occurrence wins; distinct ids are written concurrently.
type Importer struct {
	writer         Writer
	maxConcurrency int
	logger         *slog.Logger
}

func New(writer Writer, maxConcurrency int, logger *slog.Logger) *Importer {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Importer{writer: writer, maxConcurrency: maxConcurrency, logger: logger}
}

type indexedItem struct {
	index int
	item  domain.ImportItem
}

type idGroup struct {
	id    string
	items []indexedItem
}

type outcome struct {
	index   int
	id      string
	created bool
	err     error
}

// Import stores every valid item and reports per-item failures without
// aborting the batch. Items not written because ctx ended are reported as errors.
func (im *Importer) Import(ctx context.Context, items []domain.ImportItem) *domain.ImportResult {
	result := &domain.ImportResult{
		BatchID: uuid.NewString(),
		Total:   len(items),
		Errors:  []domain.ImportError{},
	}

	ctx, span := tracer.Start(ctx, "Import")
	defer span.End()
	span.SetAttributes(attribute.String("import.batch_id", result.BatchID), attribute.Int("import.total", len(items)))

	groups := make([]*idGroup, 0, len(items))
	byID := make(map[string]*idGroup, len(items))
	for i, it := range items {
		if err := validateItem(it); err != nil {
			result.Errors = append(result.Errors, domain.ImportError{Index: i, ID: it.ID, Reason: err.Error()})
			continue
		}
		g, ok := byID[it.ID]
		if !ok {
			g = &idGroup{id: it.ID}
			byID[it.ID] = g
			groups = append(groups, g)
		}
		g.items = append(g.items, indexedItem{index: i, item: it})
	}

	processor := batch.BatchProcessor[*idGroup, []outcome]{
		MaxConcurrency: im.maxConcurrency,
		Process:        im.writeGroup,
	}
	batchResult := processor.ProcessBatch(ctx, groups)

	for gi, bi := range batchResult.Items {
		if bi.Error != nil {
			for _, it := range groups[gi].items {
				result.Errors = append(result.Errors, domain.ImportError{Index: it.index, ID: it.item.ID, Reason: bi.Error.Error()})
			}
			continue
		}
		for _, o := range bi.Result {
			switch {
			case o.err != nil:
				result.Errors = append(result.Errors, domain.ImportError{Index: o.index, ID: o.id, Reason: o.err.Error()})
			case o.created:
				result.Imported++
			default:
				result.Updated++
			}
		}
	}

	sort.Slice(result.Errors, func(i, j int) bool { return result.Errors[i].Index < result.Errors[j].Index })

	span.SetAttributes(
		attribute.Int("import.imported", result.Imported),
		attribute.Int("import.updated", result.Updated),
		attribute.Int("import.errors", len(result.Errors)),
	)
	im.logger.InfoContext(ctx, "import finished",
		"batch_id", result.BatchID,
		"total", result.Total,
		"imported", result.Imported,
		"updated", result.Updated,
		"errors", len(result.Errors),
	)
	return result
}

// writeGroup applies one id's items sequentially.
func (im *Importer) writeGroup(ctx context.Context, g *idGroup) ([]outcome, error) {
	out := make([]outcome, 0, len(g.items))
	for _, it := range g.items {
		if err := ctx.Err(); err != nil {
			out = append(out, outcome{index: it.index, id: g.id, err: err})
			continue
		}
		res, err := im.writer.Write(ctx, g.id, it.item.Value)
		if err != nil {
			im.logger.WarnContext(ctx, "import item failed", "index", it.index, "id", g.id, "error", err)
			out = append(out, outcome{index: it.index, id: g.id, err: err})
			continue
		}
		out = append(out, outcome{index: it.index, id: g.id, created: res.Created})
	}
	return out, nil
}

var errInvalidJSON = errors.New("value is not valid JSON")

func validateItem(it domain.ImportItem) error {
	if err := domain.ValidateRecordID(it.ID); err != nil {
		return fmt.Errorf("%w: %w", app_errors.ErrInvalidRecord, err)
	}
	if len(it.Value) == 0 || !json.Valid(it.Value) {
		return fmt.Errorf("%w: %w", app_errors.ErrInvalidRecord, errInvalidJSON)
	}
	return nil
}
