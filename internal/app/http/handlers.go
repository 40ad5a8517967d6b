package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/spounge-ai/blitzfind/internal/importer"
	"github.com/spounge-ai/blitzfind/internal/importer/source"
	"github.com/spounge-ai/blitzfind/internal/service"
	"github.com/spounge-ai/blitzfind/pkg/cache"
	"github.com/spounge-ai/blitzfind/pkg/patterns/lifecycle"
	customvalidator "github.com/spounge-ai/blitzfind/pkg/validator"
)

const defaultMaxUploadBytes = 64 << 20

// HealthReporter reports every managed component by name.
type HealthReporter interface {
	Health(ctx context.Context) map[string]lifecycle.HealthStatus
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Records         service.RecordService
	Importer        *importer.Importer
	Health          HealthReporter
	Version         string
	Commit          string
	ErrorClassifier *app_errors.ErrorClassifier
	Logger          *slog.Logger
}

type api struct {
	Deps
	validate       *validator.Validate
	maxUploadBytes int64
}

func newAPI(deps Deps, maxUploadBytes int64) (*api, error) {
	if deps.Records == nil || deps.Importer == nil {
		return nil, errors.New("http: records and importer are required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.ErrorClassifier == nil {
		deps.ErrorClassifier = app_errors.NewErrorClassifier(deps.Logger)
	}
	validate, err := customvalidator.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create request validator: %w", err)
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &api{Deps: deps, validate: validate, maxUploadBytes: maxUploadBytes}, nil
}

func (a *api) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.handleRoot)
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("POST /data", a.handleWrite)
	mux.HandleFunc("GET /data", a.handleList)
	mux.HandleFunc("GET /data/{id}", a.handleGet)
	mux.HandleFunc("DELETE /data/{id}", a.handleDelete)
	mux.HandleFunc("GET /query/{id}", a.handleQuery)
	mux.HandleFunc("POST /import/geojson", a.handleImportGeoJSON)
	mux.HandleFunc("POST /import/sqlite", a.handleImportSQLite)
	mux.HandleFunc("POST /import/spatialite", a.handleImportSQLite)
	return mux
}

type errorBody struct {
	Error     string `json:"error"`
	Class     string `json:"class,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type writeRequest struct {
	ID    string          `json:"id" validate:"recordid"`
	Value json.RawMessage `json:"value" validate:"required"`
}

type queryResponse struct {
	Found bool            `json:"found"`
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

type listEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listResponse struct {
	Total int64       `json:"total"`
	Skip  int         `json:"skip"`
	Limit int         `json:"limit"`
	Data  []listEntry `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
}

type healthResponse struct {
	Status     string                            `json:"status"`
	Version    string                            `json:"version"`
	Commit     string                            `json:"commit,omitempty"`
	Components map[string]lifecycle.HealthStatus `json:"components"`
	Cache      cache.Stats                       `json:"cache"`
}

func (a *api) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "BlitzFind API is running", Version: a.Version})
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "ok",
		Version:    a.Version,
		Commit:     a.Commit,
		Components: map[string]lifecycle.HealthStatus{},
		Cache:      a.Records.CacheStats(),
	}
	if a.Health != nil {
		resp.Components = a.Health.Health(r.Context())
	}

	status := http.StatusOK
	for _, component := range resp.Components {
		if !component.Ready {
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, status, resp)
}

func (a *api) handleWrite(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeError(w, r, decodeError(err), "WriteRecord", "")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		a.writeError(w, r, fmt.Errorf("%w: %w", app_errors.ErrInvalidInput, err), "WriteRecord", req.ID)
		return
	}

	res, err := a.Records.Write(r.Context(), req.ID, req.Value)
	if err != nil {
		a.writeError(w, r, err, "WriteRecord", req.ID)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res.Record)
}

func (a *api) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := a.Records.Read(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "GetRecord", id)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *api) handleQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := a.Records.Read(r.Context(), id)
	switch {
	case errors.Is(err, app_errors.ErrNotFound):
		writeJSON(w, http.StatusOK, queryResponse{Found: false, ID: id, Value: json.RawMessage("null")})
	case err != nil:
		a.writeError(w, r, err, "QueryRecord", id)
	default:
		writeJSON(w, http.StatusOK, queryResponse{Found: true, ID: rec.ID, Value: rec.Value})
	}
}

func (a *api) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := a.Records.Delete(r.Context(), id)
	if err != nil {
		a.writeError(w, r, err, "DeleteRecord", id)
		return
	}
	if !deleted {
		a.writeError(w, r, fmt.Errorf("%w: %s", app_errors.ErrNotFound, id), "DeleteRecord", id)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: fmt.Sprintf("ID '%s' deleted successfully", id)})
}

func (a *api) handleList(w http.ResponseWriter, r *http.Request) {
	skip, err := intParam(r, "skip", 0)
	if err != nil {
		a.writeError(w, r, err, "ListRecords", "")
		return
	}
	limit, err := intParam(r, "limit", domain.DefaultListLimit)
	if err != nil {
		a.writeError(w, r, err, "ListRecords", "")
		return
	}

	page, err := a.Records.List(r.Context(), skip, limit)
	if err != nil {
		a.writeError(w, r, err, "ListRecords", "")
		return
	}

	resp := listResponse{Total: page.Total, Skip: page.Skip, Limit: page.Limit, Data: make([]listEntry, 0, len(page.Records))}
	for _, rec := range page.Records {
		resp.Data = append(resp.Data, listEntry{ID: rec.ID, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleImportGeoJSON accepts either a raw FeatureCollection body or a
// multipart upload in the "file" field.
func (a *api) handleImportGeoJSON(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)

	var body io.Reader = r.Body
	if isMultipart(r) {
		file, name, err := a.formFile(r)
		if err != nil {
			a.writeError(w, r, err, "ImportGeoJSON", "")
			return
		}
		defer file.Close()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != ".geojson" && ext != ".json" {
			a.writeError(w, r, fmt.Errorf("%w: file must be a GeoJSON file", app_errors.ErrInvalidInput), "ImportGeoJSON", "")
			return
		}
		body = file
	}

	items, err := source.GeoJSON(body)
	if err != nil {
		a.writeError(w, r, decodeError(err), "ImportGeoJSON", "")
		return
	}
	writeJSON(w, http.StatusOK, a.Importer.Import(r.Context(), items))
}

// handleImportSQLite spools the uploaded database to a temp file, since SQLite
// can only read from a path. The table may be named by table or table_name.
func (a *api) handleImportSQLite(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)

	q := r.URL.Query()
	table := q.Get("table")
	if table == "" {
		table = q.Get("table_name")
	}
	opts := source.TableOptions{
		Table:      table,
		IDColumn:   q.Get("id_column"),
		GeomColumn: q.Get("geom_column"),
	}.WithDefaults()
	if err := a.validate.Struct(opts); err != nil {
		a.writeError(w, r, fmt.Errorf("%w: %w", app_errors.ErrInvalidInput, err), "ImportSQLite", "")
		return
	}

	if !isMultipart(r) {
		a.writeError(w, r, fmt.Errorf("%w: expected multipart upload with a file field", app_errors.ErrInvalidInput), "ImportSQLite", "")
		return
	}
	file, _, err := a.formFile(r)
	if err != nil {
		a.writeError(w, r, err, "ImportSQLite", "")
		return
	}
	defer file.Close()

	path, cleanup, err := spool(file)
	if err != nil {
		a.writeError(w, r, err, "ImportSQLite", "")
		return
	}
	defer cleanup()

	items, err := source.SQLiteTable(r.Context(), path, opts)
	if err != nil {
		a.writeError(w, r, err, "ImportSQLite", "")
		return
	}
	writeJSON(w, http.StatusOK, a.Importer.Import(r.Context(), items))
}

func (a *api) formFile(r *http.Request) (io.ReadCloser, string, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, "", decodeError(err)
	}
	return file, header.Filename, nil
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error, operation, recordID string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{
			Error:     fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			Class:     app_errors.ClassValidation.String(),
			RequestID: RequestID(r.Context()),
		})
		return
	}

	sanitized := a.ErrorClassifier.Sanitize(r.Context(), err, operation, recordID)
	writeJSON(w, sanitized.Status, errorBody{
		Error:     sanitized.Message,
		Class:     sanitized.Class.String(),
		RequestID: RequestID(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeError marks request decoding failures as invalid input, keeping
// size-limit errors intact.
func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) || errors.Is(err, app_errors.ErrInvalidInput) {
		return err
	}
	return fmt.Errorf("%w: %w", app_errors.ErrInvalidInput, err)
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", app_errors.ErrInvalidInput, name)
	}
	return v, nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func spool(r io.Reader) (string, func(), error) {
	f, err := os.CreateTemp("", "blitzfind-import-*.sqlite")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, err
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}
