// Package source reads import items out of GeoJSON documents, SQLite tables and S3 objects.
package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spounge-ai/blitzfind/internal/domain"
	app_errors "github.com/spounge-ai/blitzfind/internal/errors"
	"github.com/tidwall/gjson"
)

var ErrNotFeatureCollection = errors.New("must be a FeatureCollection")

// GeoJSON reads a FeatureCollection and returns one item per feature, in order.
// The id comes from feature.id, else properties.id; a feature with neither
// yields an empty id, which the importer reports as an invalid record.
// The value is the whole feature.
func GeoJSON(r io.Reader) ([]domain.ImportItem, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read geojson: %w", err)
	}
	return ParseGeoJSON(data)
}

// ParseGeoJSON is GeoJSON over an in-memory document.
func ParseGeoJSON(data []byte) ([]domain.ImportItem, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid geojson: malformed JSON", app_errors.ErrInvalidInput)
	}

	root := gjson.ParseBytes(data)
	if root.Get("type").String() != "FeatureCollection" {
		return nil, fmt.Errorf("%w: invalid geojson: %w", app_errors.ErrInvalidInput, ErrNotFeatureCollection)
	}
	features := root.Get("features")
	if !features.IsArray() {
		return nil, fmt.Errorf("%w: invalid geojson: features is not an array", app_errors.ErrInvalidInput)
	}

	items := make([]domain.ImportItem, 0, len(features.Array()))
	features.ForEach(func(_, feature gjson.Result) bool {
		items = append(items, domain.ImportItem{
			ID:    featureID(feature),
			Value: json.RawMessage(feature.Raw),
		})
		return true
	})
	return items, nil
}

func featureID(feature gjson.Result) string {
	if id := scalarString(feature.Get("id")); id != "" {
		return id
	}
	return scalarString(feature.Get("properties.id"))
}

// scalarString renders string and number ids; numbers keep their literal form.
func scalarString(r gjson.Result) string {
	switch r.Type {
	case gjson.String:
		return r.Str
	case gjson.Number:
		return r.Raw
	default:
		return ""
	}
}
