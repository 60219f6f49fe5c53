package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tech-arch1tect/datacollector-agent/internal/datacollector"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	ErrInvalidRecords    = errors.New("payload must be an object or an array of objects")
	ErrEmptyRecords      = errors.New("payload contains no records")
	ErrUnsupportedFormat = errors.New("unsupported record format")
)

// FormatFromPath picks the decoder from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// DecodeRecords turns a JSON or YAML document into records. A single object is
// treated as a one-record batch. JSON numbers are kept as json.Number so they
// are re-encoded without float rounding.
func DecodeRecords(data []byte, format Format) ([]datacollector.Record, error) {
	var (
		doc any
		err error
	)

	switch format {
	case FormatJSON:
		doc, err = decodeJSON(data)
	case FormatYAML:
		doc, err = decodeYAML(data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	switch v := doc.(type) {
	case map[string]any:
		return []datacollector.Record{v}, nil
	case []any:
		if len(v) == 0 {
			return nil, ErrEmptyRecords
		}
		records := make([]datacollector.Record, 0, len(v))
		for i, item := range v {
			row, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: item %d is %T", ErrInvalidRecords, i, item)
			}
			records = append(records, row)
		}
		return records, nil
	case nil:
		return nil, ErrEmptyRecords
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidRecords, doc)
	}
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyRecords
		}
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid JSON: unexpected data after document")
	}
	return doc, nil
}

func decodeYAML(data []byte) (any, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	return doc, nil
}
