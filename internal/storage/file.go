package storage

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/dealstalk/internal/types"
)

// --- JSON Storage ---

// JSONStorage writes records as one indented JSON array.
type JSONStorage struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewJSONStorage creates a JSON file storage.
func NewJSONStorage(outputPath string, logger *slog.Logger) *JSONStorage {
	return &JSONStorage{
		path:   outputPath,
		logger: logger.With("component", "json_storage"),
	}
}

func (s *JSONStorage) Name() string { return "json" }

// Path returns the output file path.
func (s *JSONStorage) Path() string { return s.path }

func (s *JSONStorage) Store(records []*types.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if records == nil {
		records = []*types.ProductRecord{}
	}
	err := writeFileAtomic(s.path, func(f *os.File) error {
		enc := json.NewEncoder(f)
		enc.SetIndent("", "    ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode JSON: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("JSON written", "path", s.path, "records", len(records))
	return nil
}

func (s *JSONStorage) Close() error { return nil }

// --- JSONL Storage ---

// JSONLStorage writes records as newline-delimited JSON.
type JSONLStorage struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewJSONLStorage creates a JSONL file storage.
func NewJSONLStorage(outputPath string, logger *slog.Logger) *JSONLStorage {
	return &JSONLStorage{
		path:   outputPath,
		logger: logger.With("component", "jsonl_storage"),
	}
}

func (s *JSONLStorage) Name() string { return "jsonl" }

// Path returns the output file path.
func (s *JSONLStorage) Path() string { return s.path }

func (s *JSONLStorage) Store(records []*types.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := writeFileAtomic(s.path, func(f *os.File) error {
		w := bufio.NewWriter(f)
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("encode JSONL: %w", err)
			}
		}
		return w.Flush()
	})
	if err != nil {
		return err
	}

	s.logger.Info("JSONL written", "path", s.path, "records", len(records))
	return nil
}

func (s *JSONLStorage) Close() error { return nil }

// --- CSV Storage ---

// CSVStorage writes records as CSV rows. The header is the union of record
// fields in first-seen order; no index column is written.
type CSVStorage struct {
	path   string
	mu     sync.Mutex
	logger *slog.Logger
}

// NewCSVStorage creates a CSV file storage.
func NewCSVStorage(outputPath string, logger *slog.Logger) *CSVStorage {
	return &CSVStorage{
		path:   outputPath,
		logger: logger.With("component", "csv_storage"),
	}
}

func (s *CSVStorage) Name() string { return "csv" }

// Path returns the output file path.
func (s *CSVStorage) Path() string { return s.path }

func (s *CSVStorage) Store(records []*types.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	headers := unionHeaders(records)
	err := writeFileAtomic(s.path, func(f *os.File) error {
		w := csv.NewWriter(f)
		if len(headers) > 0 {
			if err := w.Write(headers); err != nil {
				return fmt.Errorf("write CSV header: %w", err)
			}
		}
		for _, r := range records {
			flat := r.ToFlatMap()
			row := make([]string, len(headers))
			for i, h := range headers {
				row[i] = flat[h]
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("write CSV row: %w", err)
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return err
	}

	s.logger.Info("CSV written", "path", s.path, "records", len(records))
	return nil
}

func (s *CSVStorage) Close() error { return nil }

func unionHeaders(records []*types.ProductRecord) []string {
	var headers []string
	seen := make(map[string]bool)
	for _, r := range records {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				headers = append(headers, k)
			}
		}
	}
	return headers
}

// OutputPaths lists the files the given backends write to.
func OutputPaths(backends []Storage) []string {
	var paths []string
	for _, b := range backends {
		if p, ok := b.(interface{ Path() string }); ok {
			paths = append(paths, filepath.Clean(p.Path()))
		}
	}
	return paths
}
