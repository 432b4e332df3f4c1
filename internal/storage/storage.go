package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/IshaanNene/dealstalk/internal/config"
	"github.com/IshaanNene/dealstalk/internal/types"
)

// Storage is the interface for persistence collaborators.
type Storage interface {
	// Store persists the run's records.
	Store(records []*types.ProductRecord) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New builds one backend per configured format. Nothing is written until
// Store is called.
func New(cfg config.StorageConfig, logger *slog.Logger) ([]Storage, error) {
	var backends []Storage
	for _, format := range cfg.Formats {
		var s Storage
		switch format {
		case "json":
			s = NewJSONStorage(filepath.Join(cfg.OutputDir, cfg.JSONFile), logger)
		case "csv":
			s = NewCSVStorage(filepath.Join(cfg.OutputDir, cfg.CSVFile), logger)
		case "jsonl":
			s = NewJSONLStorage(filepath.Join(cfg.OutputDir, cfg.JSONLFile), logger)
		default:
			return nil, fmt.Errorf("unsupported storage format: %s", format)
		}
		backends = append(backends, s)
	}
	return backends, nil
}

// MultiStorage writes records to multiple backends. Every backend runs
// even when an earlier one fails; the first error is returned.
type MultiStorage struct {
	backends []Storage
	logger   *slog.Logger
}

// NewMultiStorage creates a storage that fans out to multiple backends.
func NewMultiStorage(backends []Storage, logger *slog.Logger) *MultiStorage {
	return &MultiStorage{
		backends: backends,
		logger:   logger.With("component", "multi_storage"),
	}
}

func (s *MultiStorage) Name() string { return "multi" }

func (s *MultiStorage) Store(records []*types.ProductRecord) error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Store(records); err != nil {
			s.logger.Error("backend store failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = &types.StorageError{Backend: backend.Name(), Err: err}
			}
		}
	}
	return firstErr
}

func (s *MultiStorage) Close() error {
	var firstErr error
	for _, backend := range s.backends {
		if err := backend.Close(); err != nil {
			s.logger.Warn("backend close failed", "backend", backend.Name(), "error", err)
			if firstErr == nil {
				firstErr = &types.StorageError{Backend: backend.Name(), Err: err}
			}
		}
	}
	return firstErr
}

// writeFileAtomic writes data to a temp file beside path and renames it.
func writeFileAtomic(path string, write func(f *os.File) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output file: %w", err)
	}
	return nil
}
