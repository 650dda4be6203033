package storage

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/NewsGoat/internal/types"
)

// OutputFileName returns the run file name for a window, e.g.
// news_2025-06-07_to_2025-06-10.json.
func OutputFileName(window types.TimeWindow, ext string) string {
	return fmt.Sprintf("news_%s_to_%s.%s", window.Start, window.End, ext)
}

// --- JSON Storage ---

// JSONStorage buffers items and writes them as one JSON array on Close.
type JSONStorage struct {
	path   string
	items  []*types.NewsItem
	mu     sync.Mutex
	logger *slog.Logger
}

// NewJSONStorage creates a new JSON file storage.
func NewJSONStorage(outputPath string, logger *slog.Logger) (*JSONStorage, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "json", Err: fmt.Errorf("create output dir: %w", err)}
	}

	return &JSONStorage{
		path:   outputPath,
		items:  make([]*types.NewsItem, 0),
		logger: logger.With("component", "json_storage"),
	}, nil
}

func (s *JSONStorage) Name() string { return "json" }

// Path returns the file written on Close.
func (s *JSONStorage) Path() string { return s.path }

func (s *JSONStorage) Store(items []*types.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, items...)
	s.logger.Debug("items buffered", "count", len(items), "total", len(s.items))
	return nil
}

func (s *JSONStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := WriteJSON(s.path, s.items); err != nil {
		return &types.StorageError{Backend: "json", Err: err}
	}
	s.logger.Info("JSON written", "path", s.path, "items", len(s.items))
	return nil
}

// WriteJSON writes items to path as an indented JSON array, keeping
// non-ASCII text unescaped. The file is replaced atomically.
func WriteJSON(path string, items []*types.NewsItem) error {
	if items == nil {
		items = []*types.NewsItem{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write output file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace output file: %w", err)
	}
	return nil
}

// LoadJSON reads a file previously written by JSONStorage.
func LoadJSON(path string) ([]*types.NewsItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.StorageError{Backend: "json", Err: err}
	}
	var items []*types.NewsItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, &types.StorageError{Backend: "json", Err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return items, nil
}

// --- JSONL Storage ---

// JSONLStorage writes items as newline-delimited JSON (one object per line).
type JSONLStorage struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStorage creates a new JSONL file storage (streaming writes).
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("create output dir: %w", err)}
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("create output file: %w", err)}
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	return &JSONLStorage{
		path:   outputPath,
		file:   f,
		enc:    enc,
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

func (s *JSONLStorage) Store(items []*types.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if err := s.enc.Encode(item); err != nil {
			return &types.StorageError{Backend: "jsonl", Err: fmt.Errorf("encode JSONL: %w", err)}
		}
		s.count++
	}
	return nil
}

func (s *JSONLStorage) Close() error {
	s.logger.Info("JSONL written", "path", s.path, "items", s.count)
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// --- CSV Storage ---

var csvHeader = []string{"data", "tytuł", "link", "źródło", "gemini_tytul"}

// CSVStorage writes a one-row-per-item summary without article bodies.
type CSVStorage struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSVStorage creates a new CSV file storage.
func NewCSVStorage(outputPath string, logger *slog.Logger) (*CSVStorage, error) {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "csv", Err: fmt.Errorf("create output dir: %w", err)}
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, &types.StorageError{Backend: "csv", Err: fmt.Errorf("create output file: %w", err)}
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		f.Close()
		return nil, &types.StorageError{Backend: "csv", Err: err}
	}
	return &CSVStorage{
		path:   outputPath,
		file:   f,
		writer: w,
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

func (s *CSVStorage) Store(items []*types.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		date := ""
		if item.Published != nil {
			date = item.Published.String()
		}
		row := []string{date, item.Title, item.Link, item.Source, item.EnrichedTitle}
		if err := s.writer.Write(row); err != nil {
			return &types.StorageError{Backend: "csv", Err: err}
		}
		s.count++
	}
	return nil
}

func (s *CSVStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return &types.StorageError{Backend: "csv", Err: err}
	}
	s.logger.Info("CSV written", "path", s.path, "items", s.count)
	return s.file.Close()
}

// NewFileStorage creates the file backend named by storageType, writing
// the run file for window under outputDir.
func NewFileStorage(storageType, outputDir string, window types.TimeWindow, logger *slog.Logger) (Storage, error) {
	switch storageType {
	case "json":
		return NewJSONStorage(filepath.Join(outputDir, OutputFileName(window, "json")), logger)
	case "jsonl":
		return NewJSONLStorage(filepath.Join(outputDir, OutputFileName(window, "jsonl")), logger)
	case "csv":
		return NewCSVStorage(filepath.Join(outputDir, OutputFileName(window, "csv")), logger)
	case "none", "":
		return Discard{}, nil
	default:
		return nil, &types.StorageError{Backend: storageType, Err: fmt.Errorf("unsupported storage type")}
	}
}
