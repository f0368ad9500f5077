package documents

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

var supportedExtensions = map[string]bool{
	".txt": true,
	".md":  true,
	".pdf": true,
	".csv": true,
}

// Loader reads candidate documents from files and directories into a Store.
type Loader struct {
	// CSVColumn is the header holding the document text in CSV uploads.
	CSVColumn string
	// CSVIDColumn optionally names the header used as the document label.
	CSVIDColumn string

	logger *zap.Logger
}

func NewLoader(csvColumn, csvIDColumn string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{CSVColumn: csvColumn, CSVIDColumn: csvIDColumn, logger: logger}
}

// LoadPaths loads every supported file under paths. Directories are read one
// level deep in lexical order. Only one CSV file is accepted per run.
// The first empty document aborts loading with a ValidationError.
func (l *Loader) LoadPaths(paths ...string) (*Store, error) {
	files, err := l.collect(paths)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, &ValidationError{Subject: "documents", Reason: "no supported files found"}
	}

	csvCount := 0
	for _, f := range files {
		if strings.EqualFold(filepath.Ext(f), ".csv") {
			csvCount++
		}
	}
	if csvCount > 1 {
		return nil, &ValidationError{Subject: "documents", Reason: "only one csv file can be uploaded per run"}
	}

	store := NewStore()
	for _, path := range files {
		if err := l.loadFile(store, path); err != nil {
			return nil, err
		}
	}

	l.logger.Info("documents loaded", zap.Int("files", len(files)), zap.Int("documents", store.Len()))

	return store, nil
}

func (l *Loader) collect(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		if !info.IsDir() {
			if !supportedExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil, &ValidationError{Subject: path, Reason: "unsupported file type"}
			}
			files = append(files, path)
			continue
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", path, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if !supportedExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
				l.logger.Debug("skipping unsupported file", zap.String("file", entry.Name()))
				continue
			}
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}

	return files, nil
}

func (l *Loader) loadFile(store *Store, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".csv":
		rows, err := readCSV(name, content, l.CSVColumn, l.CSVIDColumn)
		if err != nil {
			return err
		}
		for _, row := range rows {
			if _, err := store.Add(row.label, row.text); err != nil {
				return err
			}
		}
		return nil
	case ".pdf":
		text, err := extractPDF(content)
		if err != nil {
			return fmt.Errorf("extract %s: %w", name, err)
		}
		_, err = store.Add(name, text)
		return err
	default:
		_, err := store.Add(name, extractPlain(content))
		return err
	}
}

// ReadText returns the text of a single txt, md or pdf file, e.g. a job description.
func ReadText(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return extractPDF(content)
	}

	return extractPlain(content), nil
}
