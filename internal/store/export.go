package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// generateFilename creates a timestamped filename with the given prefix and extension.
func generateFilename(prefix, ext string, now time.Time) string {
	return prefix + "-" + now.Format("2006-01-02T15-04-05") + ext
}

// SaveExport writes JSON-serializable data to a timestamped file in dir.
// Returns the path to the saved file.
func SaveExport[T any](dir, prefix string, data T, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}

	path := filepath.Join(dir, generateFilename(prefix, ".json", now))

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal export: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	return path, nil
}

// SaveExportText writes text content (e.g. an HTML report) next to the JSON exports.
func SaveExportText(dir, prefix, content, ext string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export dir: %w", err)
	}

	path := filepath.Join(dir, generateFilename(prefix, ext, now))

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}

	return path, nil
}

// LatestExport returns the path to the most recent export in dir with the given prefix and extension.
func LatestExport(dir, prefix, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("no exports in %s", dir)
		}
		return "", err
	}

	// Timestamped names sort chronologically
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ext) {
			files = append(files, name)
		}
	}

	if len(files) == 0 {
		return "", fmt.Errorf("no exports in %s", dir)
	}

	sort.Strings(files)
	return filepath.Join(dir, files[len(files)-1]), nil
}
