package store

import (
	"encoding/json"
	"os"
)

// keys lists every stored key in order
func (s *Store) keys() ([]string, error) {
	var keys []string
	err := s.db.Select(&keys, `SELECT key FROM kv ORDER BY key`)
	return keys, err
}

func loadExport[T any](path string) (T, error) {
	var data T
	raw, err := os.ReadFile(path)
	if err != nil {
		return data, err
	}
	err = json.Unmarshal(raw, &data)
	return data, err
}
