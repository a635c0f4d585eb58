package results

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Load reads one persisted record. Files already carrying an anomaly
// annotation load fine: unknown keys are ignored.
func Load(path string) (Record, error) {
	var rec Record

	data, err := os.ReadFile(path)
	if err != nil {
		return rec, fmt.Errorf("failed to read record: %w", err)
	}

	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to parse record %s: %w", path, err)
	}

	return rec, nil
}

// Walk visits every result file under root in lexical order and calls fn for
// each. fn errors stop the walk.
func Walk(root string, fn func(path string, rec Record) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".json") {
			return nil
		}

		rec, err := Load(path)
		if err != nil {
			return err
		}
		return fn(path, rec)
	})
}
