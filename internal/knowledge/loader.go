package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

type chunkFile struct {
	Content  string `json:"content"`
	Category string `json:"category"`
	Source   string `json:"source"`
}

// LoadFile loads knowledge chunks from a JSON file into the store.
// A missing file is not an error, the store just stays empty.
func LoadFile(ctx context.Context, store *LocalStore, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read knowledge file: %w", err)
	}

	var chunks []chunkFile
	if err := json.Unmarshal(data, &chunks); err != nil {
		return 0, fmt.Errorf("failed to parse knowledge file: %w", err)
	}

	loaded := 0
	for _, ch := range chunks {
		if ch.Content == "" {
			continue
		}
		if err := store.Add(ctx, ch.Content, ch.Category, ch.Source); err != nil {
			return loaded, fmt.Errorf("failed to add knowledge chunk: %w", err)
		}
		loaded++
	}
	return loaded, nil
}
