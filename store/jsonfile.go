package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/jsonstore"
)

// JSON is a Backend keeping every document in a single jsonstore file. The whole file is rewritten after each
// change, which is fine for the handful of documents a bot keeps but not for large datasets.
type JSON struct {
	mu   sync.Mutex
	ks   *jsonstore.JSONStore
	path string
}

// OpenJSON opens the jsonstore file at path, creating an empty one if it does not exist.
func OpenJSON(path string) (*JSON, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err = os.WriteFile(path, []byte("{}"), 0644); err != nil {
			return nil, fmt.Errorf("create json store: %w", err)
		}
	}

	ks, err := jsonstore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open json store: %w", err)
	}

	return &JSON{ks: ks, path: path}, nil
}

func (j *JSON) Load(_ context.Context, key string) ([]byte, bool, error) {
	var raw json.RawMessage
	if err := j.ks.Get(key, &raw); err != nil {
		var noSuchKeyError jsonstore.NoSuchKeyError
		if errors.As(err, &noSuchKeyError) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return raw, true, nil
}

func (j *JSON) Save(_ context.Context, key string, data []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.ks.Set(key, json.RawMessage(data)); err != nil {
		return err
	}

	return jsonstore.Save(j.ks, j.path)
}

func (j *JSON) Delete(_ context.Context, key string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.ks.Delete(key)

	return jsonstore.Save(j.ks, j.path)
}

func (j *JSON) List(_ context.Context, prefix string) ([]string, error) {
	all := j.ks.GetAll(regexp.MustCompile("^" + regexp.QuoteMeta(prefix)))

	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys, nil
}

func (j *JSON) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return jsonstore.Save(j.ks, j.path)
}
