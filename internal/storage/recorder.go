package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Recorder is an in-memory FileStorage for tests.
type Recorder struct {
	mu    sync.RWMutex
	files map[string][]byte
	Err   error // returned by every call when set
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{files: make(map[string][]byte)}
}

// Upload stores the content in memory and returns a fake URL.
func (r *Recorder) Upload(ctx context.Context, filename string, body io.Reader) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	content, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	r.files[filename] = content
	r.mu.Unlock()
	return fmt.Sprintf("https://storage.test/designs/%s", filename), nil
}

// Delete removes a recorded file.
func (r *Recorder) Delete(ctx context.Context, key string) error {
	if r.Err != nil {
		return r.Err
	}
	r.mu.Lock()
	delete(r.files, key)
	r.mu.Unlock()
	return nil
}

// Stored returns the recorded content for filename.
func (r *Recorder) Stored(filename string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.files[filename]
	return b, ok
}
