package artifact_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"inkframe/internal/artifact"
)

func TestStatMissingImage(t *testing.T) {
	store := artifact.New(t.TempDir(), "current_image.png")
	if _, err := store.Stat(); !errors.Is(err, artifact.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.Read(); !errors.Is(err, artifact.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from Read, got %v", err)
	}
}

func TestPublishReplacesAtomically(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")
	store := artifact.New(dir, "current_image.png")

	info, err := store.Publish(context.Background(), bytes.NewReader([]byte("first")))
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if info.Size != 5 || info.Path != store.Path() {
		t.Fatalf("unexpected info %+v", info)
	}

	if _, err := store.Publish(context.Background(), bytes.NewReader([]byte("second"))); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	data, err := store.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "second" {
		t.Fatalf("unexpected content %q", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".png" && filepath.Ext(e.Name()) != ".lock" {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestPublishConcurrentWritersProduceWholeFile(t *testing.T) {
	store := artifact.New(t.TempDir(), "current_image.png")
	payloads := [][]byte{
		bytes.Repeat([]byte("a"), 4096),
		bytes.Repeat([]byte("b"), 8192),
		bytes.Repeat([]byte("c"), 1024),
	}

	var wg sync.WaitGroup
	for _, p := range payloads {
		wg.Add(1)
		go func(p []byte) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := store.Publish(ctx, bytes.NewReader(p)); err != nil {
				t.Errorf("Publish: %v", err)
			}
		}(p)
	}
	wg.Wait()

	data, err := store.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	matched := false
	for _, p := range payloads {
		if bytes.Equal(data, p) {
			matched = true
		}
	}
	if !matched {
		t.Fatalf("stored image is not one of the published payloads (len %d)", len(data))
	}
}
