package stagehand

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// mapFetcher serves references from memory and counts reads.
type mapFetcher struct {
	mu    sync.Mutex
	files map[string][]byte
	reads map[string]int
}

func newMapFetcher(files map[string][]byte) *mapFetcher {
	return &mapFetcher{files: files, reads: make(map[string]int)}
}

func (f *mapFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[ref]++
	data, ok := f.files[ref]
	if !ok {
		return nil, fmt.Errorf("fetch %s: %w", ref, fs.ErrNotExist)
	}
	return data, nil
}

func (f *mapFetcher) readCount(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[ref]
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		src, hint string
		want      Format
	}{
		{"hero.fbx", "", FormatFBX},
		{"HERO.GLB", "", FormatGLTF},
		{"models/hero.gltf", "", FormatGLTF},
		{"room.usdz", "", FormatUSDZ},
		{"room.yaml", "", FormatScene},
		{"https://cdn.example.com/a/hero.glb?v=2", "", FormatGLTF},
		{"blob:1234", ".glb", FormatGLTF},
		{"blob:1234", "fbx", FormatFBX},
		{"anything", "scene", FormatScene},
	}
	for _, tt := range tests {
		got, err := DetectFormat(tt.src, tt.hint)
		if err != nil || got != tt.want {
			t.Errorf("DetectFormat(%q, %q) = %q, %v; want %q", tt.src, tt.hint, got, err, tt.want)
		}
	}
	for _, src := range []string{"hero.obj", "noext", ""} {
		if _, err := DetectFormat(src, ""); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("DetectFormat(%q) err = %v, want ErrUnsupportedFormat", src, err)
		}
	}
}

func TestFileFetcherLocal(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "models"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "models", "a.yaml"), []byte("name: A"), 0o644); err != nil {
		t.Fatal(err)
	}
	f := NewFileFetcher(dir)

	data, err := f.Fetch(context.Background(), "models/a.yaml")
	if err != nil || string(data) != "name: A" {
		t.Fatalf("Fetch = %q, %v", data, err)
	}
	if _, err := f.Fetch(context.Background(), "models/missing.yaml"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want fs.ErrNotExist", err)
	}
	if p, ok := f.LocalPath("file://models/a.yaml"); !ok || p != filepath.Join(dir, "models", "a.yaml") {
		t.Errorf("LocalPath = %q, %v", p, ok)
	}
	if _, ok := f.LocalPath("https://example.com/a.glb"); ok {
		t.Error("remote references have no local path")
	}
}

func TestFileFetcherRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/a.yaml" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "name: remote")
	}))
	defer srv.Close()
	f := NewFileFetcher("")
	f.Client = srv.Client()

	data, err := f.Fetch(context.Background(), srv.URL+"/a.yaml")
	if err != nil || string(data) != "name: remote" {
		t.Fatalf("Fetch = %q, %v", data, err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/missing"); err == nil {
		t.Error("non-200 responses should fail")
	}
}

func TestLoaderCacheReusesLoaders(t *testing.T) {
	w := newTestWorld(t)
	made := 0
	w.RegisterLoader(FormatFBX, func(Fetcher) Loader {
		made++
		return LoaderFunc(func(context.Context, string) (*Asset, error) { return &Asset{}, nil })
	})

	for range 3 {
		if _, err := w.Loaders().Loader(FormatFBX); err != nil {
			t.Fatal(err)
		}
	}
	if made != 1 {
		t.Errorf("factory calls = %d, want 1", made)
	}
	if _, err := w.Loaders().Loader(FormatGLTF); err != nil {
		t.Errorf("gltf should be registered by default: %v", err)
	}
	if _, err := w.Loaders().Loader(FormatUSDZ); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("usdz err = %v, want ErrUnsupportedFormat", err)
	}
}
