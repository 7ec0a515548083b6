package stagehand

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Format identifies an asset container.
type Format string

const (
	FormatFBX   Format = "fbx"
	FormatGLTF  Format = "gltf"
	FormatUSDZ  Format = "usdz"
	FormatScene Format = "scene"
)

var formatByExt = map[string]Format{
	"fbx":  FormatFBX,
	"glb":  FormatGLTF,
	"gltf": FormatGLTF,
	"usdz": FormatUSDZ,
	"json": FormatScene,
	"yaml": FormatScene,
	"yml":  FormatScene,
}

// DetectFormat picks the format from an explicit hint (".glb", "gltf", ...)
// or from the extension of src.
func DetectFormat(src, hint string) (Format, error) {
	ext := hint
	if ext == "" {
		p := src
		if u, err := url.Parse(src); err == nil && u.Scheme != "" {
			p = u.Path
		}
		ext = path.Ext(p)
	}
	key := strings.ToLower(strings.TrimPrefix(ext, "."))
	if f, ok := formatByExt[key]; ok {
		return f, nil
	}
	if f := Format(key); f == FormatScene {
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// Asset is what a Loader produces. Root may be nil for animation-only
// assets.
type Asset struct {
	Root     *Node
	Clips    []*Clip
	Metadata map[string]any
}

// Loader turns a reference into an Asset. Implementations are shared across
// loads and must be safe for concurrent use; they never touch a live tree.
type Loader interface {
	Load(ctx context.Context, ref string) (*Asset, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, ref string) (*Asset, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, ref string) (*Asset, error) {
	return f(ctx, ref)
}

// LoaderFactory builds the Loader for one format, given the shared Fetcher.
type LoaderFactory func(f Fetcher) Loader

// Fetcher reads the bytes behind a reference.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// LocalResolver is implemented by fetchers that can map a reference to a
// local file, which lets loaders resolve sibling resources.
type LocalResolver interface {
	LocalPath(ref string) (string, bool)
}

// FileFetcher reads local files relative to Root and http(s) URLs through
// Client. Concurrent fetches of the same reference share one read.
type FileFetcher struct {
	Root   string
	Client *http.Client

	group singleflight.Group
}

// NewFileFetcher creates a fetcher rooted at root.
func NewFileFetcher(root string) *FileFetcher {
	return &FileFetcher{Root: root, Client: http.DefaultClient}
}

// Fetch returns the contents of ref. The returned slice is shared between
// concurrent callers and must not be modified.
func (f *FileFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	v, err, _ := f.group.Do(ref, func() (any, error) {
		if isRemote(ref) {
			return f.fetchRemote(ctx, ref)
		}
		p, _ := f.LocalPath(ref)
		return os.ReadFile(p)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// LocalPath resolves ref against Root. Remote references report false.
func (f *FileFetcher) LocalPath(ref string) (string, bool) {
	if isRemote(ref) {
		return "", false
	}
	ref = strings.TrimPrefix(ref, "file://")
	if filepath.IsAbs(ref) || f.Root == "" {
		return filepath.Clean(ref), true
	}
	return filepath.Join(f.Root, filepath.FromSlash(ref)), true
}

func (f *FileFetcher) fetchRemote(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: %s", ref, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// LoaderCache creates per-format loaders on first use and reuses them.
type LoaderCache struct {
	fetcher   Fetcher
	textures  *TextureLoader
	materials *MaterialLoader

	mu        sync.Mutex
	factories map[Format]LoaderFactory
	loaders   map[Format]Loader
}

func newLoaderCache(f Fetcher, textures *TextureLoader) *LoaderCache {
	return &LoaderCache{
		fetcher:   f,
		textures:  textures,
		materials: &MaterialLoader{textures: textures},
		factories: map[Format]LoaderFactory{
			FormatGLTF:  newGLTFLoader,
			FormatScene: newSceneLoader,
		},
		loaders: make(map[Format]Loader),
	}
}

// Register installs the factory for format, dropping any cached loader.
func (c *LoaderCache) Register(format Format, f LoaderFactory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[format] = f
	delete(c.loaders, format)
}

// Loader returns the shared loader for format. A recognized format without
// a registered factory fails with ErrUnsupportedFormat.
func (c *LoaderCache) Loader(format Format) (Loader, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.loaders[format]; ok {
		return l, nil
	}
	factory, ok := c.factories[format]
	if !ok {
		return nil, fmt.Errorf("%w: no loader registered for %s", ErrUnsupportedFormat, format)
	}
	l := factory(c.fetcher)
	c.loaders[format] = l
	return l, nil
}

// Fetcher returns the shared fetcher.
func (c *LoaderCache) Fetcher() Fetcher {
	return c.fetcher
}

// Textures returns the shared texture loader. Nil-safe.
func (c *LoaderCache) Textures() *TextureLoader {
	if c == nil {
		return nil
	}
	return c.textures
}

// Materials returns the shared material loader. Nil-safe.
func (c *LoaderCache) Materials() *MaterialLoader {
	if c == nil {
		return &MaterialLoader{}
	}
	return c.materials
}
