package stagehand

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/webp"
)

// Texture wrap and filter constants keep the numeric values scene documents
// already use.
const (
	RepeatWrapping         = 1000
	ClampToEdgeWrapping    = 1001
	MirroredRepeatWrapping = 1002

	NearestFilter            = 1003
	LinearFilter             = 1006
	LinearMipmapLinearFilter = 1008

	SRGBColorSpace       = "srgb"
	LinearSRGBColorSpace = "srgb-linear"
)

const (
	defaultTextureColorSpace = SRGBColorSpace
	defaultTextureWrap       = RepeatWrapping
	defaultTextureMinFilter  = LinearMipmapLinearFilter
	defaultTextureMagFilter  = LinearFilter
)

// Texture references an image used by a material. Width, Height and MIME
// are filled in once the background sniff completes; Ready reports that.
type Texture struct {
	Source     string
	ColorSpace string
	WrapS      int
	WrapT      int
	MinFilter  int
	MagFilter  int

	MIME   string
	Width  int
	Height int
	Err    error

	ready bool
}

// Ready reports whether the image header has been read.
func (t *Texture) Ready() bool {
	return t.ready
}

// textureSpec is the object form of a texture parameter.
type textureSpec struct {
	Src        string `mapstructure:"src"`
	ColorSpace string `mapstructure:"colorSpace"`
	WrapS      int    `mapstructure:"wrapS"`
	WrapT      int    `mapstructure:"wrapT"`
	MinFilter  int    `mapstructure:"minFilter"`
	MagFilter  int    `mapstructure:"magFilter"`
}

// textureInfo is the decoded header shared by all textures of one source.
type textureInfo struct {
	mime          string
	width, height int
	err           error
}

// TextureLoader hands out Texture handles immediately and sniffs their
// images in the background. async runs work off the orchestration goroutine
// and applies the returned closure back on it.
type TextureLoader struct {
	fetcher Fetcher
	async   func(work func() func())
	ctx     context.Context

	// Touched only on the orchestration goroutine.
	info    map[string]*textureInfo
	waiting map[string][]*Texture
}

func newTextureLoader(ctx context.Context, f Fetcher, async func(func() func())) *TextureLoader {
	return &TextureLoader{
		fetcher: f,
		async:   async,
		ctx:     ctx,
		info:    make(map[string]*textureInfo),
		waiting: make(map[string][]*Texture),
	}
}

// Load returns a new Texture for a string source or a textureSpec-shaped
// map. It returns nil when raw carries no source.
func (l *TextureLoader) Load(raw any) *Texture {
	var spec textureSpec
	switch v := raw.(type) {
	case string:
		spec.Src = v
	default:
		if err := decodeInto(raw, &spec); err != nil {
			return nil
		}
	}
	if spec.Src == "" {
		return nil
	}
	t := &Texture{
		Source:     spec.Src,
		ColorSpace: orDefault(spec.ColorSpace, defaultTextureColorSpace),
		WrapS:      orDefault(spec.WrapS, defaultTextureWrap),
		WrapT:      orDefault(spec.WrapT, defaultTextureWrap),
		MinFilter:  orDefault(spec.MinFilter, defaultTextureMinFilter),
		MagFilter:  orDefault(spec.MagFilter, defaultTextureMagFilter),
	}
	if l == nil || l.fetcher == nil || l.async == nil {
		return t
	}
	l.request(t)
	return t
}

func (l *TextureLoader) request(t *Texture) {
	if info, ok := l.info[t.Source]; ok {
		t.apply(info)
		return
	}
	pending := l.waiting[t.Source]
	l.waiting[t.Source] = append(pending, t)
	if len(pending) > 0 {
		return
	}

	src := t.Source
	l.async(func() func() {
		info := sniffTexture(l.ctx, l.fetcher, src)
		return func() {
			l.info[src] = info
			waiting := l.waiting[src]
			delete(l.waiting, src)
			for _, w := range waiting {
				w.apply(info)
			}
		}
	})
}

func (t *Texture) apply(info *textureInfo) {
	t.MIME = info.mime
	t.Width = info.width
	t.Height = info.height
	t.Err = info.err
	t.ready = true
}

func sniffTexture(ctx context.Context, f Fetcher, src string) *textureInfo {
	data, err := f.Fetch(ctx, src)
	if err != nil {
		return &textureInfo{err: err}
	}
	if !filetype.IsImage(data) {
		return &textureInfo{err: configErrorf("texture %q is not an image", src)}
	}
	kind, _ := filetype.Match(data)
	info := &textureInfo{mime: kind.MIME.Value}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		info.err = err
		return info
	}
	info.width, info.height = cfg.Width, cfg.Height
	return info
}
