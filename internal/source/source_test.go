package source

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/model"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoaderLocalImageRelativeToBaseDir(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "slide.png"), 8, 4, color.RGBA{R: 255, A: 255})

	l := NewLoader(LoaderConfig{BaseDir: dir}, zap.NewNop())
	img, err := l.Load(context.Background(), model.Asset{URL: "slide.png", Kind: model.AssetImage}, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())

	r, _, _, _ := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}

func TestLoaderCachesRemoteImages(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "remote.png")
	writePNG(t, path, 2, 2, color.White)
	body, err := os.ReadFile(path)
	require.NoError(t, err)

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	l := NewLoader(LoaderConfig{}, zap.NewNop())
	asset := model.Asset{URL: srv.URL + "/remote.png", Kind: model.AssetImage}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Load(context.Background(), asset, 0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, err = l.Load(context.Background(), asset, 3.5)
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestLoaderErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	l := NewLoader(LoaderConfig{}, zap.NewNop())
	ctx := context.Background()

	_, err := l.Load(ctx, model.Asset{URL: srv.URL + "/missing.png", Kind: model.AssetImage}, 0)
	assert.ErrorContains(t, err, "status 404")

	_, err = l.Load(ctx, model.Asset{URL: "x.bin", Kind: "hologram"}, 0)
	assert.True(t, errors.Is(err, ErrUnsupportedAsset))

	_, err = l.Load(ctx, model.Asset{URL: "ftp://host/a.png", Kind: model.AssetImage}, 0)
	assert.True(t, errors.Is(err, ErrUnsupportedAsset))

	_, err = l.Load(ctx, model.Asset{URL: filepath.Join(t.TempDir(), "none.png"), Kind: model.AssetImage}, 0)
	assert.Error(t, err)
}

func TestFrameCacheIsBounded(t *testing.T) {
	l := NewLoader(LoaderConfig{MaxVideoFrames: 2}, zap.NewNop())
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	l.rememberFrame("a", img)
	l.rememberFrame("b", img)
	l.rememberFrame("c", img)

	assert.Len(t, l.frames, 2)
	assert.NotContains(t, l.frames, "a")
	assert.Equal(t, []string{"b", "c"}, l.frameOrder)
}

func TestImageSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "02.png"), 4, 3, color.Black)
	writePNG(t, filepath.Join(dir, "01.png"), 6, 2, color.Black)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte("#"), 0o644))

	src, err := Open(dir)
	require.NoError(t, err)
	defer src.Close()

	require.Equal(t, 2, src.PageCount())
	w, h, err := src.GetPageDimensions(0)
	require.NoError(t, err)
	assert.Equal(t, 6.0, w)
	assert.Equal(t, 2.0, h)

	img, err := src.RenderPage(1, DefaultDPI)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())

	_, err = src.RenderPage(2, DefaultDPI)
	assert.ErrorIs(t, err, ErrPageRange)
}
