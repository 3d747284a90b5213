package engine

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/compositor"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/payload"
	"github.com/ivlev/scenereel/internal/renderer"
	"github.com/ivlev/scenereel/internal/video"
)

type solidLoader struct{ err error }

func (s solidLoader) Load(_ context.Context, a model.Asset, _ float64) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	img := image.NewRGBA(image.Rect(0, 0, 32, 18))
	c := color.RGBA{R: uint8(len(a.URL) * 20), G: 90, B: 160, A: 255}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img, nil
}

type memorySink struct {
	mu       sync.Mutex
	cfg      video.StreamConfig
	hashes   [][32]byte
	closed   bool
	aborted  bool
	failAt   int
	writeErr error
}

func (s *memorySink) WriteFrame(img image.Image) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil && len(s.hashes) == s.failAt {
		return s.writeErr
	}
	s.hashes = append(s.hashes, sha256.Sum256(img.(*image.RGBA).Pix))
	return nil
}

func (s *memorySink) Close() error {
	s.closed = true
	return os.WriteFile(s.cfg.Output, []byte("mp4"), 0o644)
}

func (s *memorySink) Abort() { s.aborted = true }

func testScenes() []model.Scene {
	return []model.Scene{
		{ID: "one", OrderIndex: 0, DurationMs: 400, Transition: "fade", Headline: "Hello there", Asset: model.Asset{URL: "a.png", Kind: model.AssetImage},
			Motion: model.MotionConfig{AnimationStyle: "pop", StaggerFrames: 2, Effects: []model.Effect{model.EffectGrain, model.EffectVignette}}},
		{ID: "two", OrderIndex: 1, DurationMs: 300, Transition: "slide-left", Headline: "Bye", Asset: model.Asset{URL: "bb.png", Kind: model.AssetImage},
			Motion: model.MotionConfig{AnimationStyle: "typewriter"}},
	}
}

func newTestRenderer(t *testing.T, loader renderer.AssetLoader, sink *memorySink, workers int) *Renderer {
	t.Helper()
	r := New(Config{Workers: workers, Encoder: "libx264", WorkDir: t.TempDir()}, loader, zap.NewNop())
	r.openSink = func(_ context.Context, cfg video.StreamConfig) (FrameSink, error) {
		sink.cfg = cfg
		return sink, nil
	}
	return r
}

func newCompositor(t *testing.T) *compositor.Compositor {
	t.Helper()
	c, err := compositor.New(testScenes(), model.Brand{Seed: 3}, compositor.Options{FPS: 30, Width: 64, Height: 36, TransitionWindow: 4, Features: compositor.AllFeatures()})
	require.NoError(t, err)
	return c
}

func TestRenderWritesFramesInOrder(t *testing.T) {
	comp := newCompositor(t)

	// Эталон: последовательный рендер тех же кадров.
	ref := New(Config{}, solidLoader{}, zap.NewNop())
	var want [][32]byte
	for n := 0; n < comp.TotalFrames(); n++ {
		img, err := ref.RenderFrame(context.Background(), comp, n, model.QualityStandard)
		require.NoError(t, err)
		want = append(want, sha256.Sum256(img.Pix))
	}

	for _, workers := range []int{1, 3, 8} {
		sink := &memorySink{}
		var progress []int
		r := newTestRenderer(t, solidLoader{}, sink, workers)
		r.cfg.OnProgress = func(done, total int) { progress = append(progress, done) }

		out := filepath.Join(t.TempDir(), "out.mp4")
		stats, err := r.Render(context.Background(), comp, Job{Output: out, Quality: model.QualityStandard})
		require.NoError(t, err)

		assert.Equal(t, comp.TotalFrames(), stats.Frames)
		assert.LessOrEqual(t, stats.Workers, workers)
		assert.Equal(t, want, sink.hashes, "workers=%d", workers)
		assert.True(t, sink.closed)
		assert.Len(t, progress, comp.TotalFrames())
		assert.Equal(t, 23, sink.cfg.CRF)
		assert.Equal(t, 64, sink.cfg.Width)
		assert.FileExists(t, out)
	}
}

func TestRenderFailsOnAssetError(t *testing.T) {
	sink := &memorySink{}
	r := newTestRenderer(t, solidLoader{err: errors.New("asset unavailable")}, sink, 4)
	out := filepath.Join(t.TempDir(), "out.mp4")

	_, err := r.Render(context.Background(), newCompositor(t), Job{Output: out})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "asset unavailable")
	assert.True(t, sink.aborted)
	assert.False(t, sink.closed)
	assert.NoFileExists(t, out)
}

func TestRenderStopsOnSinkError(t *testing.T) {
	sink := &memorySink{failAt: 5, writeErr: errors.New("pipe closed")}
	r := newTestRenderer(t, solidLoader{}, sink, 2)

	_, err := r.Render(context.Background(), newCompositor(t), Job{Output: filepath.Join(t.TempDir(), "out.mp4")})
	assert.ErrorContains(t, err, "pipe closed")
	assert.Len(t, sink.hashes, 5)
	assert.True(t, sink.aborted)
}

func TestRenderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &memorySink{}
	r := newTestRenderer(t, solidLoader{}, sink, 2)

	_, err := r.Render(ctx, newCompositor(t), Job{Output: filepath.Join(t.TempDir(), "out.mp4")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRenderFormatUsesOutputKey(t *testing.T) {
	sink := &memorySink{}
	r := newTestRenderer(t, solidLoader{}, sink, 2)

	project := model.Project{ID: uuid.New(), Brand: model.Brand{Seed: 1}}
	props, err := payload.Build(project, testScenes(), uuid.New(), model.FormatSquare, model.QualityHigh, payload.BuildOptions{FPS: 30, TransitionWindow: 4, Features: compositor.AllFeatures()})
	require.NoError(t, err)
	props.Width, props.Height = 36, 36

	path, err := r.RenderFormat(context.Background(), props)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.cfg.WorkDir, payload.OutputKey(project.ID, model.FormatSquare)), path)
	assert.Equal(t, 18, sink.cfg.CRF)
	assert.Len(t, sink.hashes, props.DurationInFrames)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, []byte("mp4")))
}
