// Package engine - локальный офлайн-рендерер: кадры считаются параллельно
// в любом порядке, а в кодер уходят строго по порядку.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scenereel/internal/compositor"
	"github.com/ivlev/scenereel/internal/metrics"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/payload"
	"github.com/ivlev/scenereel/internal/renderer"
	"github.com/ivlev/scenereel/internal/system"
	"github.com/ivlev/scenereel/internal/video"
)

// FrameSink принимает кадры по порядку. *video.Stream - основная реализация.
type FrameSink interface {
	WriteFrame(img image.Image) error
	Close() error
	Abort()
}

type Config struct {
	// Workers ограничивает число воркеров сверху; 0 - по бюджету машины.
	Workers int
	// Encoder - кодер H.264; пустая строка - автоопределение.
	Encoder string
	// WorkDir - куда складываются готовые mp4.
	WorkDir string
	Audio   video.AudioMix
	Debug   bool
	// OnProgress вызывается после записи каждого кадра.
	OnProgress func(done, total int)
}

// Job - один прогон рендера в файл.
type Job struct {
	Output  string
	Quality model.Quality
	CRF     int
}

type Stats struct {
	Frames   int
	Workers  int
	Encoder  string
	Rendered time.Duration
	Total    time.Duration
}

func (s Stats) FPS() float64 {
	if s.Total <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Total.Seconds()
}

type Renderer struct {
	cfg      Config
	assets   renderer.AssetLoader
	pool     *system.FramePool
	logger   *zap.Logger
	openSink func(ctx context.Context, cfg video.StreamConfig) (FrameSink, error)

	encoderOnce sync.Once
	encoder     string
}

func New(cfg Config, assets renderer.AssetLoader, logger *zap.Logger) *Renderer {
	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Join(os.TempDir(), "scenereel")
	}
	return &Renderer{
		cfg:      cfg,
		assets:   assets,
		pool:     system.NewFramePool(),
		logger:   logger.Named("LocalRenderer"),
		openSink: openStream,
	}
}

func openStream(ctx context.Context, cfg video.StreamConfig) (FrameSink, error) {
	s, err := video.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *Renderer) encoderName(ctx context.Context) string {
	r.encoderOnce.Do(func() {
		r.encoder = r.cfg.Encoder
		if r.encoder == "" {
			r.encoder = system.DetectH264Encoder(ctx)
		}
	})
	return r.encoder
}

// RenderFormat рендерит один формат задачи в WorkDir/<outputKey> и
// возвращает путь к файлу.
func (r *Renderer) RenderFormat(ctx context.Context, props payload.InputProps) (string, error) {
	comp, err := compositor.New(props.Scenes, props.Brand, props.CompositorOptions())
	if err != nil {
		return "", err
	}
	if props.DurationInFrames > 0 && props.DurationInFrames != comp.TotalFrames() {
		r.logger.Warn("Payload duration differs from timeline",
			zap.String("render_id", props.RenderID.String()),
			zap.Int("payload_frames", props.DurationInFrames),
			zap.Int("timeline_frames", comp.TotalFrames()),
		)
	}
	if err := os.MkdirAll(r.cfg.WorkDir, 0o755); err != nil {
		return "", err
	}

	key := props.OutputKey
	if key == "" {
		key = payload.OutputKey(props.ProjectID, props.Format)
	}
	out := filepath.Join(r.cfg.WorkDir, filepath.Base(key))
	crf := props.CRF
	if crf == 0 {
		crf = props.Quality.CRF()
	}

	stats, err := r.Render(ctx, comp, Job{Output: out, Quality: props.Quality, CRF: crf})
	if err != nil {
		return "", err
	}
	r.logger.Info("Format rendered",
		zap.String("render_id", props.RenderID.String()),
		zap.String("format", string(props.Format)),
		zap.String("path", out),
		zap.Int("frames", stats.Frames),
		zap.Float64("fps", stats.FPS()),
	)
	return out, nil
}

type rendered struct {
	n   int
	img *image.RGBA
}

// Render считает все кадры comp и пишет их в job.Output.
func (r *Renderer) Render(ctx context.Context, comp *compositor.Compositor, job Job) (Stats, error) {
	start := time.Now()
	w, h := comp.Size()
	total := comp.TotalFrames()
	workers := min(system.WorkerBudget(w, h, r.cfg.Workers), total)
	stats := Stats{Frames: total, Workers: workers, Encoder: r.encoderName(ctx)}

	if job.CRF == 0 {
		job.CRF = job.Quality.CRF()
	}
	target := job.Output
	if !r.cfg.Audio.Empty() {
		target = job.Output + ".video.mp4"
		defer os.Remove(target)
	}

	sink, err := r.openSink(ctx, video.StreamConfig{
		Width:   w,
		Height:  h,
		FPS:     comp.FPS(),
		Encoder: stats.Encoder,
		CRF:     job.CRF,
		Output:  target,
	})
	if err != nil {
		return stats, err
	}

	r.logger.Info("Local render started",
		zap.String("output", job.Output),
		zap.Int("frames", total),
		zap.Int("workers", workers),
		zap.String("encoder", stats.Encoder),
	)

	if err := r.pipeline(ctx, comp, job.Quality, workers, sink); err != nil {
		sink.Abort()
		os.Remove(target)
		return stats, err
	}
	if err := sink.Close(); err != nil {
		os.Remove(target)
		return stats, err
	}
	stats.Rendered = time.Since(start)

	if !r.cfg.Audio.Empty() {
		duration := float64(total) / float64(comp.FPS())
		if err := video.MuxAudio(ctx, target, r.cfg.Audio, duration, job.Output); err != nil {
			return stats, err
		}
	}
	stats.Total = time.Since(start)
	return stats, nil
}

// pipeline: воркеры берут номера кадров, буфер переупорядочивания отдаёт
// кадры в sink по порядку. Токены ограничивают число кадров в полёте, так
// что памяти нужно не больше 2*workers буферов.
func (r *Renderer) pipeline(ctx context.Context, comp *compositor.Compositor, q model.Quality, workers int, sink FrameSink) error {
	total := comp.TotalFrames()
	w, h := comp.Size()
	rect := image.Rect(0, 0, w, h)
	rast := renderer.New(r.assets, r.pool, renderer.Options{Quality: q, Debug: r.cfg.Debug})

	tokens := make(chan struct{}, workers*2)
	jobs := make(chan int)
	results := make(chan rendered, workers*2)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for n := 0; n < total; n++ {
			select {
			case tokens <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case jobs <- n:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for n := range jobs {
				began := time.Now()
				buf := r.pool.Get(rect)
				if err := rast.Render(gctx, comp.Compose(n), buf); err != nil {
					r.pool.Put(buf)
					return err
				}
				metrics.FrameDuration.Observe(time.Since(began).Seconds())
				select {
				case results <- rendered{n: n, img: buf}:
				case <-gctx.Done():
					r.pool.Put(buf)
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	g.Go(func() error {
		pending := make(map[int]*image.RGBA, workers*2)
		next := 0
		for res := range results {
			pending[res.n] = res.img
			for {
				img, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				err := sink.WriteFrame(img)
				r.pool.Put(img)
				<-tokens
				if err != nil {
					return err
				}
				next++
				if r.cfg.OnProgress != nil {
					r.cfg.OnProgress(next, total)
				}
			}
		}
		if next != total {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fmt.Errorf("encoded %d of %d frames", next, total)
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// RenderFrame рисует один кадр, например для превью.
func (r *Renderer) RenderFrame(ctx context.Context, comp *compositor.Compositor, n int, q model.Quality) (*image.RGBA, error) {
	w, h := comp.Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rast := renderer.New(r.assets, r.pool, renderer.Options{Quality: q, Debug: r.cfg.Debug})
	if err := rast.Render(ctx, comp.Compose(n), img); err != nil {
		return nil, err
	}
	return img, nil
}
