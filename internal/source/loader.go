package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ivlev/scenereel/internal/model"
)

var ErrUnsupportedAsset = errors.New("unsupported asset")

const (
	DefaultDPI         = 150
	defaultVideoFrames = 64
	maxAssetBytes      = 256 << 20
)

// LoaderConfig - параметры загрузчика. BaseDir разрешает относительные
// пути из раскадровки.
type LoaderConfig struct {
	BaseDir        string
	DPI            int
	HTTPTimeout    time.Duration
	MaxVideoFrames int
}

// Loader отдаёт декодированные кадры ассетов. Картинки и страницы PDF
// кешируются навсегда, кадры видео - в ограниченном кеше. Одновременные
// запросы одного ассета схлопываются в одну загрузку.
type Loader struct {
	cfg    LoaderConfig
	client *http.Client
	logger *zap.Logger
	group  singleflight.Group

	mu         sync.RWMutex
	stills     map[string]image.Image
	frames     map[string]image.Image
	frameOrder []string
}

func NewLoader(cfg LoaderConfig, logger *zap.Logger) *Loader {
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.MaxVideoFrames <= 0 {
		cfg.MaxVideoFrames = defaultVideoFrames
	}
	return &Loader{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logger.Named("SourceLoader"),
		stills: make(map[string]image.Image),
		frames: make(map[string]image.Image),
	}
}

// Load возвращает изображение ассета. t - время внутри сцены в секундах,
// важно только для видео.
func (l *Loader) Load(ctx context.Context, a model.Asset, t float64) (image.Image, error) {
	switch a.Kind {
	case model.AssetImage, "":
		return l.still(ctx, a.URL, func(data []byte) (image.Image, error) {
			img, _, err := image.Decode(bytes.NewReader(data))
			return img, err
		})
	case model.AssetPDF:
		key := fmt.Sprintf("%s#%d", a.URL, a.Page)
		return l.stillKeyed(ctx, key, a.URL, func(data []byte) (image.Image, error) {
			return renderPDFPage(data, a.Page, l.cfg.DPI)
		})
	case model.AssetVideo:
		return l.videoFrame(ctx, a.URL, t)
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedAsset, a.Kind)
	}
}

func (l *Loader) still(ctx context.Context, ref string, decode func([]byte) (image.Image, error)) (image.Image, error) {
	return l.stillKeyed(ctx, ref, ref, decode)
}

func (l *Loader) stillKeyed(ctx context.Context, key, ref string, decode func([]byte) (image.Image, error)) (image.Image, error) {
	if img, ok := l.cached(l.stills, key); ok {
		return img, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		if img, ok := l.cached(l.stills, key); ok {
			return img, nil
		}
		data, err := l.fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		img, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", ref, err)
		}
		l.mu.Lock()
		l.stills[key] = img
		l.mu.Unlock()
		l.logger.Debug("asset loaded", zap.String("asset", key), zap.Int("width", img.Bounds().Dx()), zap.Int("height", img.Bounds().Dy()))
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

// videoFrame достаёт кадр видео на момент t с точностью до миллисекунды.
func (l *Loader) videoFrame(ctx context.Context, ref string, t float64) (image.Image, error) {
	key := fmt.Sprintf("%s@%d", ref, int64(t*1000))

	if img, ok := l.cached(l.frames, key); ok {
		return img, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		if img, ok := l.cached(l.frames, key); ok {
			return img, nil
		}
		input, err := l.resolve(ref)
		if err != nil {
			return nil, err
		}
		cmd := exec.CommandContext(ctx, "ffmpeg",
			"-hide_banner", "-loglevel", "error",
			"-ss", fmt.Sprintf("%.3f", t),
			"-i", input,
			"-frames:v", "1",
			"-f", "image2pipe",
			"-c:v", "png",
			"-",
		)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		out, err := cmd.Output()
		if err != nil {
			return nil, fmt.Errorf("ffmpeg frame %s@%.3f: %w: %s", ref, t, err, strings.TrimSpace(stderr.String()))
		}
		img, _, err := image.Decode(bytes.NewReader(out))
		if err != nil {
			return nil, fmt.Errorf("decode frame %s@%.3f: %w", ref, t, err)
		}
		l.rememberFrame(key, img)
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

func (l *Loader) cached(m map[string]image.Image, key string) (image.Image, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	img, ok := m[key]
	return img, ok
}

func (l *Loader) rememberFrame(key string, img image.Image) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.frames[key]; ok {
		return
	}
	l.frames[key] = img
	l.frameOrder = append(l.frameOrder, key)
	for len(l.frameOrder) > l.cfg.MaxVideoFrames {
		delete(l.frames, l.frameOrder[0])
		l.frameOrder = l.frameOrder[1:]
	}
}

// resolve превращает ссылку в то, что понимает ffmpeg: URL или путь.
func (l *Loader) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("asset %q: %w", ref, err)
	}
	switch u.Scheme {
	case "http", "https":
		return ref, nil
	case "file":
		return u.Path, nil
	case "":
		return l.localPath(ref), nil
	default:
		return "", fmt.Errorf("%w: scheme %q", ErrUnsupportedAsset, u.Scheme)
	}
}

func (l *Loader) localPath(p string) string {
	if l.cfg.BaseDir == "" || strings.HasPrefix(p, "/") {
		return p
	}
	return l.cfg.BaseDir + "/" + p
}

func (l *Loader) fetch(ctx context.Context, ref string) ([]byte, error) {
	target, err := l.resolve(ref)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		data, err := os.ReadFile(target)
		if err != nil {
			return nil, fmt.Errorf("read asset: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		l.logger.Error("asset download failed",
			zap.String("url", target),
			zap.Int("status_code", resp.StatusCode),
		)
		return nil, fmt.Errorf("fetch asset %s: status %d", target, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", target, err)
	}
	return data, nil
}
