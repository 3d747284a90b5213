// Package video - кодирование кадров в mp4 через внешний ffmpeg.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"math"
	"os/exec"
	"strings"
)

var ErrClosed = errors.New("stream closed")

type StreamConfig struct {
	Width   int
	Height  int
	FPS     int
	Encoder string
	CRF     int
	Output  string
}

// Stream принимает кадры RGBA по одному и передаёт их в stdin ffmpeg
// как rawvideo. Кадры должны идти строго по порядку.
type Stream struct {
	cfg    StreamConfig
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	frames int
	closed bool
}

// Open запускает ffmpeg. Отмена ctx убивает процесс.
func Open(ctx context.Context, cfg StreamConfig) (*Stream, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid stream geometry %dx%d@%d", cfg.Width, cfg.Height, cfg.FPS)
	}
	if cfg.Encoder == "" {
		cfg.Encoder = "libx264"
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", buildStreamArgs(cfg)...)
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	return &Stream{cfg: cfg, cmd: cmd, stdin: stdin, stderr: stderr}, nil
}

func buildStreamArgs(cfg StreamConfig) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-framerate", fmt.Sprintf("%d", cfg.FPS),
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-c:v", cfg.Encoder,
	}
	args = append(args, QualityArgs(cfg.Encoder, cfg.CRF)...)
	args = append(args, "-movflags", "+faststart", cfg.Output)
	return args
}

// QualityArgs переводит CRF в параметры качества конкретного кодера.
func QualityArgs(encoder string, crf int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox не везде понимает -q:v, поэтому задаём битрейт.
		return []string{"-b:v", fmt.Sprintf("%dk", BitrateForCRF(crf))}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", crf)}
	default: // libx264
		return []string{"-crf", fmt.Sprintf("%d", crf), "-preset", "medium"}
	}
}

// BitrateForCRF - грубый эквивалент CRF в кбит/с для 1080p: каждые 6
// единиц CRF вдвое меняют битрейт, CRF 18 = 20 Мбит/с.
func BitrateForCRF(crf int) int {
	kbps := 20000 * math.Pow(2, -float64(crf-18)/6)
	return int(math.Round(kbps/100) * 100)
}

// WriteFrame отправляет очередной кадр.
func (s *Stream) WriteFrame(img image.Image) error {
	if s.closed {
		return ErrClosed
	}
	if b := img.Bounds(); b.Dx() != s.cfg.Width || b.Dy() != s.cfg.Height {
		return fmt.Errorf("frame %d: size %dx%d, stream expects %dx%d", s.frames, b.Dx(), b.Dy(), s.cfg.Width, s.cfg.Height)
	}
	if err := writeRawRGBA(s.stdin, img); err != nil {
		return fmt.Errorf("write raw error: %w: %s", err, s.tail())
	}
	s.frames++
	return nil
}

// Frames - сколько кадров уже записано.
func (s *Stream) Frames() int { return s.frames }

// Close закрывает stdin и ждёт, пока ffmpeg допишет файл.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w: %s", err, s.tail())
	}
	return nil
}

// Abort прерывает кодирование без ожидания корректного файла.
func (s *Stream) Abort() {
	if s.closed {
		return
	}
	s.closed = true
	s.stdin.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.cmd.Wait()
}

func (s *Stream) tail() string {
	out := strings.TrimSpace(s.stderr.String())
	if len(out) > 512 {
		out = out[len(out)-512:]
	}
	return out
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
