package playback

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"

	"github.com/ivlev/scenereel/internal/compositor"
)

// ProgressSink печатает строку состояния на каждый кадр.
type ProgressSink struct {
	W io.Writer
}

func (s ProgressSink) Show(_ context.Context, f compositor.Frame) error {
	_, err := fmt.Fprintf(s.W, "\r[>] Frame %d/%d | Scene %s | %s   ", f.Number+1, f.TotalFrames, f.SceneID, f.Phase)
	return err
}

// Rasterizer рисует кадр в буфер.
type Rasterizer interface {
	Render(ctx context.Context, f compositor.Frame, dst *image.RGBA) error
}

// WindowSink растеризует кадры и показывает их в окне ffplay.
type WindowSink struct {
	raster Rasterizer
	buf    *image.RGBA
	cmd    *exec.Cmd
	stdin  io.WriteCloser
}

// OpenWindow запускает ffplay, читающий rgba-кадры из stdin.
func OpenWindow(ctx context.Context, raster Rasterizer, width, height, fps int, title string) (*WindowSink, error) {
	cmd := exec.CommandContext(ctx, "ffplay",
		"-loglevel", "error",
		"-window_title", title,
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", width, height),
		"-framerate", strconv.Itoa(fps),
		"-i", "-",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffplay: %w", err)
	}
	return &WindowSink{
		raster: raster,
		buf:    image.NewRGBA(image.Rect(0, 0, width, height)),
		cmd:    cmd,
		stdin:  stdin,
	}, nil
}

func (s *WindowSink) Show(ctx context.Context, f compositor.Frame) error {
	if err := s.raster.Render(ctx, f, s.buf); err != nil {
		return err
	}
	_, err := s.stdin.Write(s.buf.Pix)
	return err
}

// Close закрывает окно.
func (s *WindowSink) Close() error {
	s.stdin.Close()
	if s.cmd.ProcessState == nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	return nil
}
