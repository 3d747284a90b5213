package playback

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"time"
)

// Nop - тишина.
type Nop struct{}

func (Nop) Start(context.Context, time.Duration) error { return nil }
func (Nop) Stop() error                                { return nil }

// FFPlay играет файл через ffplay без окна.
type FFPlay struct {
	Path   string
	Volume int // 0-100, 0 означает 100

	mu  sync.Mutex
	cmd *exec.Cmd
}

func NewFFPlay(path string) *FFPlay {
	return &FFPlay{Path: path}
}

func (a *FFPlay) args(offset time.Duration) []string {
	volume := a.Volume
	if volume <= 0 || volume > 100 {
		volume = 100
	}
	return []string{
		"-nodisp", "-autoexit", "-loglevel", "error",
		"-volume", strconv.Itoa(volume),
		"-ss", fmt.Sprintf("%.3f", offset.Seconds()),
		a.Path,
	}
}

func (a *FFPlay) Start(ctx context.Context, offset time.Duration) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cmd != nil {
		return errors.New("audio already playing")
	}
	cmd := exec.CommandContext(ctx, "ffplay", a.args(offset)...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffplay: %w", err)
	}
	a.cmd = cmd
	return nil
}

// Stop останавливает процесс. Повторный вызов ничего не делает.
func (a *FFPlay) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cmd == nil {
		return nil
	}
	cmd := a.cmd
	a.cmd = nil
	if cmd.ProcessState == nil {
		_ = cmd.Process.Kill()
	}
	// ошибка Wait после Kill ожидаема
	_ = cmd.Wait()
	return nil
}
