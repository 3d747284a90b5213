// Package playback проигрывает композицию в реальном времени: кадр
// вычисляется по прошедшему времени, звук идёт отдельным процессом.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/compositor"
)

var ErrRunning = errors.New("playback already running")

// Composition - источник кадров. *compositor.Compositor подходит.
type Composition interface {
	TotalFrames() int
	FPS() int
	Compose(frame int) compositor.Frame
}

// Sink показывает кадры.
type Sink interface {
	Show(ctx context.Context, f compositor.Frame) error
}

// AudioTrack - звуковая дорожка, которой владеет Driver между Start и Stop.
type AudioTrack interface {
	Start(ctx context.Context, offset time.Duration) error
	Stop() error
}

type Options struct {
	Loop bool
}

// Driver тикает с частотой композиции и отдаёт текущий кадр в Sink.
// Медленный Sink приводит к пропуску кадров, а не к замедлению.
type Driver struct {
	comp   Composition
	sink   Sink
	audio  AudioTrack
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	current int
	shown   int
}

func NewDriver(comp Composition, sink Sink, audio AudioTrack, opts Options, logger *zap.Logger) *Driver {
	if audio == nil {
		audio = Nop{}
	}
	return &Driver{
		comp:   comp,
		sink:   sink,
		audio:  audio,
		opts:   opts,
		logger: logger.Named("Playback"),
		now:    time.Now,
	}
}

// Start запускает воспроизведение с кадра from.
func (d *Driver) Start(ctx context.Context, from int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return ErrRunning
	}

	total := d.comp.TotalFrames()
	from = min(max(from, 0), max(total-1, 0))
	fps := d.comp.FPS()
	offset := time.Duration(from) * time.Second / time.Duration(fps)

	if err := d.audio.Start(ctx, offset); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	d.err = nil
	d.current = from
	d.shown = 0
	d.logger.Info("Playback started", zap.Int("from", from), zap.Int("total_frames", total), zap.Int("fps", fps))
	go d.run(runCtx, from, d.done)
	return nil
}

func (d *Driver) run(ctx context.Context, from int, done chan struct{}) {
	defer close(done)
	total := d.comp.TotalFrames()
	fps := d.comp.FPS()
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	start := d.now()
	last := -1
	show := func(n int) bool {
		if n == last {
			return true
		}
		last = n
		if err := d.sink.Show(ctx, d.comp.Compose(n)); err != nil {
			d.finish(err)
			return false
		}
		d.mu.Lock()
		d.current = n
		d.shown++
		d.mu.Unlock()
		return true
	}

	if !show(from) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			d.finish(nil)
			return
		case <-ticker.C:
		}
		n := from + int(d.now().Sub(start)*time.Duration(fps)/time.Second)
		if n >= total {
			if d.opts.Loop {
				n %= total
			} else {
				if show(total - 1) {
					d.finish(nil)
				}
				return
			}
		}
		if !show(n) {
			return
		}
	}
}

func (d *Driver) finish(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
	if err != nil {
		d.logger.Error("Playback stopped", zap.Error(err))
	}
}

// Wait ждёт конца воспроизведения и освобождает звук.
func (d *Driver) Wait() error {
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	return d.release()
}

// Stop прерывает воспроизведение и освобождает звук.
func (d *Driver) Stop() error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()
	if done == nil {
		return nil
	}
	cancel()
	<-done
	return d.release()
}

func (d *Driver) release() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done == nil {
		return d.err
	}
	d.cancel()
	d.done = nil
	audioErr := d.audio.Stop()
	d.logger.Info("Playback finished", zap.Int("frame", d.current), zap.Int("shown", d.shown))
	return errors.Join(d.err, audioErr)
}

// Position - последний показанный кадр и сколько кадров показано.
func (d *Driver) Position() (frame, shown int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, d.shown
}
