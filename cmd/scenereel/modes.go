package main

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/compositor"
	"github.com/ivlev/scenereel/internal/director"
	"github.com/ivlev/scenereel/internal/engine"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/playback"
	"github.com/ivlev/scenereel/internal/renderer"
	"github.com/ivlev/scenereel/internal/source"
	"github.com/ivlev/scenereel/internal/system"
	"github.com/ivlev/scenereel/internal/video"
)

// runInit собирает черновой сториборд из PDF или папки с картинками.
func runInit(opts options) (string, error) {
	input := opts.input
	if input == "" {
		latest, err := system.FindLatest("input/pdf", system.PDFExtensions...)
		if err != nil {
			if _, imgErr := system.ListFiles("input/images", system.ImageExtensions...); imgErr != nil {
				return "", fmt.Errorf("%v. Положите PDF в input/pdf/ или картинки в input/images/", err)
			}
			latest = "input/images"
		}
		input = latest
		fmt.Printf("[*] Выбран источник: %s\n", input)
	}
	// пути ассетов в сториборде должны работать из любой папки
	abs, err := filepath.Abs(input)
	if err != nil {
		return "", err
	}

	src, err := source.Open(abs)
	if err != nil {
		return "", fmt.Errorf("ошибка инициализации источника: %w", err)
	}
	defer src.Close()

	audio := opts.audio
	if audio == "" {
		if latest, err := system.FindLatest("input/audio", system.AudioExtensions...); err == nil {
			audio = latest
			fmt.Printf("[*] Выбрано аудио: %s\n", audio)
		}
	}
	totalMs := opts.totalMs
	if totalMs <= 0 && audio != "" {
		dur, err := system.AudioDuration(context.Background(), audio)
		if err == nil {
			totalMs = int(dur * 1000)
			fmt.Printf("[*] Длительность установлена по аудио: %.2fs\n", dur)
		} else {
			fmt.Printf("[!] Не удалось получить длительность аудио: %v\n", err)
		}
	}

	name := opts.name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	sb, err := director.Scaffold(src, director.ScaffoldOptions{
		Name:       name,
		TotalMs:    totalMs,
		Transition: opts.transition,
		Brand:      model.Brand{AccentColor: "#3B82F6", Seed: opts.seed},
		Seed:       opts.seed,
	})
	if err != nil {
		return "", err
	}
	if audio != "" {
		if a, err := filepath.Abs(audio); err == nil {
			sb.Project.Audio = a
		}
	}
	if err := director.Validate(sb); err != nil {
		return "", err
	}

	out := opts.output
	if out == "" {
		out = director.StoryboardPath(storyboardDir, time.Now())
	}
	if err := director.Write(sb, out); err != nil {
		return "", err
	}
	fmt.Printf("[*] Сцен: %d | Длительность: %.2fs\n", len(sb.Scenes), float64(totalDuration(sb))/1000)
	return out, nil
}

func totalDuration(sb *director.Storyboard) int {
	total := 0
	for _, s := range sb.Scenes {
		total += s.DurationMs
	}
	return total
}

// loadStoryboard читает, проверяет и нормализует сториборд. С
// -auto-spotlight дополнительно расставляет акценты.
func loadStoryboard(ctx context.Context, opts options, logger *zap.Logger) (*director.Storyboard, *source.Loader, string, error) {
	path := opts.input
	if path == "" {
		latest, err := director.FindLatestStoryboard(storyboardDir)
		if err != nil {
			return nil, nil, "", fmt.Errorf("%v. Создайте сториборд через -mode init", err)
		}
		path = latest
		fmt.Printf("[*] Выбран сториборд: %s\n", path)
	}

	sb, err := director.Read(path)
	if err != nil {
		return nil, nil, "", err
	}
	if err := director.Validate(sb); err != nil {
		return nil, nil, "", err
	}
	sb = director.Normalize(sb)

	fmt.Println("--- [SCENEREEL] ---")
	fmt.Printf("[*] Проект: %s | Сцен: %d | Длительность: %.2fs\n", sb.Project.Name, len(sb.Scenes), float64(totalDuration(sb))/1000)

	baseDir := filepath.Dir(path)
	loader := source.NewLoader(source.LoaderConfig{BaseDir: baseDir, DPI: opts.dpi}, logger)

	if opts.autoSpotlight {
		n, err := director.NewDirector().AutoSpotlight(ctx, sb, loader, opts.fps)
		if err != nil {
			return nil, nil, "", fmt.Errorf("auto spotlight: %w", err)
		}
		fmt.Printf("[*] Автоматические акценты: %d сцен(ы)\n", n)
	}
	return sb, loader, baseDir, nil
}

func newCompositor(sb *director.Storyboard, opts options) (*compositor.Compositor, error) {
	w, h := opts.format.Dimensions()
	comp, err := compositor.New(sb.Scenes, sb.Project.Brand, compositor.Options{
		FPS:              opts.fps,
		Width:            w,
		Height:           h,
		TransitionWindow: opts.window,
		Features:         opts.features,
	})
	if err != nil {
		return nil, err
	}
	fmt.Printf("[*] Формат: %s | Разрешение: %dx%d @ %d FPS | Кадров: %d\n", opts.format, w, h, opts.fps, comp.TotalFrames())
	fmt.Println("-----------------------------")
	return comp, nil
}

// outputName строит имя файла в output/ из названия проекта и времени.
func outputName(sb *director.Storyboard, suffix, ext string) string {
	name := sb.Project.Name
	if name == "" {
		name = "scenereel"
	}
	cleanName := strings.ReplaceAll(name, " ", "_")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s_%s.%s", cleanName, suffix, timestamp, ext))
}

func resolveAudio(opts options, sb *director.Storyboard, baseDir string) string {
	if opts.audio != "" {
		return opts.audio
	}
	if a := sb.Project.Audio; a != "" {
		if !filepath.IsAbs(a) {
			a = filepath.Join(baseDir, a)
		}
		return a
	}
	return ""
}

func runValidate(ctx context.Context, opts options, logger *zap.Logger) error {
	sb, _, _, err := loadStoryboard(ctx, opts, logger)
	if err != nil {
		return err
	}
	_, err = newCompositor(sb, opts)
	return err
}

// runFrame рисует один кадр в PNG.
func runFrame(ctx context.Context, opts options, logger *zap.Logger) (string, error) {
	sb, loader, _, err := loadStoryboard(ctx, opts, logger)
	if err != nil {
		return "", err
	}
	comp, err := newCompositor(sb, opts)
	if err != nil {
		return "", err
	}
	if opts.frame < 0 || opts.frame >= comp.TotalFrames() {
		return "", fmt.Errorf("%w: кадр %d вне диапазона 0..%d", model.ErrInvalidInput, opts.frame, comp.TotalFrames()-1)
	}

	eng := engine.New(engine.Config{Debug: opts.debug}, loader, logger)
	img, err := eng.RenderFrame(ctx, comp, opts.frame, opts.quality)
	if err != nil {
		return "", err
	}

	out := opts.output
	if out == "" {
		out = outputName(sb, fmt.Sprintf("%s_f%05d", opts.format, opts.frame), "png")
	}
	f, err := os.Create(out)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return "", err
	}
	return out, f.Close()
}

// runRender рендерит весь сториборд в mp4 локальным движком.
func runRender(ctx context.Context, opts options, logger *zap.Logger) (string, error) {
	sb, loader, baseDir, err := loadStoryboard(ctx, opts, logger)
	if err != nil {
		return "", err
	}
	comp, err := newCompositor(sb, opts)
	if err != nil {
		return "", err
	}

	audio := resolveAudio(opts, sb, baseDir)
	if audio == "" {
		if latest, err := system.FindLatest("input/audio", system.AudioExtensions...); err == nil {
			audio = latest
		}
	}
	if audio != "" {
		fmt.Printf("[*] Аудио: %s\n", audio)
	}

	encoder := system.DetectH264Encoder(ctx)
	if encoder != system.SoftwareH264 {
		fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", encoder)
	}

	out := opts.output
	if out == "" {
		out = outputName(sb, string(opts.format), "mp4")
	}

	total := comp.TotalFrames()
	step := max(total/20, 1)
	eng := engine.New(engine.Config{
		Workers: opts.workers,
		Encoder: encoder,
		WorkDir: filepath.Dir(out),
		Audio:   video.AudioMix{Path: audio},
		Debug:   opts.debug,
		OnProgress: func(done, total int) {
			if done%step == 0 || done == total {
				fmt.Printf("[>] Ready: %d/%d\n", done, total)
			}
		},
	}, loader, logger)

	stats, err := eng.Render(ctx, comp, engine.Job{Output: out, Quality: opts.quality})
	if err != nil {
		return "", err
	}
	if opts.stats {
		report := newReport(sb, opts, stats)
		fmt.Print(report.String())
		if err := report.Append("benchmark.log"); err != nil {
			fmt.Printf("[!] Не удалось записать benchmark.log: %v\n", err)
		}
	}
	return out, nil
}

// runPlay проигрывает сториборд в реальном времени.
func runPlay(ctx context.Context, opts options, logger *zap.Logger) error {
	sb, loader, baseDir, err := loadStoryboard(ctx, opts, logger)
	if err != nil {
		return err
	}
	comp, err := newCompositor(sb, opts)
	if err != nil {
		return err
	}

	var sink playback.Sink = playback.ProgressSink{W: os.Stdout}
	if opts.showWindow {
		w, h := comp.Size()
		raster := renderer.New(loader, system.NewFramePool(), renderer.Options{Quality: model.QualityDraft, Debug: opts.debug})
		win, err := playback.OpenWindow(ctx, raster, w, h, comp.FPS(), sb.Project.Name)
		if err != nil {
			return err
		}
		defer win.Close()
		sink = win
	}

	var audio playback.AudioTrack
	if path := resolveAudio(opts, sb, baseDir); path != "" {
		audio = playback.NewFFPlay(path)
		fmt.Printf("[*] Аудио: %s\n", path)
	}

	drv := playback.NewDriver(comp, sink, audio, playback.Options{Loop: opts.loop}, logger)
	if err := drv.Start(ctx, opts.frame); err != nil {
		return err
	}
	err = drv.Wait()
	fmt.Println()
	frame, shown := drv.Position()
	fmt.Printf("[*] Остановлено на кадре %d, показано кадров: %d\n", frame+1, shown)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
