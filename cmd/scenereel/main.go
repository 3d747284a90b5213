package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ivlev/scenereel/internal/compositor"
	"github.com/ivlev/scenereel/internal/logger"
	"github.com/ivlev/scenereel/internal/model"
	"github.com/ivlev/scenereel/internal/source"
	"github.com/ivlev/scenereel/internal/system"
)

// BuildVersion подставляется при сборке через -ldflags.
var BuildVersion = "dev"

const (
	storyboardDir = "input/storyboards"
	outputDir     = "output"
)

type options struct {
	mode          string
	input         string
	output        string
	format        model.Format
	quality       model.Quality
	features      compositor.Features
	fps           int
	window        int
	workers       int
	frame         int
	autoSpotlight bool
	audio         string
	loop          bool
	showWindow    bool
	debug         bool
	stats         bool
	totalMs       int
	seed          uint64
	name          string
	transition    string
	dpi           int
}

func main() {
	if limit, err := system.InitResourceLimits(2048); err != nil {
		fmt.Printf("[!] Не удалось поднять лимит файлов: %v\n", err)
	} else {
		fmt.Printf("[*] Лимит открытых файлов: %d\n", limit)
	}

	for _, d := range []string{storyboardDir, "input/pdf", "input/images", "input/audio", outputDir} {
		os.MkdirAll(d, 0755)
	}

	modePtr := flag.String("mode", "render", "Режим: init, validate, frame, render, play")
	inputPtr := flag.String("input", "", "Сториборд (по умолчанию: самый свежий в input/storyboards/); для init - PDF или папка с картинками")
	outputPtr := flag.String("output", "", "Куда писать результат (если пусто, генерируется автоматически в output/)")
	formatPtr := flag.String("format", "horizontal", "Формат: horizontal, vertical, square")
	qualityPtr := flag.String("quality", "standard", "Качество: draft, standard, high")
	featuresPtr := flag.String("features", "full", "Набор слоёв: "+fmt.Sprint(compositor.PresetNames()))
	fpsPtr := flag.Int("fps", compositor.DefaultFPS, "FPS")
	windowPtr := flag.Int("transition-frames", compositor.DefaultTransitionWindow, "Окно перехода между сценами (кадры)")
	workersPtr := flag.Int("workers", runtime.NumCPU(), "Потоки")
	framePtr := flag.Int("frame", 0, "Номер кадра для -mode frame и стартовый кадр для -mode play")
	autoSpotPtr := flag.Bool("auto-spotlight", false, "Расставить акценты автоматически для сцен без spotlight")
	audioPtr := flag.String("audio", "", "Путь к аудио (по умолчанию: из сториборда или самый свежий в input/audio/)")
	loopPtr := flag.Bool("loop", false, "Зациклить воспроизведение (-mode play)")
	windowOutPtr := flag.Bool("window", false, "Показывать кадры в окне ffplay (-mode play)")
	debugPtr := flag.Bool("debug", false, "Печатать номер кадра и фазу поверх кадра")
	statsPtr := flag.Bool("stats", false, "Показать отчет о производительности и дописать его в benchmark.log")
	durationPtr := flag.Float64("duration", 0, "Общая длительность для -mode init (сек); 0 - по 4 секунды на сцену")
	seedPtr := flag.Uint64("seed", 0, "Seed для длительностей сцен, зерна и частиц (0 - от текущего времени)")
	namePtr := flag.String("name", "", "Название проекта для -mode init")
	transitionPtr := flag.String("transition", "fade", "Переход по умолчанию для -mode init")
	dpiPtr := flag.Int("dpi", source.DefaultDPI, "DPI для страниц PDF")
	verbosePtr := flag.Bool("verbose", false, "Подробный лог библиотек")

	flag.Parse()

	format := model.Format(*formatPtr)
	if !format.Valid() {
		log.Fatalf("[-] Ошибка: неизвестный формат %q", *formatPtr)
	}
	quality, err := model.ParseQuality(*qualityPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
	features, err := compositor.FeaturesByName(*featuresPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}

	seed := *seedPtr
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	logCfg := logger.Config{Level: "warn", Encoding: "console", OutputPath: "stderr"}
	if *verbosePtr {
		logCfg.Level = "debug"
	}
	zl, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("[-] Ошибка логгера: %v", err)
	}
	defer zl.Sync()

	opts := options{
		mode:          *modePtr,
		input:         *inputPtr,
		output:        *outputPtr,
		format:        format,
		quality:       quality,
		features:      features,
		fps:           *fpsPtr,
		window:        *windowPtr,
		workers:       *workersPtr,
		frame:         *framePtr,
		autoSpotlight: *autoSpotPtr,
		audio:         *audioPtr,
		loop:          *loopPtr,
		showWindow:    *windowOutPtr,
		debug:         *debugPtr,
		stats:         *statsPtr,
		totalMs:       int(*durationPtr * 1000),
		seed:          seed,
		name:          *namePtr,
		transition:    *transitionPtr,
		dpi:           *dpiPtr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out string
	switch opts.mode {
	case "init":
		out, err = runInit(opts)
	case "validate":
		err = runValidate(ctx, opts, zl)
	case "frame":
		out, err = runFrame(ctx, opts, zl)
	case "render":
		out, err = runRender(ctx, opts, zl)
	case "play":
		err = runPlay(ctx, opts, zl)
	default:
		err = fmt.Errorf("неизвестный режим %q", opts.mode)
	}
	if err != nil {
		zl.Debug("Run failed", zap.String("mode", opts.mode), zap.Error(err))
		log.Fatalf("[-] Ошибка: %v", err)
	}

	if out != "" {
		fmt.Printf("[+++] Успех! Результат: %s\n", out)
	} else {
		fmt.Println("[+++] Готово")
	}
}
