package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ivlev/scenereel/internal/director"
	"github.com/ivlev/scenereel/internal/engine"
)

type report struct {
	build   string
	project string
	format  string
	stats   engine.Stats
}

func newReport(sb *director.Storyboard, opts options, stats engine.Stats) report {
	return report{build: BuildVersion, project: sb.Project.Name, format: string(opts.format), stats: stats}
}

func (r report) String() string {
	mux := r.stats.Total - r.stats.Rendered
	return fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.2fs\n"+
			"Rendering + Encoding: %.2fs\n"+
			"Audio Mux: %.2fs\n"+
			"Workers: %d | Encoder: %s\n"+
			"Effective FPS: %.2f\n"+
			"----------------------------\n",
		r.build, r.stats.Total.Seconds(), r.stats.Rendered.Seconds(), mux.Seconds(),
		r.stats.Workers, r.stats.Encoder, r.stats.FPS(),
	)
}

// Append дописывает строку отчета в файл.
func (r report) Append(path string) error {
	entry := fmt.Sprintf("[%s] Build: %s | Project: %s | Format: %s | Frames: %d | Total: %.2fs | Render: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		r.build,
		r.project,
		r.format,
		r.stats.Frames,
		r.stats.Total.Seconds(),
		r.stats.Rendered.Seconds(),
		r.stats.FPS(),
	)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
