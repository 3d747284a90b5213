package video

import (
	"context"
	"fmt"
	"os/exec"
)

// AudioMix - звуковая дорожка для готового видео. Background зацикливается
// и микшируется под основную дорожку с плавным входом и выходом.
type AudioMix struct {
	Path             string
	Background       string
	BackgroundVolume float64
}

func (a AudioMix) Empty() bool { return a.Path == "" && a.Background == "" }

// MuxAudio накладывает звук на videoPath и пишет результат в out. Видео не
// перекодируется. duration - длина видео в секундах.
func MuxAudio(ctx context.Context, videoPath string, mix AudioMix, duration float64, out string) error {
	if mix.Empty() {
		return fmt.Errorf("no audio to mux")
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", buildMuxArgs(videoPath, mix, duration, out)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg mux error: %v, output: %s", err, string(output))
	}
	return nil
}

func buildMuxArgs(videoPath string, mix AudioMix, duration float64, out string) []string {
	args := []string{"-y", "-i", videoPath}

	main, bg := -1, -1
	if mix.Path != "" {
		main = 1
		args = append(args, "-i", mix.Path)
	}
	if mix.Background != "" {
		bg = 1
		if main != -1 {
			bg = 2
		}
		args = append(args, "-stream_loop", "-1", "-i", mix.Background)
	}

	audioOut := fmt.Sprintf("%d:a", main)
	if bg != -1 {
		vol := mix.BackgroundVolume
		if vol <= 0 {
			vol = 0.3
		}
		fadeIn, fadeOut := 5.0, 5.0
		if duration < fadeIn+fadeOut {
			fadeIn = duration * 0.1
			fadeOut = duration * 0.1
		}
		volExpr := fmt.Sprintf("volume='%f*(if(lte(t,%f), 0.1 + 0.9*(t/%f), if(gte(t, %f), (%f-t)/%f, 1.0)))':eval=frame",
			vol, fadeIn, fadeIn, duration-fadeOut, duration, fadeOut)

		var graph string
		if main != -1 {
			graph = fmt.Sprintf("[%d:a]%s[bg_a];[%d:a]volume=1.0[main_a];[main_a][bg_a]amix=inputs=2:duration=first:dropout_transition=3[aout]",
				bg, volExpr, main)
		} else {
			graph = fmt.Sprintf("[%d:a]%s[aout]", bg, volExpr)
		}
		args = append(args, "-filter_complex", graph)
		audioOut = "[aout]"
	}

	args = append(args,
		"-map", "0:v",
		"-map", audioOut,
		"-c:v", "copy",
		"-c:a", "aac",
		"-t", fmt.Sprintf("%f", duration),
		"-shortest",
		out,
	)
	return args
}
