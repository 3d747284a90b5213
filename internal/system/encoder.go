package system

import (
	"context"
	"os/exec"
	"strings"
)

const SoftwareH264 = "libx264"

// Приоритеты аппаратных кодеров:
// 1. MacOS (VideoToolbox)
// 2. NVIDIA (NVENC)
// VAAPI требует настройки устройства, поэтому не рассматривается.
var hardwareH264 = []string{"h264_videotoolbox", "h264_nvenc"}

// DetectH264Encoder выбирает лучший доступный кодер H.264. Если ffmpeg не
// отвечает, возвращается программный libx264.
func DetectH264Encoder(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return SoftwareH264
	}
	return pickEncoder(string(out))
}

func pickEncoder(listing string) string {
	for _, name := range hardwareH264 {
		if strings.Contains(listing, name) {
			return name
		}
	}
	return SoftwareH264
}
