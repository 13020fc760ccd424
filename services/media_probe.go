package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"time"

	"mnas/config"
)

type MediaInfo struct {
	Codec    string
	Width    int
	Height   int
	Duration float64
	Bitrate  int64
}

type EncodeStrategy struct {
	Kind     string // gpu | cpu | skip
	GPUIndex int
}

func (s EncodeStrategy) String() string {
	if s.Kind == "gpu" {
		return fmt.Sprintf("gpu:%d", s.GPUIndex)
	}
	return s.Kind
}

type MediaInspector interface {
	Probe(ctx context.Context, path string) (MediaInfo, error)
}

type Encoder interface {
	Encode(ctx context.Context, strategy EncodeStrategy, info MediaInfo, src string, dst string) error
}

type ffprobeInspector struct{}

func NewFFProbeInspector() MediaInspector {
	return ffprobeInspector{}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

func (ffprobeInspector) Probe(ctx context.Context, path string) (MediaInfo, error) {
	timeout := time.Duration(config.AppConfig.Transcode.ProbeTimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path)
	out, err := cmd.Output()
	if err != nil {
		return MediaInfo{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probed ffprobeOutput
	if err := json.Unmarshal(out, &probed); err != nil {
		return MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	info := MediaInfo{}
	for _, stream := range probed.Streams {
		if stream.CodecType == "video" {
			info.Codec = stream.CodecName
			info.Width = stream.Width
			info.Height = stream.Height
			break
		}
	}
	if info.Width == 0 {
		return MediaInfo{}, fmt.Errorf("no video stream in %s", path)
	}
	if d, err := strconv.ParseFloat(probed.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	if b, err := strconv.ParseInt(probed.Format.BitRate, 10, 64); err == nil {
		info.Bitrate = b
	}
	return info, nil
}

// fallbackMediaInfo 探测失败时的保守假设：按非目标编码、1080p 处理，
// 宁可多转一次也不阻塞入库。
func fallbackMediaInfo() MediaInfo {
	return MediaInfo{Codec: "unknown", Width: 1920, Height: 1080}
}

// estimateVRAMMB 按分辨率档位估算编码所需显存。
func estimateVRAMMB(width, height int) int {
	pixels := width * height
	switch {
	case pixels <= 1920*1080:
		return 200
	case pixels <= 2560*1440:
		return 350
	case pixels <= 3840*2160:
		return 500
	default:
		return 800
	}
}

type ffmpegEncoder struct{}

func NewFFMpegEncoder() Encoder {
	return ffmpegEncoder{}
}

func (ffmpegEncoder) Encode(ctx context.Context, strategy EncodeStrategy, info MediaInfo, src string, dst string) error {
	var timeout time.Duration
	var args []string

	if strategy.Kind == "gpu" {
		timeout = time.Duration(config.AppConfig.Transcode.GPUTimeoutMinutes) * time.Minute
		bitrate, maxrate, bufsize := gpuBitrateLadder(info.Width, info.Height)
		args = []string{
			"-y",
			"-i", src,
			"-c:v", "h264_nvenc",
			"-gpu", strconv.Itoa(strategy.GPUIndex),
			"-preset", "medium",
			"-profile:v", "high",
			"-level:v", "4.1",
			"-b:v", bitrate,
			"-maxrate", maxrate,
			"-bufsize", bufsize,
			"-c:a", "aac",
			"-b:a", "128k",
			"-ac", "2",
			"-f", "mp4",
			"-movflags", "+faststart",
			dst,
		}
	} else {
		timeout = time.Duration(config.AppConfig.Transcode.CPUTimeoutMinutes) * time.Minute
		preset, crf := cpuQualityLadder(info.Width, info.Height)
		args = []string{
			"-y",
			"-i", src,
			"-c:v", "libx264",
			"-preset", preset,
			"-crf", crf,
			"-profile:v", "high",
			"-level:v", "4.1",
			"-threads", strconv.Itoa(encodeThreads()),
			"-c:a", "aac",
			"-b:a", "128k",
			"-ac", "2",
			"-f", "mp4",
			"-movflags", "+faststart",
			dst,
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("ffmpeg timed out after %s", timeout)
		}
		return fmt.Errorf("ffmpeg failed: %w: %s", err, truncateOutput(out))
	}
	return nil
}

func gpuBitrateLadder(width, height int) (bitrate, maxrate, bufsize string) {
	pixels := width * height
	switch {
	case pixels <= 1920*1080:
		return "2M", "4M", "4M"
	case pixels <= 2560*1440:
		return "4M", "6M", "6M"
	case pixels <= 3840*2160:
		return "8M", "12M", "12M"
	default:
		return "16M", "24M", "24M"
	}
}

func cpuQualityLadder(width, height int) (preset, crf string) {
	pixels := width * height
	switch {
	case pixels <= 1920*1080:
		return "medium", "23"
	case pixels <= 2560*1440:
		return "fast", "24"
	default:
		return "faster", "25"
	}
}

func encodeThreads() int {
	threads := runtime.NumCPU()
	if threads > 8 {
		threads = 8
	}
	return threads
}

func truncateOutput(out []byte) string {
	const limit = 512
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return string(out)
}
