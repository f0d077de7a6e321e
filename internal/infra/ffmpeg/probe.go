package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	AvgFrameRate string `json:"avg_frame_rate"`
	RFrameRate   string `json:"r_frame_rate"`
	NbFrames     string `json:"nb_frames"`
}

// VideoMeta is what the scanner needs to know about a file before decoding it.
type VideoMeta struct {
	Width, Height int
	FPS           float64
	FrameCount    float64
}

func (e *FrameExtractor) probe(ctx context.Context, videoPath string) (VideoMeta, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type,width,height,avg_frame_rate,r_frame_rate,nb_frames:format=duration",
		"-of", "json",
		videoPath,
	)
	output, err := cmd.Output()
	if err != nil {
		return VideoMeta{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(output)
}

func parseProbe(output []byte) (VideoMeta, error) {
	var res probeResult
	if err := json.Unmarshal(output, &res); err != nil {
		return VideoMeta{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	for _, s := range res.Streams {
		if s.CodecType != "" && s.CodecType != "video" {
			continue
		}
		meta := VideoMeta{Width: s.Width, Height: s.Height}
		meta.FPS = parseRate(s.AvgFrameRate)
		if meta.FPS <= 0 {
			meta.FPS = parseRate(s.RFrameRate)
		}

		if n, err := strconv.ParseFloat(s.NbFrames, 64); err == nil && n > 0 {
			meta.FrameCount = n
		} else if d, err := strconv.ParseFloat(strings.TrimSpace(res.Format.Duration), 64); err == nil {
			// Some containers (mkv, webm) carry no frame count.
			meta.FrameCount = float64(int64(d * meta.FPS))
		}
		return meta, nil
	}
	return VideoMeta{}, fmt.Errorf("no video stream")
}

// parseRate reads ffprobe rationals such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0
	}
	if !ok {
		return n
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0
	}
	return n / d
}
