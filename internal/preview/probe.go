package preview

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrProbeFailed means no strategy could extract a duration. Probing is
// best-effort: callers degrade to "duration unset" and never surface this
// to the uploader.
var ErrProbeFailed = errors.New("could not determine media duration")

// MediaProber extracts the duration of an audio or video file in seconds.
type MediaProber interface {
	Duration(ctx context.Context, path string) (float64, error)
}

// FFProbeProber shells out to ffprobe, walking progressively cruder
// strategies until one yields a duration.
type FFProbeProber struct {
	Binary  string
	Timeout time.Duration
}

func NewFFProbeProber(timeout time.Duration) *FFProbeProber {
	return &FFProbeProber{Binary: "ffprobe", Timeout: timeout}
}

func (p *FFProbeProber) Duration(ctx context.Context, path string) (float64, error) {
	if _, err := exec.LookPath(p.Binary); err != nil {
		return 0, ErrProbeFailed
	}

	strategies := []func(context.Context, string) (float64, error){
		p.containerDuration,
		p.streamDuration,
		p.frameCountDuration,
		p.sampleCountDuration,
		p.bannerDuration,
	}
	for _, strategy := range strategies {
		if d, err := strategy(ctx, path); err == nil && d > 0 {
			return d, nil
		}
	}
	return 0, ErrProbeFailed
}

func (p *FFProbeProber) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, p.Binary, args...).Output()
	return strings.TrimSpace(string(out)), err
}

// container-level duration from the format section
func (p *FFProbeProber) containerDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.run(ctx, "-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(firstLine(out), 64)
}

// per-stream duration; some containers only carry it on streams
func (p *FFProbeProber) streamDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.run(ctx, "-v", "error",
		"-show_entries", "stream=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", path)
	if err != nil {
		return 0, err
	}
	var best float64
	for _, line := range strings.Split(out, "\n") {
		if d, err := strconv.ParseFloat(strings.TrimSpace(line), 64); err == nil && d > best {
			best = d
		}
	}
	if best == 0 {
		return 0, ErrProbeFailed
	}
	return best, nil
}

// frame count divided by frame rate, for video streams without duration
func (p *FFProbeProber) frameCountDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.run(ctx, "-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=nb_read_frames,r_frame_rate",
		"-of", "default=noprint_wrappers=1", path)
	if err != nil {
		return 0, err
	}

	fields := parseKeyValues(out)
	frames, err := strconv.ParseFloat(fields["nb_read_frames"], 64)
	if err != nil || frames <= 0 {
		return 0, ErrProbeFailed
	}
	rate := parseRate(fields["r_frame_rate"])
	if rate <= 0 {
		return 0, ErrProbeFailed
	}
	return frames / rate, nil
}

// sample count divided by sample rate, for raw audio
func (p *FFProbeProber) sampleCountDuration(ctx context.Context, path string) (float64, error) {
	out, err := p.run(ctx, "-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=duration_ts,sample_rate",
		"-of", "default=noprint_wrappers=1", path)
	if err != nil {
		return 0, err
	}

	fields := parseKeyValues(out)
	samples, err := strconv.ParseFloat(fields["duration_ts"], 64)
	if err != nil || samples <= 0 {
		return 0, ErrProbeFailed
	}
	rate, err := strconv.ParseFloat(fields["sample_rate"], 64)
	if err != nil || rate <= 0 {
		return 0, ErrProbeFailed
	}
	return samples / rate, nil
}

var bannerDurationRe = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2})(?:\.(\d+))?`)

// last resort: scrape the human-readable banner ffprobe prints to stderr
func (p *FFProbeProber) bannerDuration(ctx context.Context, path string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	out, _ := exec.CommandContext(ctx, p.Binary, "-hide_banner", path).CombinedOutput()

	return ParseBannerDuration(string(out))
}

// ParseBannerDuration extracts a duration from ffprobe's diagnostic output,
// e.g. "Duration: 00:03:07.55, start: 0.000000, bitrate: 128 kb/s".
func ParseBannerDuration(out string) (float64, error) {
	m := bannerDurationRe.FindStringSubmatch(out)
	if m == nil {
		return 0, ErrProbeFailed
	}
	hours, _ := strconv.ParseFloat(m[1], 64)
	minutes, _ := strconv.ParseFloat(m[2], 64)
	seconds, _ := strconv.ParseFloat(m[3], 64)
	frac := 0.0
	if m[4] != "" {
		frac, _ = strconv.ParseFloat("0."+m[4], 64)
	}
	return hours*3600 + minutes*60 + seconds + frac, nil
}

func parseKeyValues(out string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(out, "\n") {
		if k, v, ok := strings.Cut(strings.TrimSpace(line), "="); ok {
			fields[k] = v
		}
	}
	return fields
}

// parseRate handles ffprobe rational rates like "30000/1001".
func parseRate(s string) float64 {
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0
		}
		return n / d
	}
	r, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return r
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}
