package resolver

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/jrmoore/platune/internal/source"
)

// extractorHosts lists the platforms whose links should be routed
// through the external extractor rather than fetched directly.
var extractorHosts = `(youtube\.com|youtu\.be|twitch\.tv|audius\.co|audiomack\.com|bandcamp\.com|soundcloud\.com|globalplayer\.com)$`

// ExtractorResolver shells out to a yt-dlp-equivalent tool to enumerate
// playlist entries or select the best audio format, falling back to an
// ffmpeg-equivalent transcode to adts when no native format is usable.
type ExtractorResolver struct {
	ytdlPath string
	ffmpeg   string
}

// NewExtractorResolver reads YT_DLP_PATH/FFMPEG_PATH from the
// environment, defaulting to bare binary names resolved via PATH.
func NewExtractorResolver() *ExtractorResolver {
	ytdl := os.Getenv("YT_DLP_PATH")
	if ytdl == "" {
		ytdl = "yt-dlp"
	}
	ffmpeg := os.Getenv("FFMPEG_PATH")
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	return &ExtractorResolver{ytdlPath: ytdl, ffmpeg: ffmpeg}
}

func (ExtractorResolver) Priority() int { return 1 }

func (ExtractorResolver) Rules() []Rule {
	return []Rule{LiteralPrefix("ytdl://"), HostPattern(extractorHosts)}
}

type ytdlPlaylistEntry struct {
	URL string `json:"url"`
}

// Resolve expands a playlist link into its track URLs; a single-track
// link resolves to itself.
func (r *ExtractorResolver) Resolve(ctx context.Context, input string) ([]string, error) {
	target := strings.TrimPrefix(input, "ytdl://")

	cmd := exec.CommandContext(ctx, r.ytdlPath, "--flat-playlist", "-J", target)
	out, err := cmd.Output()
	if err != nil {
		log.Warn().Err(err).Str("url", target).Msg("playlist enumeration failed, treating as single track")
		return []string{input}, nil
	}

	var parsed struct {
		Entries []ytdlPlaylistEntry `json:"entries"`
		URL     string              `json:"webpage_url"`
	}
	if err := json.Unmarshal(out, &parsed); err != nil {
		return []string{input}, nil
	}
	if len(parsed.Entries) == 0 {
		return []string{input}, nil
	}

	urls := make([]string, 0, len(parsed.Entries))
	for _, e := range parsed.Entries {
		if e.URL != "" {
			urls = append(urls, "ytdl://"+e.URL)
		}
	}
	if len(urls) == 0 {
		return []string{input}, nil
	}
	return urls, nil
}

// Materialize runs the extractor to pick the best audio-only format and
// streams its stdout (transcoding through ffmpeg first if no native
// format is directly playable).
func (r *ExtractorResolver) Materialize(ctx context.Context, input string) (source.Source, source.CancelFunc, error) {
	target := strings.TrimPrefix(input, "ytdl://")

	formatURL, ext, err := r.bestAudioFormat(ctx, target)
	if err != nil {
		return nil, nil, err
	}

	procCtx, cancel := context.WithCancel(context.Background())

	if ext != "" && isNativelyDecodable(ext) {
		cmd := exec.CommandContext(procCtx, r.ytdlPath, "-o", "-", formatURL)
		return r.pipeFromCommand(cmd, ext, cancel)
	}

	ytdl := exec.CommandContext(procCtx, r.ytdlPath, "-o", "-", formatURL)
	ffmpegCmd := exec.CommandContext(procCtx, r.ffmpeg, "-i", "pipe:0", "-f", "adts", "pipe:1")

	ytdlOut, err := ytdl.StdoutPipe()
	if err != nil {
		cancel()
		return nil, nil, err
	}
	ffmpegCmd.Stdin = ytdlOut

	if err := ytdl.Start(); err != nil {
		cancel()
		return nil, nil, err
	}
	return r.pipeFromCommand(ffmpegCmd, "adts", cancel)
}

func (r *ExtractorResolver) pipeFromCommand(cmd *exec.Cmd, ext string, cancel context.CancelFunc) (source.Source, source.CancelFunc, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, nil, err
	}
	return &processSource{cmd: cmd, stdout: bufio.NewReader(stdout), ext: ext, cancel: cancel}, source.CancelFunc(cancel), nil
}

func (r *ExtractorResolver) bestAudioFormat(ctx context.Context, target string) (url string, ext string, err error) {
	cmd := exec.CommandContext(ctx, r.ytdlPath, "-f", "bestaudio", "--get-url", "--print", "%(ext)s", target)
	out, err := cmd.Output()
	if err != nil {
		return "", "", fmt.Errorf("select audio format: %w", err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return strings.TrimSpace(string(out)), "", nil
	}
	return lines[0], lines[1], nil
}

func isNativelyDecodable(ext string) bool {
	switch ext {
	case "mp3", "wav", "flac", "ogg", "oga":
		return true
	default:
		return false
	}
}

// processSource is a progressive, non-seekable stream backed by a
// spawned external process's stdout.
type processSource struct {
	cmd    *exec.Cmd
	stdout *bufio.Reader
	ext    string
	cancel context.CancelFunc
}

func (p *processSource) Read(b []byte) (int, error) { return p.stdout.Read(b) }

func (p *processSource) Seek(int64, int) (int64, error) {
	return 0, fmt.Errorf("process-backed stream is not seekable")
}

func (p *processSource) Close() error {
	p.cancel()
	_ = p.cmd.Wait()
	return nil
}

func (p *processSource) Ext() string { return p.ext }

func (p *processSource) Len() (int64, bool) { return 0, false }

var _ io.Reader = (*processSource)(nil)
