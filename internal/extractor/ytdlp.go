package extractor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/vibedl/vibedl/internal/domain"
	"github.com/vibedl/vibedl/internal/platform"
)

// baseArgs are shared by every yt-dlp invocation: quiet output, no playlist
// expansion, proxy routing and a bot-detection friendly user agent.
func (g *Gateway) baseArgs() []string {
	args := []string{
		"--no-warnings",
		"--no-playlist",
		"--socket-timeout", "30",
		"--retries", "3",
		"--user-agent", userAgent,
	}
	if g.proxyURL != "" {
		args = append(args, "--proxy", g.proxyURL)
	}
	return args
}

// ytdlpFormat mirrors one entry of the "formats" array in yt-dlp's JSON
// dump. Only the fields the API surfaces are decoded.
type ytdlpFormat struct {
	FormatID   string  `json:"format_id"`
	Ext        string  `json:"ext"`
	Filesize   int64   `json:"filesize"`
	FormatNote string  `json:"format_note"`
	ABR        float64 `json:"abr"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	FPS        float64 `json:"fps"`
	VCodec     string  `json:"vcodec"`
	ACodec     string  `json:"acodec"`
}

type ytdlpDump struct {
	ID                string             `json:"id"`
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	Duration          int64              `json:"duration"`
	ViewCount         int64              `json:"view_count"`
	LikeCount         int64              `json:"like_count"`
	UploadDate        string             `json:"upload_date"`
	ChannelID         string             `json:"channel_id"`
	Channel           string             `json:"channel"`
	Uploader          string             `json:"uploader"`
	ChannelURL        string             `json:"channel_url"`
	ChannelIsVerified bool               `json:"channel_is_verified"`
	Thumbnails        []domain.Thumbnail `json:"thumbnails"`
	Formats           []ytdlpFormat      `json:"formats"`
}

// Probe resolves a source URL into metadata plus the variant lists, each
// variant annotated with its direct-download path.
func (g *Gateway) Probe(ctx context.Context, sourceURL string) (*domain.VideoInfo, error) {
	args := append(g.baseArgs(), "-J", sourceURL)
	cmd := exec.CommandContext(ctx, g.ytdlpPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classify(ctx, stderr.String(), err)
	}

	var dump ytdlpDump
	if err := json.Unmarshal(stdout.Bytes(), &dump); err != nil {
		return nil, fmt.Errorf("unexpected extractor output: %w", err)
	}
	if dump.ID == "" {
		return nil, fmt.Errorf("%w: extractor returned no video", domain.ErrVideoUnavailable)
	}

	return dump.toVideoInfo(), nil
}

func (d *ytdlpDump) toVideoInfo() *domain.VideoInfo {
	channelName := d.Channel
	if channelName == "" {
		channelName = d.Uploader
	}

	info := &domain.VideoInfo{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Duration:    d.Duration,
		ViewCount:   d.ViewCount,
		LikeCount:   d.LikeCount,
		UploadDate:  d.UploadDate,
		Thumbnails:  d.Thumbnails,
		Channel: domain.Channel{
			ID:       d.ChannelID,
			Name:     channelName,
			URL:      d.ChannelURL,
			Verified: d.ChannelIsVerified,
		},
		AudioVariants: make([]domain.AudioVariant, 0),
		VideoVariants: make([]domain.VideoVariant, 0),
	}

	for _, t := range d.Thumbnails {
		if strings.Contains(t.ID, "avatar") {
			info.Channel.ProfilePicture = t.URL
			break
		}
	}

	for _, f := range d.Formats {
		downloadURL := fmt.Sprintf("/api/direct-download/%s/%s", d.ID, f.FormatID)

		if f.VCodec == "none" && f.ACodec != "none" {
			info.AudioVariants = append(info.AudioVariants, domain.AudioVariant{
				FormatID:    f.FormatID,
				Ext:         f.Ext,
				Filesize:    f.Filesize,
				FormatNote:  f.FormatNote,
				ABR:         f.ABR,
				DownloadURL: downloadURL,
			})
			continue
		}

		if f.VCodec != "none" {
			info.VideoVariants = append(info.VideoVariants, domain.VideoVariant{
				FormatID:    f.FormatID,
				Ext:         f.Ext,
				Filesize:    f.Filesize,
				FormatNote:  f.FormatNote,
				Width:       f.Width,
				Height:      f.Height,
				FPS:         f.FPS,
				VCodec:      f.VCodec,
				ACodec:      f.ACodec,
				Resolution:  fmt.Sprintf("%dx%d", f.Width, f.Height),
				DownloadURL: downloadURL,
			})
		}
	}

	return info
}

var progressRe = regexp.MustCompile(`^\[download\]\s+([0-9.]+)%`)

// postProcessPrefixes mark the lines yt-dlp prints once downloading is done
// and the merge/remux stage begins.
var postProcessPrefixes = []string{"[Merger]", "[ExtractAudio]", "[VideoConvertor]", "[ffmpeg]", "[Fixup"}

func parseProgressLine(line string) (float64, bool) {
	m := progressRe.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return pct, true
}

func isPostProcessLine(line string) bool {
	for _, p := range postProcessPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// Fetch materializes the selected variant(s) to destPath, streaming
// progress into sink while the subprocess runs. The download is written
// under the working directory and only moved to destPath after the
// subprocess exits cleanly and the file is verified non-empty.
func (g *Gateway) Fetch(ctx context.Context, sourceURL, selector, destPath string, sink ProgressSink) error {
	session := uuid.New().String()
	outTemplate := filepath.Join(g.tempDir, session+".%(ext)s")

	args := append(g.baseArgs(),
		"-f", selector,
		"--merge-output-format", "mp4",
		"--newline",
		"-o", outTemplate,
		sourceURL,
	)

	cmd := exec.CommandContext(ctx, g.ytdlpPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start extractor: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Text()

		if pct, ok := parseProgressLine(line); ok && sink != nil {
			sink.Progress(pct)
			continue
		}
		if isPostProcessLine(line) && sink != nil {
			sink.Processing()
		}
	}

	if err := cmd.Wait(); err != nil {
		g.cleanupSession(session)
		return classify(ctx, stderr.String(), err)
	}

	produced, err := g.findSessionFile(session)
	if err != nil {
		return err
	}

	if info, statErr := os.Stat(produced); statErr != nil || info.Size() == 0 {
		g.cleanupSession(session)
		return fmt.Errorf("extractor produced an empty file")
	}

	return platform.MoveFile(produced, destPath)
}

// findSessionFile locates the file the extractor actually wrote: usually
// <session>.mp4, but the container can differ when no merge happened.
func (g *Gateway) findSessionFile(session string) (string, error) {
	expected := filepath.Join(g.tempDir, session+".mp4")
	if _, err := os.Stat(expected); err == nil {
		return expected, nil
	}

	matches, err := filepath.Glob(filepath.Join(g.tempDir, session+".*"))
	if err != nil || len(matches) == 0 {
		return "", fmt.Errorf("extractor output missing for session %s", session)
	}
	return matches[0], nil
}

func (g *Gateway) cleanupSession(session string) {
	matches, _ := filepath.Glob(filepath.Join(g.tempDir, session+".*"))
	for _, m := range matches {
		os.Remove(m)
	}
}
