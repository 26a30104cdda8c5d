package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
	"project_citabot/internal/interfaces"
)

const downloadTimeout = 5 * time.Minute

var videoMimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
}

// VideoMimeType maps a filename extension to its video MIME type.
func VideoMimeType(filename string) string {
	if mt, ok := videoMimeTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	return "video/mp4"
}

// YtDlp downloads videos by running the yt-dlp binary.
type YtDlp struct {
	binary  string
	tempDir string
	now     func() time.Time
}

func NewYtDlp(binary, tempDir string) *YtDlp {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YtDlp{binary: binary, tempDir: tempDir, now: time.Now}
}

var _ interfaces.VideoDownloader = (*YtDlp)(nil)

// Version runs `yt-dlp --version`.
func (y *YtDlp) Version(ctx context.Context) (string, error) {
	out, err := exec.CommandContext(ctx, y.binary, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("yt-dlp not available at %s: %w", y.binary, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// infoJSON is the subset of yt-dlp's .info.json we read.
type infoJSON struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Duration    float64 `json:"duration"`
	Uploader    string  `json:"uploader"`
	Channel     string  `json:"channel"`
	UploadDate  string  `json:"upload_date"`
	ViewCount   int64   `json:"view_count"`
	LikeCount   int64   `json:"like_count"`
}

// Download fetches url into the temp dir. Partial files are removed when
// the download fails.
func (y *YtDlp) Download(ctx context.Context, url string) (*entities.VideoDownload, error) {
	if err := os.MkdirAll(y.tempDir, 0755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}

	prefix := fmt.Sprintf("video_%d_", y.now().UnixNano())
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, y.binary,
		"--no-playlist",
		"--write-info-json",
		"--write-description",
		"--write-thumbnail",
		"--format", "best",
		"--output", filepath.Join(y.tempDir, prefix+"%(title)s.%(ext)s"),
		url,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		y.removePrefix(prefix)
		msg := strings.TrimSpace(stderr.String())
		if ctx.Err() == context.DeadlineExceeded {
			msg = "timeout"
		}
		return nil, fmt.Errorf("yt-dlp failed: %w: %s", err, msg)
	}
	if stderr.Len() > 0 {
		log.Debug().Str("url", url).Str("stderr", strings.TrimSpace(stderr.String())).Msg("yt-dlp warnings")
	}

	download, err := y.collect(prefix)
	if err != nil {
		y.removePrefix(prefix)
		return nil, err
	}
	return download, nil
}

// collect locates the files written for prefix.
func (y *YtDlp) collect(prefix string) (*entities.VideoDownload, error) {
	entries, err := os.ReadDir(y.tempDir)
	if err != nil {
		return nil, err
	}

	var videos []string
	var infoFile, descFile, thumbFile string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) {
			continue
		}
		switch {
		case strings.HasSuffix(name, ".info.json"):
			infoFile = name
		case strings.HasSuffix(name, ".description"):
			descFile = name
		case hasExt(name, ".mp4", ".webm", ".mkv"):
			videos = append(videos, name)
		case hasExt(name, ".jpg", ".jpeg", ".png", ".webp"):
			thumbFile = name
		}
	}
	if len(videos) == 0 {
		return nil, errors.New("no downloaded video file found")
	}
	sort.Strings(videos)

	videoPath := filepath.Join(y.tempDir, videos[0])
	stat, err := os.Stat(videoPath)
	if err != nil {
		return nil, err
	}

	var info infoJSON
	if infoFile != "" {
		if raw, err := os.ReadFile(filepath.Join(y.tempDir, infoFile)); err == nil {
			if err := json.Unmarshal(raw, &info); err != nil {
				log.Warn().Err(err).Str("file", infoFile).Msg("could not parse video metadata")
			}
		}
	}
	description := info.Description
	if descFile != "" {
		if raw, err := os.ReadFile(filepath.Join(y.tempDir, descFile)); err == nil && len(raw) > 0 {
			description = string(raw)
		}
	}

	meta := entities.VideoMetadata{
		Title:       firstNonEmpty(info.Title, "Video sin título"),
		Description: description,
		Duration:    int(info.Duration),
		Uploader:    firstNonEmpty(info.Uploader, info.Channel, "Desconocido"),
		UploadDate:  info.UploadDate,
		ViewCount:   info.ViewCount,
		LikeCount:   info.LikeCount,
	}
	if thumbFile != "" {
		meta.Thumbnail = filepath.Join(y.tempDir, thumbFile)
	}

	return &entities.VideoDownload{
		Path:     videoPath,
		Filename: videos[0],
		MimeType: VideoMimeType(videos[0]),
		Size:     stat.Size(),
		Metadata: meta,
	}, nil
}

func (y *YtDlp) removePrefix(prefix string) {
	entries, err := os.ReadDir(y.tempDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			if err := os.Remove(filepath.Join(y.tempDir, entry.Name())); err != nil {
				log.Warn().Err(err).Str("file", entry.Name()).Msg("remove partial download")
			}
		}
	}
}

// CleanupOlderThan removes temp files last modified more than age ago.
func (y *YtDlp) CleanupOlderThan(age time.Duration) (int, error) {
	entries, err := os.ReadDir(y.tempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := y.now().Add(-age)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "video_") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(y.tempDir, entry.Name())); err == nil {
			removed++
		}
	}
	if removed > 0 {
		log.Info().Int("files", removed).Msg("cleaned old video downloads")
	}
	return removed, nil
}

func hasExt(name string, exts ...string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
