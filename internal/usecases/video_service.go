package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"project_citabot/internal/entities"
	"project_citabot/internal/interfaces"
)

const TempFileMaxAge = 2 * time.Hour

var videoPatterns = []struct {
	platform string
	patterns []*regexp.Regexp
}{
	{entities.VideoPlatformYouTube, []*regexp.Regexp{
		regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/|youtube\.com/v/|m\.youtube\.com/watch\?v=)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`(?:https?://)?(?:www\.)?youtube\.com/shorts/([a-zA-Z0-9_-]+)`),
	}},
	{entities.VideoPlatformInstagram, []*regexp.Regexp{
		regexp.MustCompile(`(?:https?://)?(?:www\.)?instagram\.com/(?:p|reel)/([a-zA-Z0-9_-]+)`),
		regexp.MustCompile(`(?:https?://)?(?:www\.)?instagram\.com/stories/[^/]+/([0-9]+)`),
	}},
	{entities.VideoPlatformTikTok, []*regexp.Regexp{
		regexp.MustCompile(`(?:https?://)?(?:www\.)?tiktok\.com/@[^/]+/video/([0-9]+)`),
		regexp.MustCompile(`(?:https?://)?(?:vm\.tiktok\.com|vt\.tiktok\.com)/([a-zA-Z0-9]+)`),
		regexp.MustCompile(`(?:https?://)?(?:www\.)?tiktok\.com/t/([a-zA-Z0-9]+)`),
	}},
}

// DetectVideoURL reports whether url points at a supported video and which
// platform hosts it.
func DetectVideoURL(url string) entities.VideoURLInfo {
	clean := strings.TrimSpace(url)
	if clean == "" {
		return entities.VideoURLInfo{OriginalURL: url}
	}
	for _, p := range videoPatterns {
		for _, re := range p.patterns {
			if m := re.FindStringSubmatch(clean); m != nil {
				return entities.VideoURLInfo{
					IsValid:     true,
					Platform:    p.platform,
					OriginalURL: clean,
					VideoID:     m[1],
				}
			}
		}
	}
	return entities.VideoURLInfo{OriginalURL: clean}
}

func ValidateVideoURLs(urls []string) []entities.VideoURLInfo {
	out := make([]entities.VideoURLInfo, len(urls))
	for i, u := range urls {
		out[i] = DetectVideoURL(u)
		out[i].URL = u
	}
	return out
}

// DescribeVideo renders the text the model reads in place of the video.
func DescribeVideo(d *entities.VideoDownload, info entities.VideoURLInfo) string {
	md := d.Metadata
	var b strings.Builder
	fmt.Fprintf(&b, "Video de %s:\n", info.Platform)
	fmt.Fprintf(&b, "Título: %s\n", md.Title)
	if md.Description != "" {
		fmt.Fprintf(&b, "Descripción: %s\n", md.Description)
	}
	if md.Uploader != "" {
		fmt.Fprintf(&b, "Canal/Usuario: %s\n", md.Uploader)
	}
	if md.Duration > 0 {
		fmt.Fprintf(&b, "Duración: %d:%02d\n", md.Duration/60, md.Duration%60)
	}
	if md.ViewCount > 0 {
		fmt.Fprintf(&b, "Visualizaciones: %s\n", groupThousands(md.ViewCount))
	}
	if md.UploadDate != "" {
		fmt.Fprintf(&b, "Fecha de subida: %s\n", md.UploadDate)
	}
	fmt.Fprintf(&b, "URL original: %s\n", info.OriginalURL)
	fmt.Fprintf(&b, "Plataforma: %s\n", info.Platform)
	return b.String()
}

func groupThousands(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// VideoService turns video links into personality media: it downloads each
// video, stores it in object storage and keeps its description for the
// prompt.
type VideoService struct {
	downloader    interfaces.VideoDownloader
	storage       interfaces.MediaStore
	personalities PersonalityStore
	queue         interfaces.TaskQueue
	now           func() time.Time
}

func NewVideoService(downloader interfaces.VideoDownloader, storage interfaces.MediaStore, personalities PersonalityStore, queue interfaces.TaskQueue) *VideoService {
	return &VideoService{
		downloader:    downloader,
		storage:       storage,
		personalities: personalities,
		queue:         queue,
		now:           time.Now,
	}
}

// IngestResult lists what a batch produced.
type IngestResult struct {
	Media   []entities.PersonalityMedia `json:"media"`
	Failed  []string                    `json:"failed"`
	Skipped []entities.VideoURLInfo     `json:"skipped"`
}

// QueueIngest validates the links and hands the download to the media queue.
func (s *VideoService) QueueIngest(ctx context.Context, userID int, personalityID int64, urls []string) ([]entities.VideoURLInfo, error) {
	if s.downloader == nil || s.storage == nil || s.queue == nil {
		return nil, newError(ErrNotConfigured, "la descarga de videos no está configurada")
	}
	if p, err := s.personalities.GetByID(ctx, userID, personalityID); err != nil {
		return nil, err
	} else if p == nil {
		return nil, notFound("Personalidad no encontrada")
	}

	checked := ValidateVideoURLs(urls)
	var valid []string
	for _, c := range checked {
		if c.IsValid {
			valid = append(valid, c.OriginalURL)
		}
	}
	if len(valid) == 0 {
		return checked, invalid("ninguna URL de video soportada")
	}

	payload, err := json.Marshal(VideoIngestPayload{UserID: userID, PersonalityID: personalityID, URLs: valid})
	if err != nil {
		return nil, err
	}
	if _, err := s.queue.Enqueue(ctx, interfaces.Task{Type: TaskVideoIngest, Payload: payload}, interfaces.EnqueueOption{
		Queue:    QueueMedia,
		MaxRetry: 1,
	}); err != nil {
		return nil, fmt.Errorf("enqueue video ingest: %w", err)
	}
	return checked, nil
}

// HandleIngestTask is the worker side of QueueIngest.
func (s *VideoService) HandleIngestTask(ctx context.Context, task interfaces.Task) error {
	var p VideoIngestPayload
	if err := json.Unmarshal(task.Payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", task.Type, err)
	}
	res, err := s.Ingest(ctx, p.UserID, p.PersonalityID, p.URLs)
	if errors.Is(err, ErrYouTubeUnavailable) {
		log.Warn().Int("user_id", p.UserID).Msg(err.Error())
		return nil
	}
	if err != nil {
		return err
	}
	log.Info().Int("user_id", p.UserID).Int64("personality_id", p.PersonalityID).
		Int("stored", len(res.Media)).Int("failed", len(res.Failed)).Msg("video ingest finished")
	return nil
}

// Ingest downloads and stores every supported link. A YouTube failure stops
// the batch; failures on other platforms are recorded as video_url_error
// media and the batch continues.
func (s *VideoService) Ingest(ctx context.Context, userID int, personalityID int64, urls []string) (*IngestResult, error) {
	if s.downloader == nil || s.storage == nil {
		return nil, newError(ErrNotConfigured, "la descarga de videos no está configurada")
	}
	defer s.cleanup()

	res := &IngestResult{Media: []entities.PersonalityMedia{}, Failed: []string{}, Skipped: []entities.VideoURLInfo{}}
	for _, u := range urls {
		info := DetectVideoURL(u)
		if !info.IsValid {
			info.URL = u
			res.Skipped = append(res.Skipped, info)
			continue
		}

		media, err := s.ingestOne(ctx, userID, personalityID, info)
		if err == nil {
			res.Media = append(res.Media, *media)
			continue
		}

		log.Error().Err(err).Str("platform", info.Platform).Str("url", info.OriginalURL).Msg("video ingest failed")
		if info.Platform == entities.VideoPlatformYouTube {
			return res, ErrYouTubeUnavailable
		}
		res.Failed = append(res.Failed, info.OriginalURL)
		s.recordFailure(ctx, userID, personalityID, info, err)
	}
	return res, nil
}

func (s *VideoService) ingestOne(ctx context.Context, userID int, personalityID int64, info entities.VideoURLInfo) (*entities.PersonalityMedia, error) {
	d, err := s.downloader.Download(ctx, info.OriginalURL)
	if err != nil {
		return nil, err
	}
	defer func() {
		os.Remove(d.Path)
		if d.Metadata.Thumbnail != "" {
			os.Remove(d.Metadata.Thumbnail)
		}
	}()

	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("open download: %w", err)
	}
	defer f.Close()

	key := path.Join("personalities", strconv.Itoa(userID), fmt.Sprintf("%d_%s", s.now().UnixMilli(), d.Filename))
	url, err := s.storage.Upload(ctx, key, f, d.MimeType)
	if err != nil {
		return nil, fmt.Errorf("upload video: %w", err)
	}

	media := &entities.PersonalityMedia{
		UserID:        userID,
		PersonalityID: personalityID,
		MediaType:     entities.MediaTypeVideo,
		Filename:      d.Filename,
		MimeType:      d.MimeType,
		URL:           url,
		FileSize:      d.Size,
		ExtractedText: DescribeVideo(d, info),
		Metadata: map[string]any{
			"platform":    info.Platform,
			"originalUrl": info.OriginalURL,
			"videoId":     info.VideoID,
			"title":       d.Metadata.Title,
			"description": d.Metadata.Description,
			"duration":    d.Metadata.Duration,
			"uploader":    d.Metadata.Uploader,
			"uploadDate":  d.Metadata.UploadDate,
			"viewCount":   d.Metadata.ViewCount,
			"likeCount":   d.Metadata.LikeCount,
		},
	}
	if err := s.personalities.CreateMedia(ctx, media); err != nil {
		return nil, fmt.Errorf("%w: store media: %v", ErrPersistence, err)
	}
	return media, nil
}

func (s *VideoService) recordFailure(ctx context.Context, userID int, personalityID int64, info entities.VideoURLInfo, cause error) {
	now := s.now()
	entry := &entities.PersonalityMedia{
		UserID:        userID,
		PersonalityID: personalityID,
		MediaType:     entities.MediaTypeVideoURLError,
		Filename:      fmt.Sprintf("error_%s_%d", info.Platform, now.UnixMilli()),
		MimeType:      "text/plain",
		ExtractedText: fmt.Sprintf("Error procesando video de %s: %v", info.Platform, cause),
		Metadata: map[string]any{
			"platform":    info.Platform,
			"originalUrl": info.OriginalURL,
			"error":       cause.Error(),
			"timestamp":   now.UTC().Format(time.RFC3339),
		},
	}
	if err := s.personalities.CreateMedia(ctx, entry); err != nil {
		log.Error().Err(err).Str("url", info.OriginalURL).Msg("failed to record video error")
	}
}

func (s *VideoService) cleanup() {
	if _, err := s.Cleanup(TempFileMaxAge); err != nil {
		log.Warn().Err(err).Msg("temp video cleanup failed")
	}
}

// Cleanup removes downloaded files older than maxAge.
func (s *VideoService) Cleanup(maxAge time.Duration) (int, error) {
	if s.downloader == nil {
		return 0, nil
	}
	n, err := s.downloader.CleanupOlderThan(maxAge)
	if n > 0 {
		log.Info().Int("files", n).Msg("old temp videos removed")
	}
	return n, err
}

// CheckDownloader returns the yt-dlp version, or an error when it is missing.
func (s *VideoService) CheckDownloader(ctx context.Context) (string, error) {
	if s.downloader == nil {
		return "", ErrNotConfigured
	}
	return s.downloader.Version(ctx)
}
