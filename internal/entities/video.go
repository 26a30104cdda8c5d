package entities

const (
	VideoPlatformYouTube   = "youtube"
	VideoPlatformInstagram = "instagram"
	VideoPlatformTikTok    = "tiktok"
)

// VideoURLInfo describes a URL checked against the supported platforms.
type VideoURLInfo struct {
	URL         string `json:"url,omitempty"`
	IsValid     bool   `json:"isValid"`
	Platform    string `json:"platform,omitempty"`
	OriginalURL string `json:"originalUrl,omitempty"`
	VideoID     string `json:"videoId,omitempty"`
}

type VideoMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Duration    int    `json:"duration"` // seconds
	Uploader    string `json:"uploader"`
	UploadDate  string `json:"uploadDate"`
	ViewCount   int64  `json:"viewCount"`
	LikeCount   int64  `json:"likeCount"`
	Thumbnail   string `json:"thumbnail"`
}

// VideoDownload is a video fetched to local disk.
type VideoDownload struct {
	Path     string        `json:"path"`
	Filename string        `json:"filename"`
	MimeType string        `json:"mimeType"`
	Size     int64         `json:"size"`
	Metadata VideoMetadata `json:"metadata"`
}
