package domain

// AudioVariant is one selectable audio-only stream of a video.
type AudioVariant struct {
	FormatID    string  `json:"format_id"`
	Ext         string  `json:"ext"`
	Filesize    int64   `json:"filesize,omitempty"`
	FormatNote  string  `json:"format_note,omitempty"`
	ABR         float64 `json:"abr,omitempty"`
	DownloadURL string  `json:"download_url"`
}

// VideoVariant is one selectable video stream. ACodec is "none" for
// video-only streams that need pairing with an audio variant.
type VideoVariant struct {
	FormatID    string  `json:"format_id"`
	Ext         string  `json:"ext"`
	Filesize    int64   `json:"filesize,omitempty"`
	FormatNote  string  `json:"format_note,omitempty"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	FPS         float64 `json:"fps,omitempty"`
	VCodec      string  `json:"vcodec,omitempty"`
	ACodec      string  `json:"acodec,omitempty"`
	Resolution  string  `json:"resolution"`
	DownloadURL string  `json:"download_url"`
}

// HasAudio reports whether the variant already carries an audio track.
func (v VideoVariant) HasAudio() bool {
	return v.ACodec != "" && v.ACodec != "none"
}

type Thumbnail struct {
	ID     string `json:"id,omitempty"`
	URL    string `json:"url"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

type Channel struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	URL            string `json:"url"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	Verified       bool   `json:"verified"`
}

// VideoInfo is the resolved metadata for a source URL, including every
// downloadable variant annotated with a ready-made retrieval path.
type VideoInfo struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Duration    int64       `json:"duration"`
	ViewCount   int64       `json:"view_count"`
	LikeCount   int64       `json:"like_count"`
	UploadDate  string      `json:"upload_date,omitempty"`
	Thumbnails  []Thumbnail `json:"thumbnails,omitempty"`
	Channel     Channel     `json:"channel"`

	AudioVariants []AudioVariant `json:"audio_formats"`
	VideoVariants []VideoVariant `json:"video_formats"`
}

// VariantHasAudio looks up a video variant by format ID and reports whether
// it already carries audio. Unknown IDs report false so the caller falls
// back to pairing with the best audio stream.
func (v *VideoInfo) VariantHasAudio(formatID string) bool {
	for _, f := range v.VideoVariants {
		if f.FormatID == formatID {
			return f.HasAudio()
		}
	}
	return false
}
