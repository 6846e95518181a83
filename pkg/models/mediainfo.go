package models

// MediaInfo holds structural metadata extracted from a media file.
// When the probing tool is unavailable only the filesystem-derived fields
// (Size, MIMEType) are filled in and Probed is false; callers treat the
// remaining zero values as unknown, not as errors.
type MediaInfo struct {
	Container string  `json:"container,omitempty"`
	Codec     string  `json:"codec,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Bitrate   int64   `json:"bitrate,omitempty"`
	Size      int64   `json:"size"`
	MIMEType  string  `json:"mime_type,omitempty"`
	Probed    bool    `json:"probed"`
}
