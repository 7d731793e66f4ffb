package client

import "time"

// UploadClipRequest is the multipart payload sent to POST /api/clips.
type UploadClipRequest struct {
	VideoData          []byte
	FileName           string
	MimeType           string
	Duration           time.Duration
	HasMotion          bool
	Category           string
	RecordingTimestamp time.Time
}

// UploadRequest describes a persisted clip to upload.
type UploadRequest struct {
	Path       string
	Category   string
	RecordedAt time.Time
	Duration   time.Duration
}
