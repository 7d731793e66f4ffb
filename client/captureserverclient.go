package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/yeti47/cryospy/client/motion-client/common"
)

// CaptureServerClient handles communication with the capture server
type CaptureServerClient interface {
	UploadClip(ctx context.Context, request UploadClipRequest) error
}

// captureServerClient implements CaptureServerClient using HTTP
type captureServerClient struct {
	serverURL    string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

// NewCaptureServerClient creates a new HTTP client service
func NewCaptureServerClient(serverURL, clientID, clientSecret string, timeout time.Duration) CaptureServerClient {
	return &captureServerClient{
		serverURL:    serverURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// UploadClip uploads a video clip to the server. Failures are returned as
// *UploadServerError: 4xx responses are not recoverable, transport errors
// and 5xx responses are.
func (s *captureServerClient) UploadClip(ctx context.Context, request UploadClipRequest) error {
	url := fmt.Sprintf("%s/api/clips", s.serverURL)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"timestamp", request.RecordingTimestamp.UTC().Format(time.RFC3339)},
		{"duration", fmt.Sprintf("%.1f", request.Duration.Seconds())},
		{"has_motion", fmt.Sprintf("%t", request.HasMotion)},
	}
	if request.Category != "" {
		fields = append(fields, [2]string{"category", request.Category})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return fmt.Errorf("failed to write %s field: %w", field[0], err)
		}
	}

	fileName := request.FileName
	if fileName == "" {
		fileName = "clip.mp4"
	}
	part, err := writer.CreateFormFile("video", fileName)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(request.VideoData); err != nil {
		return fmt.Errorf("failed to write video data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	auth := base64.StdEncoding.EncodeToString([]byte(s.clientID + ":" + s.clientSecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return NewRecoverableUploadError(0, fmt.Errorf("failed to make request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)
	statusErr := fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return NewNonRecoverableUploadError(resp.StatusCode, statusErr)
	}
	return NewRecoverableUploadError(resp.StatusCode, statusErr)
}

// CaptureServerUploader uploads persisted clips through a CaptureServerClient.
type CaptureServerUploader struct {
	client CaptureServerClient
	logger common.Logger
}

func NewCaptureServerUploader(client CaptureServerClient, logger common.Logger) *CaptureServerUploader {
	if logger == nil {
		logger = common.NopLogger
	}
	return &CaptureServerUploader{client: client, logger: logger}
}

func (u *CaptureServerUploader) Upload(ctx context.Context, request UploadRequest) error {
	videoData, err := os.ReadFile(request.Path)
	if err != nil {
		return fmt.Errorf("failed to read clip %s: %w", request.Path, err)
	}

	err = u.client.UploadClip(ctx, UploadClipRequest{
		VideoData:          videoData,
		FileName:           filepath.Base(request.Path),
		MimeType:           common.VideoFormatToMimeType(filepath.Ext(request.Path)),
		Duration:           request.Duration,
		HasMotion:          true,
		Category:           request.Category,
		RecordingTimestamp: request.RecordedAt,
	})
	if err != nil {
		return err
	}

	u.logger.Info("Uploaded clip", "path", request.Path, "category", request.Category, "bytes", len(videoData))
	return nil
}
