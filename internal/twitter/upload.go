package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/chirpwire/chirpwire/internal/core"
)

const (
	// uploadSegmentSize is the APPEND chunk size.
	uploadSegmentSize = 4 * 1024 * 1024
	// maxUploadBytes is the client-side payload ceiling, checked before
	// INIT so a doomed upload never starts.
	maxUploadBytes = 15 * 1024 * 1024
)

// Uploader drives the three-phase chunked upload protocol:
// INIT declares the payload, APPEND streams fixed-size segments, and
// FINALIZE completes the session. Any phase failure abandons the
// session; there is no partial resume, a retry restarts from INIT.
type Uploader struct {
	UploadURL  string
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// Upload transfers size bytes from r and returns the media id assigned
// by the server.
func (u *Uploader) Upload(ctx context.Context, r io.Reader, size int64, mediaType string) (string, error) {
	if u == nil || strings.TrimSpace(u.UploadURL) == "" {
		return "", fmt.Errorf("upload url is not configured")
	}
	if size <= 0 {
		return "", fmt.Errorf("media payload is empty")
	}
	if size > maxUploadBytes {
		return "", fmt.Errorf("media file exceeds maximum size of %d bytes", maxUploadBytes)
	}

	session, err := u.initSession(ctx, size, mediaType)
	if err != nil {
		return "", err
	}

	if err := u.appendSegments(ctx, session, r); err != nil {
		return "", err
	}

	if err := u.finalize(ctx, session); err != nil {
		return "", err
	}

	if u.Logger != nil {
		u.Logger.Debug("media upload complete",
			zap.String("media_id", session.MediaID),
			zap.Int64("bytes", session.BytesSent),
			zap.Int("segments", session.SegmentIndex))
	}
	return session.MediaID, nil
}

// initSession runs the INIT phase. The server must answer 202.
func (u *Uploader) initSession(ctx context.Context, size int64, mediaType string) (*core.UploadSession, error) {
	form := url.Values{}
	form.Set("command", "INIT")
	form.Set("total_bytes", strconv.FormatInt(size, 10))
	form.Set("media_type", mediaType)

	status, body, err := u.postForm(ctx, form)
	if err != nil {
		return nil, &UploadError{Phase: UploadPhaseInit, Err: err}
	}
	if status != http.StatusAccepted {
		return nil, &UploadError{Phase: UploadPhaseInit, StatusCode: status, Message: strings.TrimSpace(string(body))}
	}

	var result struct {
		MediaIDString string `json:"media_id_string"`
		MediaID       int64  `json:"media_id"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &UploadError{Phase: UploadPhaseInit, Err: fmt.Errorf("decode init response: %w", err)}
	}

	mediaID := result.MediaIDString
	if mediaID == "" && result.MediaID != 0 {
		mediaID = strconv.FormatInt(result.MediaID, 10)
	}
	if mediaID == "" {
		return nil, &UploadError{Phase: UploadPhaseInit, Err: fmt.Errorf("init response has no media id")}
	}

	return &core.UploadSession{MediaID: mediaID, TotalBytes: size}, nil
}

// appendSegments runs the APPEND phase: fixed-size segments with a
// monotonically increasing segment index starting at zero. The server
// must answer 204 for every segment.
func (u *Uploader) appendSegments(ctx context.Context, session *core.UploadSession, r io.Reader) error {
	buf := make([]byte, uploadSegmentSize)
	for session.BytesSent < session.TotalBytes {
		n, err := io.ReadFull(r, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			// Short read on the final segment is expected.
			err = nil
		}
		if err != nil {
			return &UploadError{Phase: UploadPhaseAppend, Err: fmt.Errorf("read media segment: %w", err)}
		}
		if n == 0 {
			return &UploadError{Phase: UploadPhaseAppend, Err: fmt.Errorf("media source ended after %d of %d bytes", session.BytesSent, session.TotalBytes)}
		}

		status, body, err := u.postSegment(ctx, session.MediaID, session.SegmentIndex, buf[:n])
		if err != nil {
			return &UploadError{Phase: UploadPhaseAppend, Err: err}
		}
		if status != http.StatusNoContent {
			return &UploadError{Phase: UploadPhaseAppend, StatusCode: status, Message: strings.TrimSpace(string(body))}
		}

		session.SegmentIndex++
		session.BytesSent += int64(n)
	}
	return nil
}

// finalize runs the FINALIZE phase. The server must answer 201.
func (u *Uploader) finalize(ctx context.Context, session *core.UploadSession) error {
	form := url.Values{}
	form.Set("command", "FINALIZE")
	form.Set("media_id", session.MediaID)

	status, body, err := u.postForm(ctx, form)
	if err != nil {
		return &UploadError{Phase: UploadPhaseFinalize, Err: err}
	}
	if status != http.StatusCreated {
		return &UploadError{Phase: UploadPhaseFinalize, StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	return nil
}

func (u *Uploader) postForm(ctx context.Context, form url.Values) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.UploadURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return u.do(req)
}

func (u *Uploader) postSegment(ctx context.Context, mediaID string, segmentIndex int, segment []byte) (int, []byte, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("command", "APPEND"); err != nil {
		return 0, nil, fmt.Errorf("encode segment: %w", err)
	}
	if err := writer.WriteField("media_id", mediaID); err != nil {
		return 0, nil, fmt.Errorf("encode segment: %w", err)
	}
	if err := writer.WriteField("segment_index", strconv.Itoa(segmentIndex)); err != nil {
		return 0, nil, fmt.Errorf("encode segment: %w", err)
	}
	part, err := writer.CreateFormFile("media", "media")
	if err != nil {
		return 0, nil, fmt.Errorf("encode segment: %w", err)
	}
	if _, err := part.Write(segment); err != nil {
		return 0, nil, fmt.Errorf("encode segment: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, nil, fmt.Errorf("encode segment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.UploadURL, &body)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return u.do(req)
}

func (u *Uploader) do(req *http.Request) (int, []byte, error) {
	client := u.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Err: err}
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &TransportError{Err: err}
	}
	return resp.StatusCode, body, nil
}
