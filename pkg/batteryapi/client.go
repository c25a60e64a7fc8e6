package batteryapi

import (
	"BatteryDetect/internal/entity"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	imageField   = "image"
	maxBodyBytes = 32 << 20
)

// RemoteError is a well-formed analyze response with success=false.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return "detection api reported failure"
	}
	return e.Message
}

var (
	ErrStatusUnavailable = errors.New("status endpoint unavailable")
	ErrResponseTooLarge  = errors.New("response body exceeds limit")
)

type IBatteryAPI interface {
	Analyze(ctx context.Context, filename, contentType string, image []byte) (*entity.DetectionResult, error)
	Status(ctx context.Context) (*entity.ServerStatus, error)
	Image(ctx context.Context, filename string) ([]byte, string, error)
	ImageURL(filename string) string
	BaseURL() string
}

type client struct {
	baseURL      string
	httpClient   *http.Client
	log          *logrus.Logger
	maxBodyBytes int64
}

func New(baseURL string, httpClient *http.Client, log *logrus.Logger) IBatteryAPI {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   httpClient,
		log:          log,
		maxBodyBytes: maxBodyBytes,
	}
}

func (c *client) BaseURL() string {
	return c.baseURL
}

func (c *client) ImageURL(filename string) string {
	return c.baseURL + "/images/" + url.PathEscape(filename)
}

// Analyze posts the image once. The body is decoded regardless of the HTTP
// status, since the API reports failures as {"success": false, "error": ...}.
func (c *client) Analyze(ctx context.Context, filename, contentType string, image []byte) (*entity.DetectionResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, imageField, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("copy image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	c.log.WithFields(logrus.Fields{
		"filename": filename,
		"size":     len(image),
	}).Debug("Sending image to detection api")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := c.readBody(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var result entity.DetectionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}

	if !result.Success {
		return nil, &RemoteError{Message: result.Error}
	}

	if result.Detections == nil {
		result.Detections = []entity.Detection{}
	}

	return &result, nil
}

func (c *client) Status(ctx context.Context) (*entity.ServerStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStatusUnavailable, err)
	}
	defer resp.Body.Close()

	var status entity.ServerStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.maxBodyBytes)).Decode(&status); err != nil {
		return nil, fmt.Errorf("%w: decode response (status %d): %v", ErrStatusUnavailable, resp.StatusCode, err)
	}

	return &status, nil
}

func (c *client) Image(ctx context.Context, filename string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ImageURL(filename), nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("image %q: unexpected status %d", filename, resp.StatusCode)
	}

	data, err := c.readBody(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read image %q: %w", filename, err)
	}

	return data, resp.Header.Get("Content-Type"), nil
}

// readBody reads at most one byte past the limit so an oversized body fails
// instead of coming back cut short.
func (c *client) readBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, c.maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxBodyBytes {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}
