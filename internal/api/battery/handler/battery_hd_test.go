package batteryHandler

import (
	"BatteryDetect/internal/api/battery"
	batteryService "BatteryDetect/internal/api/battery/service"
	"BatteryDetect/internal/entity"
	"BatteryDetect/internal/locale"
	"BatteryDetect/internal/middleware"
	"BatteryDetect/pkg/batteryapi"
	"BatteryDetect/pkg/handlerUtil"
	"BatteryDetect/pkg/redis"
	"BatteryDetect/pkg/utils"
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)

func TestMain(m *testing.M) {
	_ = os.Setenv("APP_ENV", "test")
	_ = os.Setenv("LOG_LEVEL", "panic")
	os.Exit(m.Run())
}

type stubAPI struct {
	analyzeErr error
	statusErr  error
}

func (s *stubAPI) Analyze(context.Context, string, string, []byte) (*entity.DetectionResult, error) {
	if s.analyzeErr != nil {
		return nil, s.analyzeErr
	}
	return &entity.DetectionResult{
		Success:        true,
		BatteryCount:   2,
		ResultFilename: "result.jpg",
		Statistics:     entity.DetectionStatistics{Total: 2, AvgConfidence: 80, MaxConfidence: 90, HighConfCount: 2},
		Detections: []entity.Detection{
			{ID: 1, Confidence: 90, BBox: entity.BoundingBox{X1: 1, Y1: 2, X2: 11, Y2: 22, Width: 10, Height: 20}},
			{ID: 2, Confidence: 70},
		},
	}, nil
}

func (s *stubAPI) Status(context.Context) (*entity.ServerStatus, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &entity.ServerStatus{Status: entity.ServerStatusOnline, ModelLoaded: true}, nil
}

func (s *stubAPI) Image(_ context.Context, filename string) ([]byte, string, error) {
	return []byte("jpeg:" + filename), "image/jpeg", nil
}

func (s *stubAPI) ImageURL(filename string) string { return "http://api.test/api/images/" + filename }
func (s *stubAPI) BaseURL() string                 { return "http://api.test/api" }

type client struct {
	t      *testing.T
	app    *fiber.App
	cookie *http.Cookie
}

func newClient(t *testing.T, api batteryapi.IBatteryAPI, imageProxy bool) *client {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := redis.NewWithClient(rdb, time.Hour, "test")

	text, err := locale.Load("en")
	require.NoError(t, err)

	u := utils.New(1 << 20)
	mw := middleware.New(logger, u, middleware.Options{
		SessionSecret: "0123456789abcdef0123",
		SessionTTL:    time.Hour,
		RateLimit:     100,
		RateBurst:     100,
	})
	svc := batteryService.NewBatteryService(logger, store, api, batteryService.Options{
		AnalyzeTimeout: time.Second,
		StatusTimeout:  time.Second,
		ImageProxy:     imageProxy,
	})

	app := fiber.New(fiber.Config{ErrorHandler: handlerUtil.New(logger).FiberErrorHandler})
	app.Use(mw.NewRequestIDMiddleware())
	app.Use(mw.NewSessionMiddleware)
	New(logger, validator.New(), mw, svc, u, text, time.Second).Start(app)

	return &client{t: t, app: app}
}

func (c *client) do(req *http.Request) *http.Response {
	c.t.Helper()
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	resp, err := c.app.Test(req, -1)
	require.NoError(c.t, err)
	for _, ck := range resp.Cookies() {
		if ck.Name == middleware.SessionCookie {
			c.cookie = ck
		}
	}
	return resp
}

func (c *client) json(method, target string, body io.Reader, contentType string) (int, map[string]any) {
	c.t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.Header.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if contentType != "" {
		req.Header.Set(fiber.HeaderContentType, contentType)
	}
	resp := c.do(req)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(c.t, jsoniter.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (c *client) upload(name string, data []byte) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", name)
	require.NoError(c.t, err)
	_, err = part.Write(data)
	require.NoError(c.t, err)
	require.NoError(c.t, w.Close())
	return c.json(http.MethodPost, "/select", &buf, w.FormDataContentType())
}

func TestIndexRendersHTMLAndStartsSession(t *testing.T) {
	c := newClient(t, &stubAPI{}, false)

	resp := c.do(httptest.NewRequest(http.MethodGet, "/", nil))
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentType), "text/html")
	require.NotNil(t, c.cookie)
	assert.True(t, c.cookie.HttpOnly)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `id="uploadSection"`)
	assert.Contains(t, string(body), `id="analyzeBtn" type="submit" disabled`)
}

func TestIndexJSONView(t *testing.T) {
	c := newClient(t, &stubAPI{}, false)

	status, view := c.json(http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "idle", view["view"])
	assert.Equal(t, true, view["upload_visible"])
	assert.Equal(t, true, view["analyze_disabled"])
}

func TestSessionSurvivesRequests(t *testing.T) {
	c := newClient(t, &stubAPI{}, false)

	status, _ := c.upload("cells.png", pngBytes)
	require.Equal(t, http.StatusOK, status)
	first := c.cookie.Value

	status, view := c.json(http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, view["file_selected"])
	assert.Equal(t, first, c.cookie.Value)
}

func TestTamperedCookieStartsFreshSession(t *testing.T) {
	c := newClient(t, &stubAPI{}, false)

	_, _ = c.upload("cells.png", pngBytes)
	c.cookie = &http.Cookie{Name: middleware.SessionCookie, Value: c.cookie.Value + "x"}

	status, view := c.json(http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, view["file_selected"])
}

func TestSelectRejectsNonImage(t *testing.T) {
	c := newClient(t, &stubAPI{}, false)

	status, view := c.upload("notes.txt", []byte("just some text"))
	require.Equal(t, http.StatusUnsupportedMediaType, status)
	assert.NotEmpty(t, view["alert"])
	assert.Equal(t, false, view["file_selected"])
}

func TestSelectWithoutFile(t *testing.T) {
	c := newClient(t, &stubAPI{}, false)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("other", "value"))
	require.NoError(t, w.Close())

	status, view := c.json(http.MethodPost, "/select", &buf, w.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, view["alert"])
}

func TestSelectTooLarge(t *testing.T) {
	c := newClient(t, &stubAPI{}, false)

	status, view := c.upload("huge.png", append(pngBytes, make([]byte, 1<<20)...))
	require.Equal(t, http.StatusRequestEntityTooLarge, status)
	assert.NotEmpty(t, view["alert"])
}

func TestAnalyzeWithoutSelection(t *testing.T) {
	c := newClient(t, &stubAPI{}, false)

	status, view := c.json(http.MethodPost, "/analyze", nil, "")
	require.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "idle", view["view"])
	assert.NotEmpty(t, view["alert"])
}

func TestSelectAnalyzeReset(t *testing.T) {
	c := newClient(t, &stubAPI{}, false)

	status, view := c.upload("cells.png", pngBytes)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, view["analyze_disabled"])

	status, view = c.json(http.MethodPost, "/analyze", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "results", view["view"])
	assert.Equal(t, true, view["reset_visible"])
	assert.Equal(t, "http://api.test/api/images/result.jpg", view["result_image_url"])
	require.Len(t, view["detections"], 2)

	status, view = c.upload("again.png", pngBytes)
	require.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "results", view["view"])

	status, view = c.json(http.MethodPost, "/reset", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "idle", view["view"])
	assert.Equal(t, false, view["file_selected"])
}

func TestAnalyzeFailureShowsAlert(t *testing.T) {
	c := newClient(t, &stubAPI{analyzeErr: &batteryapi.RemoteError{Message: "model not loaded"}}, false)

	_, _ = c.upload("cells.png", pngBytes)

	status, view := c.json(http.MethodPost, "/analyze", nil, "")
	require.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "idle", view["view"])
	assert.Contains(t, view["alert"], "model not loaded")
	assert.Equal(t, false, view["file_selected"])
}

func TestStatus(t *testing.T) {
	c := newClient(t, &stubAPI{}, false)

	status, body := c.json(http.MethodGet, "/status", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["reachable"])
	assert.Equal(t, "http://api.test/api", body["api_base_url"])

	down := newClient(t, &stubAPI{statusErr: batteryapi.ErrStatusUnavailable}, false)
	status, body = down.json(http.MethodGet, "/status", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["reachable"])

	_, view := down.json(http.MethodGet, "/", nil, "")
	assert.Contains(t, view["backend_warning"], "http://api.test/api")
}

func TestImageProxy(t *testing.T) {
	direct := newClient(t, &stubAPI{}, false)
	status, body := direct.json(http.MethodGet, "/images/result.jpg", nil, "")
	require.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, battery.ErrImageProxyDisabled.Error(), body["error"])

	proxied := newClient(t, &stubAPI{}, true)
	resp := proxied.do(httptest.NewRequest(http.MethodGet, "/images/result.jpg", nil))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get(fiber.HeaderContentType))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "jpeg:result.jpg", string(data))
}
