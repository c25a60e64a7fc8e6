package batteryapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (IBatteryAPI, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(srv.URL+"/api/", srv.Client(), logger), srv
}

const successBody = `{
  "success": true,
  "battery_count": 3,
  "original_filename": "orig_1.jpg",
  "result_filename": "result_1.jpg",
  "statistics": {"total": 3, "avg_confidence": 65.8, "max_confidence": 72.4, "high_conf_count": 1},
  "detections": [
    {"id": 1, "confidence": 72.4, "bbox": {"x1": 10, "y1": 20, "x2": 110, "y2": 220, "width": 100, "height": 200}},
    {"id": 2, "confidence": 55.0, "bbox": {"x1": 5, "y1": 6, "x2": 7, "y2": 8, "width": 2, "height": 2}},
    {"id": 3, "confidence": 49.9, "bbox": {"x1": 0, "y1": 0, "x2": 1, "y2": 1, "width": 1, "height": 1}}
  ]
}`

func TestAnalyzeSendsMultipartImage(t *testing.T) {
	var calls int
	api, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/analyze", r.URL.Path)

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "cells.png", header.Filename)
		require.Equal(t, "image/png", header.Header.Get("Content-Type"))
		data, _ := io.ReadAll(file)
		require.Equal(t, []byte("pngbytes"), data)

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, successBody)
	})

	result, err := api.Analyze(context.Background(), "cells.png", "image/png", []byte("pngbytes"))
	require.NoError(t, err)
	require.Equal(t, 1, calls)
	require.Equal(t, 3, result.BatteryCount)
	require.Equal(t, "result_1.jpg", result.ResultFilename)
	require.Len(t, result.Detections, 3)
	require.Equal(t, []int{1, 2, 3}, []int{result.Detections[0].ID, result.Detections[1].ID, result.Detections[2].ID})
	require.InDelta(t, 72.4, result.Statistics.MaxConfidence, 1e-9)
	require.Equal(t, 200.0, result.Detections[0].BBox.Height)
}

func TestAnalyzeRemoteFailureKeepsMessage(t *testing.T) {
	api, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"success": false, "error": "Görüntü okunamadı"}`)
	})

	_, err := api.Analyze(context.Background(), "a.jpg", "image/jpeg", []byte("x"))
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, "Görüntü okunamadı", remote.Message)
}

func TestAnalyzeRemoteFailureWithoutMessage(t *testing.T) {
	api, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": false}`)
	})

	_, err := api.Analyze(context.Background(), "a.jpg", "image/jpeg", []byte("x"))
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	require.Empty(t, remote.Message)
}

func TestAnalyzeNonJSONResponse(t *testing.T) {
	api, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := api.Analyze(context.Background(), "a.jpg", "image/jpeg", []byte("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
	var remote *RemoteError
	require.False(t, errors.As(err, &remote))
}

func TestAnalyzeTransportFailure(t *testing.T) {
	api, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := api.Analyze(context.Background(), "a.jpg", "image/jpeg", []byte("x"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "send request")
}

func TestAnalyzeEmptyDetections(t *testing.T) {
	api, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"success": true, "battery_count": 0, "statistics": {"total": 0}}`)
	})

	result, err := api.Analyze(context.Background(), "a.jpg", "image/jpeg", []byte("x"))
	require.NoError(t, err)
	require.NotNil(t, result.Detections)
	require.Empty(t, result.Detections)
}

func TestStatus(t *testing.T) {
	api, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/status", r.URL.Path)
		_, _ = io.WriteString(w, `{"status": "online", "model_loaded": true}`)
	})

	status, err := api.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, "online", status.Status)
	require.True(t, status.ModelLoaded)
}

func TestStatusUnreachable(t *testing.T) {
	api, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	srv.Close()

	_, err := api.Status(context.Background())
	require.ErrorIs(t, err, ErrStatusUnavailable)
}

func TestImage(t *testing.T) {
	api, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/images/result_1.jpg" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpegdata"))
	})

	data, ct, err := api.Image(context.Background(), "result_1.jpg")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", ct)
	require.Equal(t, []byte("jpegdata"), data)

	_, _, err = api.Image(context.Background(), "missing.jpg")
	require.Error(t, err)
}

func TestImageOverLimitFails(t *testing.T) {
	api, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(bytes.Repeat([]byte{0xff}, 2048))
	})
	api.(*client).maxBodyBytes = 1024

	data, _, err := api.Image(context.Background(), "orig_1.jpg")
	require.ErrorIs(t, err, ErrResponseTooLarge)
	require.Nil(t, data)

	api.(*client).maxBodyBytes = 2048
	data, ct, err := api.Image(context.Background(), "orig_1.jpg")
	require.NoError(t, err)
	require.Equal(t, "image/jpeg", ct)
	require.Len(t, data, 2048)
}

func TestAnalyzeOverLimitFails(t *testing.T) {
	api, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(successBody))
	})
	api.(*client).maxBodyBytes = 64

	_, err := api.Analyze(context.Background(), "cells.jpg", "image/jpeg", []byte("img"))
	require.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestImageURL(t *testing.T) {
	api := New("http://localhost:5000/api/", nil, logrus.New())
	require.Equal(t, "http://localhost:5000/api", api.BaseURL())
	require.Equal(t, "http://localhost:5000/api/images/a%20b.jpg", api.ImageURL("a b.jpg"))
}
