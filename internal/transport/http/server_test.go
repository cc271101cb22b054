package http

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsvc "pothole-detect/internal/app"
	"pothole-detect/internal/bootstrap"
	"pothole-detect/internal/config"
	"pothole-detect/internal/model"
	"pothole-detect/internal/storage"
	"pothole-detect/internal/transport/http/middleware"
	"pothole-detect/internal/vision"
)

type fixedPredictor struct {
	score float32
}

func (p fixedPredictor) PredictFile(context.Context, string) (model.Prediction, error) {
	return vision.Classify(p.score), nil
}

func newTestApp(t *testing.T) *bootstrap.App {
	t.Helper()
	scratch, err := storage.NewScratchStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Name = "pothole-detect"
	cfg.App.GinMode = "test"
	cfg.Upload.MaxBytes = 1 << 20

	return &bootstrap.App{
		Config:     cfg,
		Classifier: &vision.Classifier{},
		Scratch:    scratch,
		Detector:   appsvc.NewDetectService(scratch, fixedPredictor{score: 0.64}, nil, nil),
	}
}

func TestRouterDetect(t *testing.T) {
	router := NewRouter(newTestApp(t))

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	fw, err := writer.CreateFormFile("file", "road.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("raw bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set(middleware.HeaderRequestID, "abc-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"is_pothole": true, "confidence": 0.64}`, w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(middleware.HeaderRequestID))
}

func TestRouterRoutes(t *testing.T) {
	router := NewRouter(newTestApp(t))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/detect")

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/detect", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
