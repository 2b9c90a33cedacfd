package server_test

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"inkframe/internal/artifact"
	"inkframe/internal/codec"
	"inkframe/internal/freshness"
	"inkframe/internal/history"
	"inkframe/internal/palette"
	"inkframe/internal/server"
	"inkframe/internal/testsupport"
)

var storedAt = time.Unix(1700000000, 0).UTC()

type recorderStub struct {
	mu    sync.Mutex
	items []history.Delivery
	err   error
}

func (r *recorderStub) Record(_ context.Context, d history.Delivery) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.items = append(r.items, d)
	return int64(len(r.items)), nil
}

func (r *recorderStub) last(t *testing.T) history.Delivery {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		t.Fatal("expected a recorded delivery")
	}
	return r.items[len(r.items)-1]
}

type fixture struct {
	store    *artifact.Store
	recorder *recorderStub
	handler  http.Handler
}

func newFixture(t *testing.T, opts server.Options) *fixture {
	t.Helper()
	store := artifact.New(t.TempDir(), "current_image.png")
	conv, err := codec.NewConverter(codec.Options{
		Width:   800,
		Height:  480,
		Fit:     codec.FitExact,
		Dither:  codec.ModeDiffusion,
		Palette: palette.Default(),
	})
	if err != nil {
		t.Fatalf("NewConverter: %v", err)
	}
	rec := &recorderStub{}
	opts.Store = store
	opts.Converter = conv
	opts.History = rec
	srv, err := server.New(opts)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	handler, err := srv.Handler()
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	return &fixture{store: store, recorder: rec, handler: handler}
}

func (f *fixture) publish(t *testing.T, data []byte) {
	t.Helper()
	if _, err := f.store.Publish(context.Background(), bytes.NewReader(data)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := os.Chtimes(f.store.Path(), storedAt, storedAt.Add(500*time.Millisecond)); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
}

func (f *fixture) get(t *testing.T, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func TestCurrentImageMissingArtifactIs404(t *testing.T) {
	f := newFixture(t, server.Options{})
	w := f.get(t, "/api/current_image", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected error message, got %v", resp)
	}
	if got := f.recorder.last(t); got.Status != http.StatusNotFound || got.Outcome != "missing" {
		t.Fatalf("unexpected history row %+v", got)
	}
}

func TestCurrentImagePackedHeaders(t *testing.T) {
	f := newFixture(t, server.Options{})
	f.publish(t, testsupport.SolidPNG(t, 1024, 768, color.NRGBA{R: 255, A: 255}))

	w := f.get(t, "/api/current_image", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	h := w.Header()
	if h.Get("Last-Modified") != "Tue, 14 Nov 2023 22:13:20 GMT" {
		t.Fatalf("unexpected Last-Modified %q", h.Get("Last-Modified"))
	}
	if h.Get("Cache-Control") != "no-cache" {
		t.Fatalf("unexpected Cache-Control %q", h.Get("Cache-Control"))
	}
	if h.Get(freshness.HeaderWidth) != "800" || h.Get(freshness.HeaderHeight) != "480" {
		t.Fatalf("unexpected dimensions %q x %q", h.Get(freshness.HeaderWidth), h.Get(freshness.HeaderHeight))
	}
	if h.Get(freshness.HeaderLength) != "192000" || h.Get("Content-Length") != "192000" {
		t.Fatalf("unexpected lengths %q / %q", h.Get(freshness.HeaderLength), h.Get("Content-Length"))
	}
	if w.Body.Len() != 192000 {
		t.Fatalf("expected 192000 body bytes, got %d", w.Body.Len())
	}
	if h.Get(server.HeaderRequestID) == "" {
		t.Fatal("expected a request id")
	}
	// Solid red maps to index 4 in every nibble.
	for i, b := range w.Body.Bytes() {
		if b != 0x44 {
			t.Fatalf("byte %d = %#x, want 0x44", i, b)
		}
	}
	got := f.recorder.last(t)
	if got.Outcome != "fresh" || got.Bytes != 192000 || !got.ArtifactMTime.Equal(storedAt) {
		t.Fatalf("unexpected history row %+v", got)
	}
	if got.RequestID != h.Get(server.HeaderRequestID) {
		t.Fatalf("history request id %q does not match header %q", got.RequestID, h.Get(server.HeaderRequestID))
	}
}

func TestCurrentImageFreshnessLaw(t *testing.T) {
	f := newFixture(t, server.Options{})
	f.publish(t, testsupport.SolidPNG(t, 8, 8, color.White))

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusOK},
		{"equal token", storedAt.Format(http.TimeFormat), http.StatusNotModified},
		{"later token", storedAt.Add(time.Hour).Format(http.TimeFormat), http.StatusNotModified},
		{"earlier token", storedAt.Add(-time.Second).Format(http.TimeFormat), http.StatusOK},
		{"malformed token", "not-a-date", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.token != "" {
				header.Set("If-Modified-Since", tt.token)
			}
			w := f.get(t, "/api/current_image", header)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, w.Code)
			}
			if w.Code == http.StatusNotModified {
				if w.Body.Len() != 0 {
					t.Fatalf("304 must not carry a body, got %d bytes", w.Body.Len())
				}
				if got := f.recorder.last(t); got.Outcome != "not_modified" {
					t.Fatalf("unexpected outcome %q", got.Outcome)
				}
			}
			if w.Header().Get("Last-Modified") != storedAt.Format(http.TimeFormat) {
				t.Fatalf("unexpected Last-Modified %q", w.Header().Get("Last-Modified"))
			}
		})
	}
}

func TestCurrentImagePassthroughReturnsStoredBytes(t *testing.T) {
	f := newFixture(t, server.Options{})
	data := testsupport.SolidPNG(t, 3, 2, color.Black)
	f.publish(t, data)

	w := f.get(t, "/api/current_image?format=image", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), data) {
		t.Fatal("passthrough body differs from stored artifact")
	}
	if w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
	if w.Header().Get(freshness.HeaderWidth) != "" {
		t.Fatal("passthrough must not carry display headers")
	}
	if w.Header().Get("Content-Length") != strconv.Itoa(len(data)) {
		t.Fatalf("unexpected Content-Length %q", w.Header().Get("Content-Length"))
	}
}

func TestCurrentImageBMP(t *testing.T) {
	f := newFixture(t, server.Options{DefaultFormat: server.FormatBMP})
	f.publish(t, testsupport.SolidPNG(t, 16, 8, color.NRGBA{B: 255, A: 255}))

	w := f.get(t, "/api/current_image", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Content-Type") != "image/bmp" {
		t.Fatalf("unexpected content type %q", w.Header().Get("Content-Type"))
	}
	img, format, err := codec.Decode(w.Body.Bytes())
	if err != nil || format != "bmp" {
		t.Fatalf("decode bmp: %v (%s)", err, format)
	}
	if b := img.Bounds(); b.Dx() != 800 || b.Dy() != 480 {
		t.Fatalf("unexpected bmp size %v", b)
	}
}

func TestCurrentImageUnknownFormatIs400(t *testing.T) {
	f := newFixture(t, server.Options{})
	f.publish(t, testsupport.SolidPNG(t, 2, 2, color.White))
	w := f.get(t, "/api/current_image?format=jpeg2000", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCurrentImageCorruptSourceIs500(t *testing.T) {
	f := newFixture(t, server.Options{})
	f.publish(t, []byte("definitely not an image"))

	w := f.get(t, "/api/current_image", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] == "" {
		t.Fatal("expected descriptive error")
	}
	if w.Header().Get(freshness.HeaderLength) != "" {
		t.Fatal("failed conversion must not emit display headers")
	}

	// The corrupt artifact still honours conditional requests.
	header := http.Header{}
	header.Set("If-Modified-Since", storedAt.Format(http.TimeFormat))
	if w := f.get(t, "/api/current_image", header); w.Code != http.StatusNotModified {
		t.Fatalf("expected 304 for unchanged corrupt artifact, got %d", w.Code)
	}
}

func TestCurrentImageOversizedSourceIs500(t *testing.T) {
	f := newFixture(t, server.Options{})
	f.publish(t, testsupport.PNGHeader(20000, 20000))

	w := f.get(t, "/api/current_image", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp["error"], "limit") {
		t.Fatalf("expected pixel limit in error, got %q", resp["error"])
	}
	if got := f.recorder.last(t); got.Outcome != "failed" || !strings.Contains(got.Error, "20000x20000") {
		t.Fatalf("unexpected history row %+v", got)
	}

	f.publish(t, testsupport.SolidPNG(t, 4, 4, color.White))
	if w := f.get(t, "/api/current_image", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 after republishing a valid image, got %d", w.Code)
	}
}

func TestArtifactErrorsLogRequestID(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := newFixture(t, server.Options{Logger: logger})

	missing := http.Header{}
	missing.Set(server.HeaderRequestID, "frame-7")
	if w := f.get(t, "/api/current_image", missing); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	if err := os.MkdirAll(f.store.Path(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	unreadable := http.Header{}
	unreadable.Set(server.HeaderRequestID, "frame-8")
	if w := f.get(t, "/api/current_image", unreadable); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	want := map[string]string{
		"no source image published": "frame-7",
		"source image unreadable":   "frame-8",
	}
	seen := map[string]bool{}
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		msg, _ := rec["msg"].(string)
		if id, ok := want[msg]; ok {
			if rec["request_id"] != id {
				t.Fatalf("%q logged with request_id %v, want %s", msg, rec["request_id"], id)
			}
			seen[msg] = true
		}
	}
	for msg := range want {
		if !seen[msg] {
			t.Fatalf("expected log line %q in %s", msg, logs.String())
		}
	}
}

func TestHistoryFailureDoesNotAffectResponse(t *testing.T) {
	f := newFixture(t, server.Options{})
	f.recorder.err = io.ErrClosedPipe
	f.publish(t, testsupport.SolidPNG(t, 2, 2, color.White))
	if w := f.get(t, "/api/current_image", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t, server.Options{})
	header := http.Header{}
	header.Set(server.HeaderRequestID, "device-42")
	w := f.get(t, "/api/palette", header)
	if w.Header().Get(server.HeaderRequestID) != "device-42" {
		t.Fatalf("expected echoed request id, got %q", w.Header().Get(server.HeaderRequestID))
	}
}

func TestAuthRequiresBearerToken(t *testing.T) {
	f := newFixture(t, server.Options{APIToken: "s3cret"})
	f.publish(t, testsupport.SolidPNG(t, 2, 2, color.White))

	if w := f.get(t, "/api/current_image", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	bad := http.Header{}
	bad.Set("Authorization", "Bearer wrong")
	if w := f.get(t, "/api/current_image", bad); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", w.Code)
	}
	good := http.Header{}
	good.Set("Authorization", "Bearer s3cret")
	if w := f.get(t, "/api/current_image", good); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func TestCompressionKeepsDisplayLength(t *testing.T) {
	f := newFixture(t, server.Options{Compression: true})
	f.publish(t, testsupport.SolidPNG(t, 2, 2, color.White))

	header := http.Header{}
	header.Set("Accept-Encoding", "gzip")
	w := f.get(t, "/api/current_image", header)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip encoding, got %q", w.Header().Get("Content-Encoding"))
	}
	if w.Header().Get(freshness.HeaderLength) != "192000" {
		t.Fatalf("display length should describe the packed buffer, got %q", w.Header().Get(freshness.HeaderLength))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	body, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read gzip: %v", err)
	}
	if len(body) != 192000 {
		t.Fatalf("expected 192000 decompressed bytes, got %d", len(body))
	}
}

func TestStatusAndPalette(t *testing.T) {
	f := newFixture(t, server.Options{})

	w := f.get(t, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var status server.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Artifact.Present {
		t.Fatal("artifact should be absent before publish")
	}
	if status.Device.PackedBytes != 192000 || status.Device.Fit != "exact" || status.Device.Dither != "diffusion" {
		t.Fatalf("unexpected device status %+v", status.Device)
	}

	f.publish(t, testsupport.SolidPNG(t, 2, 2, color.White))
	w = f.get(t, "/api/status", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Artifact.Present || status.Artifact.LastModified != storedAt.Format(http.TimeFormat) {
		t.Fatalf("unexpected artifact status %+v", status.Artifact)
	}

	w = f.get(t, "/api/palette", nil)
	var pal server.PaletteResponse
	if err := json.Unmarshal(w.Body.Bytes(), &pal); err != nil {
		t.Fatalf("decode palette: %v", err)
	}
	if pal.BitsPerPixel != 4 || len(pal.Colors) != 6 || pal.Colors[4].Name != "red" || pal.Colors[4].Hex != "#ff0000" {
		t.Fatalf("unexpected palette %+v", pal)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, server.Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/current_image", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
