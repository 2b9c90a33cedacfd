package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"inkframe/internal/artifact"
	"inkframe/internal/codec"
	"inkframe/internal/freshness"
	"inkframe/internal/history"
	"inkframe/internal/logging"
	"inkframe/internal/palette"
)

type delivery struct {
	format  string
	outcome string
	status  int
	bytes   int
	mtime   time.Time
	err     error
}

func (s *Server) handleCurrentImage(w http.ResponseWriter, r *http.Request) {
	start := s.now()
	log := logging.WithContext(r.Context(), s.logger)
	if !allowRead(w, r, log) {
		return
	}

	d := delivery{format: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("format")))}
	if d.format == "" {
		d.format = s.defaultFormat
	}
	defer func() { s.finish(r, d, s.now().Sub(start)) }()

	if !validFormat(d.format) {
		d.outcome, d.status = "rejected", http.StatusBadRequest
		d.err = fmt.Errorf("unknown format %q", d.format)
		writeError(w, log, d.status, fmt.Sprintf("unknown format %q (want packed, image, or bmp)", d.format))
		return
	}

	info, err := s.store.Stat()
	if err != nil {
		s.failArtifact(w, log, &d, err)
		return
	}
	d.mtime = freshness.Truncate(info.ModTime)

	decision := freshness.DecideRequest(info.ModTime, r)
	if decision.TokenErr != nil {
		log.Debug("ignoring unparseable freshness token",
			logging.String("token", r.Header.Get("If-Modified-Since")),
			logging.Error(decision.TokenErr),
			logging.String(logging.FieldEventType, "freshness_token_invalid"),
		)
	}
	if decision.Outcome == freshness.NotModified {
		d.outcome, d.status = decision.Outcome.String(), http.StatusNotModified
		freshness.ApplyNotModified(w.Header(), info.ModTime)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, err := s.store.Read()
	if err != nil {
		s.failArtifact(w, log, &d, err)
		return
	}

	body, meta, err := s.render(d.format, data)
	if err != nil {
		d.outcome, d.status, d.err = "failed", http.StatusInternalServerError, err
		writeError(w, log, d.status, err.Error())
		return
	}
	meta.ModTime = info.ModTime

	d.outcome, d.status, d.bytes = decision.Outcome.String(), http.StatusOK, len(body)
	freshness.Apply(w.Header(), meta)
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(body); err != nil {
		log.Debug("client went away mid-response", logging.Error(err))
	}
}

// render produces the complete response body before anything is written.
func (s *Server) render(format string, data []byte) ([]byte, freshness.Meta, error) {
	if format == FormatImage {
		return data, freshness.Meta{ContentType: http.DetectContentType(data), Length: len(data)}, nil
	}

	img, _, err := s.conv.Decode(data)
	if err != nil {
		return nil, freshness.Meta{}, fmt.Errorf("source image could not be decoded: %w", err)
	}

	switch format {
	case FormatBMP:
		raster, err := s.conv.Quantize(img, false)
		if err != nil {
			return nil, freshness.Meta{}, fmt.Errorf("conversion failed: %w", err)
		}
		body, err := codec.BMPBytes(raster, s.conv.Options().Palette)
		if err != nil {
			return nil, freshness.Meta{}, fmt.Errorf("bmp encoding failed: %w", err)
		}
		return body, freshness.Meta{ContentType: "image/bmp", Length: len(body)}, nil
	default:
		res, err := s.conv.Convert(img)
		if err != nil {
			return nil, freshness.Meta{}, fmt.Errorf("conversion failed: %w", err)
		}
		return res.Packed, freshness.Meta{
			ContentType: "application/octet-stream",
			Length:      len(res.Packed),
			Width:       res.Width,
			Height:      res.Height,
		}, nil
	}
}

func (s *Server) failArtifact(w http.ResponseWriter, log *slog.Logger, d *delivery, err error) {
	d.err = err
	if errors.Is(err, artifact.ErrNotFound) {
		d.outcome, d.status = "missing", http.StatusNotFound
		log.Debug("no source image published", logging.String("path", s.store.Path()))
		writeError(w, log, d.status, "no image available")
		return
	}
	d.outcome, d.status = "failed", http.StatusInternalServerError
	log.Debug("source image unreadable", logging.String("path", s.store.Path()), logging.Error(err))
	writeError(w, log, d.status, "source image unavailable: "+err.Error())
}

func (s *Server) finish(r *http.Request, d delivery, elapsed time.Duration) {
	log := logging.WithContext(r.Context(), s.logger)
	attrs := []logging.Attr{
		logging.String(logging.FieldFormat, d.format),
		logging.String(logging.FieldOutcome, d.outcome),
		logging.Int("status", d.status),
		logging.Int("bytes", d.bytes),
		logging.Duration("duration", elapsed),
		logging.String("remote_addr", r.RemoteAddr),
	}
	switch {
	case d.status >= http.StatusInternalServerError:
		logging.ErrorWithContext(log, "image delivery failed", "delivery_failed",
			append(attrs, logging.Error(d.err), logging.String(logging.FieldErrorHint, "republish a valid PNG or JPEG source image"))...)
	case d.status >= http.StatusBadRequest:
		log.Info("image request refused", logging.Args(append(attrs, logging.Error(d.err))...)...)
	default:
		log.Info("image served", logging.Args(attrs...)...)
	}

	if s.history == nil {
		return
	}
	requestID, _ := logging.RequestIDFromContext(r.Context())
	entry := history.Delivery{
		ServedAt:      s.now(),
		RequestID:     requestID,
		RemoteAddr:    r.RemoteAddr,
		Format:        d.format,
		Outcome:       d.outcome,
		Status:        d.status,
		Bytes:         int64(d.bytes),
		Duration:      elapsed,
		ArtifactMTime: d.mtime,
	}
	if d.err != nil {
		entry.Error = d.err.Error()
	}
	if _, err := s.history.Record(context.WithoutCancel(r.Context()), entry); err != nil {
		logging.WarnWithContext(log, "delivery history write failed", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "delivery served but not recorded"),
		)
	}
}

// StatusResponse describes the running configuration and artifact state.
type StatusResponse struct {
	Device        DeviceStatus           `json:"device"`
	DefaultFormat string                 `json:"default_format"`
	Palette       []palette.MappingEntry `json:"palette"`
	Artifact      ArtifactStatus         `json:"artifact"`
}

// DeviceStatus summarizes the converter settings.
type DeviceStatus struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Orientation string `json:"orientation"`
	Fit         string `json:"fit"`
	Dither      string `json:"dither"`
	PackedBytes int    `json:"packed_bytes"`
}

// ArtifactStatus reports whether a source image has been published.
type ArtifactStatus struct {
	Present      bool   `json:"present"`
	Path         string `json:"path"`
	Size         int64  `json:"size,omitempty"`
	LastModified string `json:"last_modified,omitempty"`
}

// PaletteResponse is the index to color table devices use to interpret nibbles.
type PaletteResponse struct {
	BitsPerPixel int                    `json:"bits_per_pixel"`
	Colors       []palette.MappingEntry `json:"colors"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	log := logging.WithContext(r.Context(), s.logger)
	if !allowRead(w, r, log) {
		return
	}
	opts := s.conv.Options()
	resp := StatusResponse{
		Device: DeviceStatus{
			Width:       opts.Width,
			Height:      opts.Height,
			Orientation: s.orientation,
			Fit:         string(opts.Fit),
			Dither:      string(opts.Dither),
			PackedBytes: codec.PackedLen(opts.Width, opts.Height),
		},
		DefaultFormat: s.defaultFormat,
		Palette:       opts.Palette.Mapping(),
		Artifact:      ArtifactStatus{Path: s.store.Path()},
	}
	info, err := s.store.Stat()
	switch {
	case err == nil:
		resp.Artifact.Present = true
		resp.Artifact.Size = info.Size
		resp.Artifact.LastModified = freshness.LastModified(info.ModTime)
	case !errors.Is(err, artifact.ErrNotFound):
		writeError(w, log, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, log, http.StatusOK, resp)
}

func (s *Server) handlePalette(w http.ResponseWriter, r *http.Request) {
	log := logging.WithContext(r.Context(), s.logger)
	if !allowRead(w, r, log) {
		return
	}
	writeJSON(w, log, http.StatusOK, PaletteResponse{
		BitsPerPixel: 4,
		Colors:       s.conv.Options().Palette.Mapping(),
	})
}
