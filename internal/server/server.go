package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"inkframe/internal/artifact"
	"inkframe/internal/codec"
	"inkframe/internal/history"
	"inkframe/internal/logging"
)

// Output formats accepted by /api/current_image.
const (
	FormatPacked = "packed"
	FormatImage  = "image"
	FormatBMP    = "bmp"
)

// HeaderRequestID carries the correlation identifier on requests and responses.
const HeaderRequestID = "X-Request-ID"

const maxRequestIDLen = 64

// Recorder persists delivery outcomes.
type Recorder interface {
	Record(ctx context.Context, d history.Delivery) (int64, error)
}

// Options wires a Server.
type Options struct {
	Store         *artifact.Store
	Converter     *codec.Converter
	History       Recorder
	Logger        *slog.Logger
	APIToken      string
	Compression   bool
	DefaultFormat string
	Orientation   string
}

// Server answers device and operator requests.
type Server struct {
	store         *artifact.Store
	conv          *codec.Converter
	history       Recorder
	logger        *slog.Logger
	token         string
	compression   bool
	defaultFormat string
	orientation   string
	now           func() time.Time
}

// New validates opts and builds a Server.
func New(opts Options) (*Server, error) {
	if opts.Store == nil {
		return nil, errors.New("server: artifact store is required")
	}
	if opts.Converter == nil {
		return nil, errors.New("server: converter is required")
	}
	format := strings.ToLower(strings.TrimSpace(opts.DefaultFormat))
	if format == "" {
		format = FormatPacked
	}
	if !validFormat(format) {
		return nil, errors.New("server: unknown default format " + format)
	}
	orientation := opts.Orientation
	if orientation == "" {
		orientation = "horizontal"
	}
	return &Server{
		store:         opts.Store,
		conv:          opts.Converter,
		history:       opts.History,
		logger:        logging.NewComponentLogger(opts.Logger, "server"),
		token:         opts.APIToken,
		compression:   opts.Compression,
		defaultFormat: format,
		orientation:   orientation,
		now:           time.Now,
	}, nil
}

// Handler returns the routed, middleware-wrapped HTTP handler.
func (s *Server) Handler() (http.Handler, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/current_image", s.handleCurrentImage)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/palette", s.handlePalette)

	var h http.Handler = authMiddleware(s.token, mux)
	if s.compression {
		wrap, err := gzhttp.NewWrapper(gzhttp.ContentTypeFilter(compressible))
		if err != nil {
			return nil, fmt.Errorf("server: configure compression: %w", err)
		}
		h = wrap(h)
	}
	return s.requestIDMiddleware(h), nil
}

// compressible reports whether a response body benefits from gzip. Packed
// buffers and BMPs shrink well; PNG and JPEG passthrough bodies do not.
func compressible(contentType string) bool {
	switch strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]) {
	case "application/octet-stream", "image/bmp", "application/json":
		return true
	default:
		return false
	}
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderRequestID))
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func validFormat(format string) bool {
	switch format {
	case FormatPacked, FormatImage, FormatBMP:
		return true
	default:
		return false
	}
}

func allowRead(w http.ResponseWriter, r *http.Request, logger *slog.Logger) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	writeError(w, logger, http.StatusMethodNotAllowed, "method not allowed")
	return false
}
