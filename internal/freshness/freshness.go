package freshness

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Outcome is the terminal state of a conditional request.
type Outcome int

const (
	// FreshContent means the full pipeline must run.
	FreshContent Outcome = iota
	// NotModified means the client copy is current.
	NotModified
)

func (o Outcome) String() string {
	switch o {
	case NotModified:
		return "not_modified"
	default:
		return "fresh"
	}
}

// Decision captures the outcome and the inputs that produced it.
type Decision struct {
	Outcome Outcome
	// ModTime is the artifact time truncated to seconds.
	ModTime time.Time
	// Token is the parsed client time, zero when absent or invalid.
	Token time.Time
	// TokenErr is set when a token was supplied but could not be parsed.
	TokenErr error
}

// Decide compares an artifact modification time with a client token.
func Decide(modTime time.Time, token string) Decision {
	d := Decision{Outcome: FreshContent, ModTime: Truncate(modTime)}
	token = strings.TrimSpace(token)
	if token == "" {
		return d
	}
	parsed, err := http.ParseTime(token)
	if err != nil {
		d.TokenErr = err
		return d
	}
	d.Token = Truncate(parsed)
	if d.ModTime.Unix() <= d.Token.Unix() {
		d.Outcome = NotModified
	}
	return d
}

// DecideRequest reads If-Modified-Since from r.
func DecideRequest(modTime time.Time, r *http.Request) Decision {
	return Decide(modTime, r.Header.Get("If-Modified-Since"))
}

// Truncate drops sub-second precision and normalizes to UTC.
func Truncate(t time.Time) time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}

// LastModified formats t as an HTTP date with second precision.
func LastModified(t time.Time) string {
	return Truncate(t).Format(http.TimeFormat)
}

// Response header names used for packed buffers.
const (
	HeaderWidth  = "X-Display-Width"
	HeaderHeight = "X-Display-Height"
	HeaderLength = "X-Display-Length"
)

// Meta describes a fresh response body.
type Meta struct {
	ModTime     time.Time
	ContentType string
	Length      int
	// Width and Height are set for packed buffers only.
	Width  int
	Height int
}

// Apply writes the freshness headers for a fresh response.
func Apply(h http.Header, m Meta) {
	h.Set("Last-Modified", LastModified(m.ModTime))
	h.Set("Cache-Control", "no-cache")
	if m.ContentType != "" {
		h.Set("Content-Type", m.ContentType)
	}
	h.Set("Content-Length", strconv.Itoa(m.Length))
	if m.Width > 0 && m.Height > 0 {
		h.Set(HeaderWidth, strconv.Itoa(m.Width))
		h.Set(HeaderHeight, strconv.Itoa(m.Height))
		h.Set(HeaderLength, strconv.Itoa(m.Length))
	}
}

// ApplyNotModified writes the headers that accompany a 304.
func ApplyNotModified(h http.Header, modTime time.Time) {
	h.Set("Last-Modified", LastModified(modTime))
	h.Set("Cache-Control", "no-cache")
}
