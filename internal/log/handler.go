package log

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxValueLen is the longest string attribute written unchanged.
const DefaultMaxValueLen = 256

// truncationMarker is appended to truncated values.
const truncationMarker = "...(truncated)"

// Handler wraps an slog.Handler and sanitizes string attribute values
// before passing records on.
type Handler struct {
	handler slog.Handler
	maxLen  int
}

// NewHandler creates a Handler wrapping handler. A maxLen of zero or less
// uses DefaultMaxValueLen. If handler is nil, slog.Default().Handler() is used.
func NewHandler(handler slog.Handler, maxLen int) *Handler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxValueLen
	}
	return &Handler{handler: handler, maxLen: maxLen}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle sanitizes the record's attributes and passes it to the underlying handler.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(h.sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs returns a new handler with the given attributes added.
// Attributes are sanitized before being added.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	sanitized := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		sanitized[i] = h.sanitizeAttr(a)
	}
	return &Handler{handler: h.handler.WithAttrs(sanitized), maxLen: h.maxLen}
}

// WithGroup returns a new handler with the given group name.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{handler: h.handler.WithGroup(name), maxLen: h.maxLen}
}

// sanitizeAttr sanitizes a single attribute, recursively handling groups.
func (h *Handler) sanitizeAttr(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindGroup:
		attrs := a.Value.Group()
		sanitized := make([]slog.Attr, len(attrs))
		for i, ga := range attrs {
			sanitized[i] = h.sanitizeAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitized...)}
	case slog.KindString:
		return slog.String(a.Key, h.sanitizeString(a.Value.String()))
	default:
		return a
	}
}

// sanitizeString escapes control characters and truncates s to maxLen bytes
// on a rune boundary.
func (h *Handler) sanitizeString(s string) string {
	if needsEscape(s) {
		var b strings.Builder
		for _, r := range s {
			if unicode.IsControl(r) {
				q := strconv.QuoteRune(r)
				b.WriteString(q[1 : len(q)-1])
				continue
			}
			b.WriteRune(r)
		}
		s = b.String()
	}

	if len(s) <= h.maxLen {
		return s
	}
	cut := h.maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncationMarker
}

func needsEscape(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

// Options configures New.
type Options struct {
	// Verbose sets the level to Debug; otherwise Warn.
	Verbose bool

	// JSON selects the JSON handler instead of the text handler.
	JSON bool

	// MaxValueLen overrides DefaultMaxValueLen.
	MaxValueLen int
}

// New creates a *slog.Logger writing to w with sanitized attributes.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{
		Level: level,
	}

	var inner slog.Handler
	if opts.JSON {
		inner = slog.NewJSONHandler(w, handlerOpts)
	} else {
		inner = slog.NewTextHandler(w, handlerOpts)
	}

	return slog.New(NewHandler(inner, opts.MaxValueLen))
}
