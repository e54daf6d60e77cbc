// Package notification fans out user-facing success and error messages to a
// recent-notification feed, the structured log and, optionally, an AMQP topic
// exchange.
package notification

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// Notification Types
// ---------------------------------------------------------------------------

// Kind is the outcome a notification reports.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a single message shown to the user.
type Notification struct {
	ID        string            `json:"id"`
	Kind      Kind              `json:"kind"`
	Message   string            `json:"message"`
	Source    string            `json:"source,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Notifier is the fire-and-forget capability mutations report through.
type Notifier interface {
	Notify(ctx context.Context, kind Kind, message string)
}

// Sink receives every notification a Center publishes.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, n *Notification) error
}

// ---------------------------------------------------------------------------
// Feed
// ---------------------------------------------------------------------------

// DefaultFeedSize is used when NewFeed is given a non-positive size.
const DefaultFeedSize = 100

// Feed keeps the most recent notifications in memory, oldest dropped first.
type Feed struct {
	mu    sync.RWMutex
	items []*Notification
	size  int
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = DefaultFeedSize
	}
	return &Feed{size: size}
}

func (f *Feed) Name() string { return "feed" }

// Deliver appends n to the feed.
func (f *Feed) Deliver(_ context.Context, n *Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, n)
	if len(f.items) > f.size {
		f.items = f.items[len(f.items)-f.size:]
	}
	return nil
}

// Recent returns up to limit notifications, newest first. A non-positive
// limit returns everything held.
func (f *Feed) Recent(limit int) []*Notification {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if limit <= 0 || limit > len(f.items) {
		limit = len(f.items)
	}
	out := make([]*Notification, 0, limit)
	for i := len(f.items) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.items[i])
	}
	return out
}

func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.items)
}

// ---------------------------------------------------------------------------
// Log Sink
// ---------------------------------------------------------------------------

// LogSink writes each notification as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notification").Logger()}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Deliver(_ context.Context, n *Notification) error {
	evt := s.logger.Info()
	if n.Kind == KindError {
		evt = s.logger.Warn()
	}
	for k, v := range n.Metadata {
		evt = evt.Str(k, v)
	}
	evt.
		Str("notification_id", n.ID).
		Str("kind", string(n.Kind)).
		Str("source", n.Source).
		Msg(n.Message)
	return nil
}

// ---------------------------------------------------------------------------
// Center
// ---------------------------------------------------------------------------

// Stats summarises what a Center has published.
type Stats struct {
	Total            int            `json:"total"`
	ByKind           map[Kind]int   `json:"by_kind"`
	DeliveryFailures map[string]int `json:"delivery_failures"`
}

// Center publishes notifications to its feed and every registered sink. Sink
// failures are logged and counted, never returned to the caller.
type Center struct {
	feed   *Feed
	sinks  []Sink
	logger zerolog.Logger

	mu       sync.Mutex
	total    int
	byKind   map[Kind]int
	failures map[string]int
}

func NewCenter(logger zerolog.Logger, feed *Feed, sinks ...Sink) *Center {
	if feed == nil {
		feed = NewFeed(DefaultFeedSize)
	}
	return &Center{
		feed:     feed,
		sinks:    sinks,
		logger:   logger.With().Str("component", "notification").Logger(),
		byKind:   make(map[Kind]int),
		failures: make(map[string]int),
	}
}

// Feed returns the center-wide recent feed.
func (c *Center) Feed() *Feed { return c.feed }

// Notify publishes a notification with no source or metadata.
func (c *Center) Notify(ctx context.Context, kind Kind, message string) {
	c.Publish(ctx, &Notification{Kind: kind, Message: message})
}

// Publish assigns an ID and timestamp when missing and delivers n.
func (c *Center) Publish(ctx context.Context, n *Notification, extra ...Sink) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	c.mu.Lock()
	c.total++
	c.byKind[n.Kind]++
	c.mu.Unlock()

	_ = c.feed.Deliver(ctx, n)
	for _, s := range extra {
		c.deliver(ctx, s, n)
	}
	for _, s := range c.sinks {
		c.deliver(ctx, s, n)
	}
}

func (c *Center) deliver(ctx context.Context, s Sink, n *Notification) {
	if err := s.Deliver(ctx, n); err != nil {
		c.mu.Lock()
		c.failures[s.Name()]++
		c.mu.Unlock()
		c.logger.Error().Err(err).
			Str("sink", s.Name()).
			Str("notification_id", n.ID).
			Msg("notification delivery failed")
	}
}

// Stats returns a snapshot of the publish counters.
func (c *Center) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Stats{
		Total:            c.total,
		ByKind:           make(map[Kind]int, len(c.byKind)),
		DeliveryFailures: make(map[string]int, len(c.failures)),
	}
	for k, v := range c.byKind {
		st.ByKind[k] = v
	}
	for k, v := range c.failures {
		st.DeliveryFailures[k] = v
	}
	return st
}

// Scoped returns a Notifier that tags every notification with source and
// metadata and additionally records it in feed.
func (c *Center) Scoped(source string, feed *Feed, metadata map[string]string) Notifier {
	return &scopedNotifier{center: c, source: source, feed: feed, metadata: metadata}
}

type scopedNotifier struct {
	center   *Center
	source   string
	feed     *Feed
	metadata map[string]string
}

func (s *scopedNotifier) Notify(ctx context.Context, kind Kind, message string) {
	n := &Notification{Kind: kind, Message: message, Source: s.source}
	if len(s.metadata) > 0 {
		n.Metadata = make(map[string]string, len(s.metadata))
		for k, v := range s.metadata {
			n.Metadata[k] = v
		}
	}
	if s.feed != nil {
		s.center.Publish(ctx, n, s.feed)
		return
	}
	s.center.Publish(ctx, n)
}

// ---------------------------------------------------------------------------
// HTTP Handler
// ---------------------------------------------------------------------------

// Handler exposes the center-wide feed and counters.
type Handler struct {
	center *Center
}

func NewHandler(center *Center) *Handler {
	return &Handler{center: center}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.HandleList)
	g.GET("/notifications/stats", h.HandleStats)
}

// HandleList handles GET /notifications?limit=&kind=.
func (h *Handler) HandleList(c echo.Context) error {
	limit := 50
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	kind := Kind(c.QueryParam("kind"))
	if kind != "" && kind != KindSuccess && kind != KindError {
		return echo.NewHTTPError(http.StatusBadRequest, "kind must be success or error")
	}

	items := h.center.Feed().Recent(0)
	out := make([]*Notification, 0, limit)
	for _, n := range items {
		if kind != "" && n.Kind != kind {
			continue
		}
		out = append(out, n)
		if len(out) == limit {
			break
		}
	}
	return c.JSON(http.StatusOK, out)
}

// HandleStats handles GET /notifications/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.center.Stats())
}
