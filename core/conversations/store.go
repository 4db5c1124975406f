// Package conversations keeps the multimodal conversation log of a session
// and builds prompt windows from it.
package conversations

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"sync"
	"time"

	"github.com/koscakluka/ema-vision/core/captions"
	"github.com/koscakluka/ema-vision/core/llms"
	"github.com/koscakluka/ema-vision/internal/metrics"
	"github.com/koscakluka/ema-vision/internal/queue"
	"github.com/koscakluka/ema-vision/internal/tasks"
	"go.opentelemetry.io/otel/attribute"
	_ "golang.org/x/image/webp"
)

const (
	DefaultPromptHistoryLength   = 30 * time.Second
	DefaultMaxFinegrainedLength  = 30 * time.Second
	DefaultRecallWindow          = 5 * time.Second
	DefaultMaxConcurrentCaptions = 4
)

// Captioner describes an image in text.
type Captioner interface {
	Caption(ctx context.Context, png []byte) (string, error)
}

// Store is an append-only, time-ordered log of conversation items. Items are
// never changed or removed once added and their ids increase strictly in
// insertion order.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	items  []Item
	images int

	pendingCaptions *queue.Queue[Item]
	captionTasks    *tasks.Group
	cache           captions.Cache
	captioner       Captioner
	completer       llms.LLM
	recallTools     []llms.Tool
	metrics         *metrics.Metrics

	promptHistoryLength   time.Duration
	maxFinegrainedLength  time.Duration
	recallWindow          time.Duration
	maxConcurrentCaptions int
	now                   func() time.Time
}

type StoreOption func(*Store)

// WithCaptionCache sets where captions are kept. Defaults to memory.
func WithCaptionCache(cache captions.Cache) StoreOption {
	return func(s *Store) {
		s.cache = cache
	}
}

func WithCaptioner(captioner Captioner) StoreOption {
	return func(s *Store) {
		s.captioner = captioner
	}
}

// WithCompleter sets the completion service used by Recall.
func WithCompleter(completer llms.LLM) StoreOption {
	return func(s *Store) {
		s.completer = completer
	}
}

func WithPromptHistoryLength(length time.Duration) StoreOption {
	return func(s *Store) {
		s.promptHistoryLength = length
	}
}

func WithMaxFinegrainedLength(length time.Duration) StoreOption {
	return func(s *Store) {
		s.maxFinegrainedLength = length
	}
}

func WithRecallWindow(length time.Duration) StoreOption {
	return func(s *Store) {
		s.recallWindow = length
	}
}

func WithMaxConcurrentCaptions(limit int) StoreOption {
	return func(s *Store) {
		s.maxConcurrentCaptions = limit
	}
}

func WithMetrics(m *metrics.Metrics) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithClock replaces time.Now as the source of "now" for the latest
// fine-grained window.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		pendingCaptions:       queue.New[Item](),
		promptHistoryLength:   DefaultPromptHistoryLength,
		maxFinegrainedLength:  DefaultMaxFinegrainedLength,
		recallWindow:          DefaultRecallWindow,
		maxConcurrentCaptions: DefaultMaxConcurrentCaptions,
		now:                   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.cache == nil {
		s.cache = captions.NewMemoryCache()
	}
	s.captionTasks = tasks.NewGroup(s.maxConcurrentCaptions)
	s.recallTools = s.newRecallTools()

	return s
}

// AddImage appends an image and schedules it for captioning. The image is
// part of the log right away, captioned or not.
func (s *Store) AddImage(img image.Image, timestamp time.Time) (int64, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return 0, fmt.Errorf("failed to encode image: %w", err)
	}

	return s.addImagePNG(buf.Bytes(), timestamp), nil
}

// AddImageBytes decodes an encoded PNG, JPEG, GIF or WebP image and appends
// it like AddImage.
func (s *Store) AddImageBytes(data []byte, timestamp time.Time) (int64, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("failed to decode image: %w", err)
	}
	if format == "png" {
		return s.addImagePNG(data, timestamp), nil
	}

	return s.AddImage(img, timestamp)
}

func (s *Store) addImagePNG(data []byte, timestamp time.Time) int64 {
	item := s.append(Item{
		Kind:      KindImage,
		Role:      llms.RoleUser,
		Timestamp: timestamp,
		Image:     data,
	})
	s.pendingCaptions.Put(item)
	return item.ID
}

func (s *Store) AddText(text string, role llms.Role, timestamp time.Time) int64 {
	return s.append(Item{
		Kind:      KindText,
		Role:      role,
		Timestamp: timestamp,
		Text:      text,
	}).ID
}

// AddToolCallRequest records a tool call requested by the assistant.
// arguments is the raw JSON produced by the model.
func (s *Store) AddToolCallRequest(name, arguments, callID string, timestamp time.Time) int64 {
	return s.append(Item{
		Kind:          KindToolCallRequest,
		Role:          llms.RoleAssistant,
		Timestamp:     timestamp,
		ToolName:      name,
		ToolArguments: rawJSON(arguments),
		ToolCallID:    callID,
	}).ID
}

// AddToolCallResponse records the result of a tool call.
func (s *Store) AddToolCallResponse(callID string, structured json.RawMessage, formatted string, timestamp time.Time) int64 {
	return s.append(Item{
		Kind:                KindToolCallResponse,
		Role:                llms.RoleTool,
		Timestamp:           timestamp,
		ToolCallID:          callID,
		ToolResult:          structured,
		ToolResultFormatted: formatted,
	}).ID
}

func (s *Store) append(item Item) Item {
	s.mu.Lock()
	item.ID = s.nextID
	s.nextID++
	s.items = append(s.items, item)
	if item.Kind == KindImage {
		s.images++
	}
	s.mu.Unlock()

	s.metrics.RecordContentItem(string(item.Kind))
	return item
}

// Items returns a snapshot of the log in insertion order.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]Item, len(s.items))
	copy(items, s.items)
	return items
}

// HasImages reports whether an image was ever added.
func (s *Store) HasImages() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.images > 0
}

// Caption returns the cached caption of an item, if there is one.
func (s *Store) Caption(ctx context.Context, id int64) (string, bool, error) {
	return s.cache.Get(ctx, id)
}

// Run captions images in the background until ctx is done or the store is
// closed. Each image is captioned in its own task so a slow caption never
// holds up the others; the number of concurrent captioning calls is bounded.
func (s *Store) Run(ctx context.Context) error {
	logger.Info("starting image captioning loop")
	for {
		item, err := s.pendingCaptions.Get(ctx)
		if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
			return nil
		} else if err != nil {
			return fmt.Errorf("failed to read pending captions: %w", err)
		}

		if err := s.captionTasks.Go(ctx, "caption", func(ctx context.Context) error {
			return s.caption(ctx, item)
		}); err != nil {
			logger.Warn("dropping captioning job", "id", item.ID, "error", err)
		}
	}
}

func (s *Store) caption(ctx context.Context, item Item) error {
	ctx, span := tracer.Start(ctx, "caption image")
	defer span.End()
	span.SetAttributes(attribute.Int64("content.id", item.ID))

	if archive, ok := s.cache.(captions.ImageArchive); ok {
		if err := archive.SaveImage(ctx, item.ID, item.Image); err != nil {
			span.RecordError(err)
			logger.Warn("failed to archive image", "id", item.ID, "error", err)
		}
	}

	if s.captioner == nil {
		return nil
	}

	if _, err := s.cache.GetOrCompute(ctx, item.ID, func(ctx context.Context) (string, error) {
		return s.captioner.Caption(ctx, item.Image)
	}); err != nil {
		s.metrics.RecordCaption("failed")
		span.RecordError(err)
		return err
	}

	s.metrics.RecordCaption("ok")
	return nil
}

// Close stops accepting captioning jobs and waits for the running ones.
func (s *Store) Close() {
	s.pendingCaptions.Close()
	s.captionTasks.Close()
}

func rawJSON(value string) json.RawMessage {
	if json.Valid([]byte(value)) {
		return json.RawMessage(value)
	}
	encoded, _ := json.Marshal(value)
	return encoded
}
