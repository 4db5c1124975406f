package conversations

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-vision/core/captions"
	"github.com/koscakluka/ema-vision/core/llms"
)

type fakeCaptioner struct {
	calls   atomic.Int32
	caption string
	err     error
}

func (c *fakeCaptioner) Caption(context.Context, []byte) (string, error) {
	c.calls.Add(1)
	return c.caption, c.err
}

type fakeLLM struct {
	mu        sync.Mutex
	responses []*llms.Response
	prompts   []llms.PromptOptions
}

func (l *fakeLLM) Prompt(_ context.Context, opts ...llms.PromptOption) (*llms.Response, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prompts = append(l.prompts, llms.NewPromptOptions(opts...))
	if len(l.responses) == 0 {
		return nil, errors.New("no response prepared")
	}
	response := l.responses[0]
	l.responses = l.responses[1:]
	return response, nil
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img
}

func TestStoreAssignsIncreasingIDs(t *testing.T) {
	store := NewStore()
	now := time.Now()

	ids := []int64{
		store.AddText("hello", llms.RoleUser, now),
		store.AddToolCallRequest("recall", `{"query":"q"}`, "call_1", now),
		store.AddToolCallResponse("call_1", json.RawMessage(`{"result":"a"}`), "a", now),
	}
	imageID, err := store.AddImage(testImage(), now)
	if err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	ids = append(ids, imageID)

	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Fatalf("ids not strictly increasing: %v", ids)
		}
	}

	items := store.Items()
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	if items[3].Kind != KindImage || len(items[3].Image) == 0 {
		t.Fatalf("expected encoded image item, got %+v", items[3])
	}
	if !store.HasImages() {
		t.Fatalf("expected HasImages to be true")
	}
}

func TestStoreKeepsInvalidToolArgumentsAsString(t *testing.T) {
	store := NewStore()
	store.AddToolCallRequest("recall", "not json", "call_1", time.Now())

	got := string(store.Items()[0].ToolArguments)
	if got != `"not json"` {
		t.Fatalf("unexpected arguments %s", got)
	}
}

func TestAddImageBytesRejectsGarbage(t *testing.T) {
	store := NewStore()
	if _, err := store.AddImageBytes([]byte("not an image"), time.Now()); err == nil {
		t.Fatalf("expected decoding error")
	}
	if store.HasImages() {
		t.Fatalf("garbage must not be added")
	}
}

func TestAddImageBytesKeepsPNG(t *testing.T) {
	source := NewStore()
	if _, err := source.AddImage(testImage(), time.Now()); err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	encoded := source.Items()[0].Image

	store := NewStore()
	if _, err := store.AddImageBytes(encoded, time.Now()); err != nil {
		t.Fatalf("AddImageBytes failed: %v", err)
	}
	if got := store.Items()[0].Image; string(got) != string(encoded) {
		t.Fatalf("expected PNG bytes to be stored unchanged")
	}
}

func TestRunCaptionsImages(t *testing.T) {
	captioner := &fakeCaptioner{caption: "a red dot"}
	cache := captions.NewMemoryCache()
	store := NewStore(WithCaptioner(captioner), WithCaptionCache(cache))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- store.Run(ctx) }()

	id, err := store.AddImage(testImage(), time.Now())
	if err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		caption, ok, err := store.Caption(ctx, id)
		if err != nil {
			t.Fatalf("Caption failed: %v", err)
		}
		if ok {
			if caption != "a red dot" {
				t.Fatalf("unexpected caption %q", caption)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("image was never captioned")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}
	store.Close()
}

func TestCaptionSkipsCachedImages(t *testing.T) {
	captioner := &fakeCaptioner{caption: "new"}
	cache := captions.NewMemoryCache()
	if _, err := cache.GetOrCompute(context.Background(), 0, func(context.Context) (string, error) {
		return "old", nil
	}); err != nil {
		t.Fatalf("seeding cache failed: %v", err)
	}

	store := NewStore(WithCaptioner(captioner), WithCaptionCache(cache))
	if _, err := store.AddImage(testImage(), time.Now()); err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}
	if err := store.caption(context.Background(), store.Items()[0]); err != nil {
		t.Fatalf("caption failed: %v", err)
	}

	if calls := captioner.calls.Load(); calls != 0 {
		t.Fatalf("captioner called %d times for a cached image", calls)
	}
	if caption, _, _ := cache.Get(context.Background(), 0); caption != "old" {
		t.Fatalf("cached caption was replaced by %q", caption)
	}
}

func TestCaptionFailureStoresNothing(t *testing.T) {
	captioner := &fakeCaptioner{err: errors.New("service down")}
	store := NewStore(WithCaptioner(captioner))
	if _, err := store.AddImage(testImage(), time.Now()); err != nil {
		t.Fatalf("AddImage failed: %v", err)
	}

	if err := store.caption(context.Background(), store.Items()[0]); err == nil {
		t.Fatalf("expected captioning error")
	}
	if _, ok, _ := store.Caption(context.Background(), 0); ok {
		t.Fatalf("failed caption must not be cached")
	}
}

func TestCoarseContextSkipsUncaptionedImages(t *testing.T) {
	cache := captions.NewMemoryCache()
	store := NewStore(WithCaptionCache(cache))
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.Local)

	first, _ := store.AddImage(testImage(), ts)
	store.AddText("hi", llms.RoleUser, ts)
	store.AddImage(testImage(), ts.Add(time.Second))
	third, _ := store.AddImage(testImage(), ts.Add(2*time.Second))

	for id, caption := range map[int64]string{first: "a desk", third: "a window"} {
		if _, err := cache.GetOrCompute(context.Background(), id, func(context.Context) (string, error) {
			return caption, nil
		}); err != nil {
			t.Fatalf("seeding cache failed: %v", err)
		}
	}

	messages, err := store.CoarseContext(context.Background())
	if err != nil {
		t.Fatalf("CoarseContext failed: %v", err)
	}
	if len(messages) != 1 || messages[0].Role != llms.RoleUser {
		t.Fatalf("expected a single user message, got %+v", messages)
	}

	want := strings.Join([]string{
		"Timestamp: 2025-03-14T15:09:26; Image containing: a desk",
		"Timestamp: 2025-03-14T15:09:28; Image containing: a window",
	}, "\n")
	if got := messages[0].Text(); got != want {
		t.Fatalf("unexpected coarse context:\n%s\nwant:\n%s", got, want)
	}
}
