package conversations

import (
	"context"
	"fmt"
	"strings"

	"github.com/koscakluka/ema-vision/core/llms"
)

// TimestampLayout is how timestamps are shown to and read back from the
// model.
const TimestampLayout = "2006-01-02T15:04:05"

// CoarseContext summarises every captioned image as one line of a single
// user message. Images without a caption yet are left out.
func (s *Store) CoarseContext(ctx context.Context) ([]llms.Message, error) {
	ctx, span := tracer.Start(ctx, "build coarse context")
	defer span.End()

	var lines []string
	for _, item := range s.Items() {
		if item.Kind != KindImage {
			continue
		}

		caption, ok, err := s.cache.Get(ctx, item.ID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to read caption of item %d: %w", item.ID, err)
		} else if !ok {
			continue
		}

		lines = append(lines, fmt.Sprintf("Timestamp: %s; Image containing: %s",
			item.Timestamp.Local().Format(TimestampLayout), caption))
	}

	return []llms.Message{llms.NewTextMessage(llms.RoleUser, strings.Join(lines, "\n"))}, nil
}
