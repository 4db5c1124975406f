// Package captions stores image captions keyed by content id.
//
// Every cache offers the same get-or-compute contract: if a caption exists
// for an id it is returned as is, otherwise compute is called once, its
// result stored and returned. Concurrent calls for the same id share a single
// computation. A failed computation stores nothing.
package captions

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

type ComputeFunc func(ctx context.Context) (string, error)

type Cache interface {
	// Get returns the caption for id, if one exists.
	Get(ctx context.Context, id int64) (string, bool, error)
	// GetOrCompute returns the stored caption or computes and stores it.
	GetOrCompute(ctx context.Context, id int64, compute ComputeFunc) (string, error)
}

// ImageArchive is implemented by caches that also keep the captioned image.
type ImageArchive interface {
	SaveImage(ctx context.Context, id int64, png []byte) error
}

// store is the backend-specific part of a cache.
type store interface {
	load(ctx context.Context, id int64) (string, bool, error)
	save(ctx context.Context, id int64, caption string) error
}

type getOrComputer struct {
	store
	group singleflight.Group
}

func (c *getOrComputer) Get(ctx context.Context, id int64) (string, bool, error) {
	return c.load(ctx, id)
}

func (c *getOrComputer) GetOrCompute(ctx context.Context, id int64, compute ComputeFunc) (string, error) {
	ctx, span := tracer.Start(ctx, "get or compute caption")
	defer span.End()
	span.SetAttributes(attribute.Int64("caption.id", id))

	caption, err, _ := c.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		if caption, ok, err := c.load(ctx, id); err != nil {
			return "", fmt.Errorf("failed to load caption %d: %w", id, err)
		} else if ok {
			span.SetAttributes(attribute.Bool("caption.cached", true))
			return caption, nil
		}

		caption, err := compute(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to compute caption %d: %w", id, err)
		}
		if err := c.save(ctx, id, caption); err != nil {
			return "", fmt.Errorf("failed to store caption %d: %w", id, err)
		}
		logger.Info("created caption", "id", id)
		return caption, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	return caption.(string), nil
}
