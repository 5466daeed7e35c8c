// Package pricecache invalidates the downstream key-value cache after a
// scope of the crawl has been committed, so readers never see stale
// derived views ahead of the new data. Invalidation must always run
// after the corresponding persistence commit, never before.
package pricecache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("services/pricecache")

const defaultPrefix = "price"
const scanPageSize = 200
const deleteBatchSize = 500

type Invalidator struct {
	rdb    *redis.Client
	prefix string
}

type Options struct {
	Addr     string
	Password string
	DB       int
	// Prefix is the cache key namespace, "price" by default.
	Prefix string
}

func NewInvalidator(ctx context.Context, opts Options) (*Invalidator, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect cache: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Invalidator{rdb: rdb, prefix: prefix}, nil
}

func (i *Invalidator) Close() error {
	return i.rdb.Close()
}

// Pattern builds the wildcard key pattern for a scope. Scope narrows
// from everything, to one major category, to one major+middle pair.
func Pattern(prefix string, parts ...string) string {
	segments := append([]string{prefix}, parts...)
	return strings.Join(segments, ":") + ":*"
}

func (i *Invalidator) InvalidateAll(ctx context.Context) error {
	return i.invalidate(ctx, Pattern(i.prefix))
}

func (i *Invalidator) InvalidateMajor(ctx context.Context, major string) error {
	return i.invalidate(ctx, Pattern(i.prefix, major))
}

func (i *Invalidator) InvalidateMiddle(ctx context.Context, major, middle string) error {
	return i.invalidate(ctx, Pattern(i.prefix, major, middle))
}

// invalidate pages through every key matching the pattern with SCAN
// and deletes them in batches. SCAN makes no fixed result-count
// assumption, so arbitrarily large key spaces are handled.
func (i *Invalidator) invalidate(ctx context.Context, pattern string) error {
	ctx, span := tracer.Start(ctx, "invalidator:invalidate")
	defer span.End()
	span.SetAttributes(attribute.String("pattern", pattern))

	var batch []string
	deleted := 0

	iter := i.rdb.Scan(ctx, 0, pattern, scanPageSize).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) >= deleteBatchSize {
			if err := i.deleteKeys(ctx, batch); err != nil {
				span.SetStatus(codes.Error, "batch delete failed")
				return err
			}
			deleted += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scan failed")
		return fmt.Errorf("scan %q: %w", pattern, err)
	}

	if len(batch) > 0 {
		if err := i.deleteKeys(ctx, batch); err != nil {
			span.SetStatus(codes.Error, "batch delete failed")
			return err
		}
		deleted += len(batch)
	}

	span.SetAttributes(attribute.Int("deleted", deleted))
	slog.DebugContext(ctx, "cache scope invalidated", "pattern", pattern, "keys", deleted)
	return nil
}

func (i *Invalidator) deleteKeys(ctx context.Context, keys []string) error {
	if err := i.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete %d cache keys: %w", len(keys), err)
	}
	return nil
}
