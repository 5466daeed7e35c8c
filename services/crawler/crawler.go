// Package crawler walks the three-level catalog tree and drives the
// dual-view extraction. Major and middle categories are visited
// strictly sequentially on the session page; only sub-category
// extraction fans out, under a bounded worker pool with its own tab per
// worker.
package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pricewatch-backend/lib/retry"
	"pricewatch-backend/lib/scrapers/kpi"
	"pricewatch-backend/lib/specmatch"
	"pricewatch-backend/services/pricecache"
	"pricewatch-backend/services/pricedb"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

var tracer = otel.Tracer("services/crawler")

const subcategoryAttempts = 3
const subcategoryRetryDelay = time.Second * 2

type Config struct {
	// Concurrency bounds the sub-category worker pool. 2–5 keeps the
	// site responsive; higher values risk session churn.
	Concurrency int
	Start       kpi.YearMonth
	// TargetMajor/TargetMiddle narrow a run to a single branch when
	// set. The inclusion filter still applies on top.
	TargetMajor  string
	TargetMiddle string
	ProgressPath string
}

type Crawler struct {
	client   *kpi.Client
	store    pricedb.Store
	cache    *pricecache.Invalidator
	filter   InclusionFilter
	matchCfg specmatch.Config
	agg      *Aggregator
	progress *ProgressWriter
	sem      *semaphore.Weighted
	cfg      Config
}

// New wires a crawler. cache may be nil when no downstream cache is
// configured; everything else is required.
func New(client *kpi.Client, store pricedb.Store, cache *pricecache.Invalidator, filter InclusionFilter, cfg Config) *Crawler {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 2
	}
	if cfg.Start == (kpi.YearMonth{}) {
		cfg.Start = kpi.YearMonth{Year: 2020, Month: 1}
	}
	return &Crawler{
		client:   client,
		store:    store,
		cache:    cache,
		filter:   filter,
		matchCfg: specmatch.DefaultConfig(),
		agg:      NewAggregator(),
		progress: NewProgressWriter(cfg.ProgressPath),
		sem:      semaphore.NewWeighted(int64(cfg.Concurrency)),
		cfg:      cfg,
	}
}

// Run executes the whole crawl and returns the final snapshot. Only
// failures above the category tree abort a run; every failure below
// that is isolated to its unit of work and reflected in the progress
// artifact.
func (c *Crawler) Run(ctx context.Context) (Progress, error) {
	ctx, span := tracer.Start(ctx, "crawler:Run")
	defer span.End()

	if c.filter.Empty() {
		slog.WarnContext(ctx, "inclusion filter declares no crawl targets, nothing to do")
		return c.finish(ctx)
	}

	majors, err := c.client.MajorCategories(ctx)
	if err != nil {
		span.SetStatus(codes.Error, "failed to enumerate major categories")
		return c.agg.Snapshot(StatusInProgress), fmt.Errorf("enumerate major categories: %w", err)
	}

	for _, major := range majors {
		if !c.filter.HasMajor(major.Name) {
			continue
		}
		if c.cfg.TargetMajor != "" && major.Name != c.cfg.TargetMajor {
			continue
		}
		if err := c.crawlMajor(ctx, major); err != nil {
			if ctx.Err() != nil {
				return c.agg.Snapshot(StatusInProgress), ctx.Err()
			}
			slog.ErrorContext(ctx, "major category failed",
				"major", major.Name, "err", err)
		}
	}

	return c.finish(ctx)
}

func (c *Crawler) finish(ctx context.Context) (Progress, error) {
	snap := c.agg.Snapshot(StatusComplete)
	if err := c.progress.Write(snap); err != nil {
		slog.WarnContext(ctx, "failed to write final progress snapshot", "err", err)
	}
	return snap, nil
}

func (c *Crawler) crawlMajor(ctx context.Context, major kpi.CategoryNode) error {
	ctx, span := tracer.Start(ctx, "crawler:crawlMajor")
	defer span.End()
	span.SetAttributes(attribute.String("major", major.Name))

	middles, err := c.client.ExpandMajor(ctx, major)
	if err != nil {
		span.SetStatus(codes.Error, "expand failed")
		return err
	}

	for _, middle := range middles {
		if !c.filter.HasMiddle(major.Name, middle.Node.Name) {
			continue
		}
		if c.cfg.TargetMiddle != "" && middle.Node.Name != c.cfg.TargetMiddle {
			continue
		}
		c.crawlMiddle(ctx, major, middle)
	}

	if c.cache != nil {
		if err := c.cache.InvalidateMajor(ctx, major.Name); err != nil {
			slog.WarnContext(ctx, "major cache invalidation failed",
				"major", major.Name, "err", err)
		}
	}
	return nil
}

func (c *Crawler) crawlMiddle(ctx context.Context, major kpi.CategoryNode, middle kpi.MiddleCategory) {
	ctx, span := tracer.Start(ctx, "crawler:crawlMiddle")
	defer span.End()
	span.SetAttributes(
		attribute.String("major", major.Name),
		attribute.String("middle", middle.Node.Name),
	)

	var subs []kpi.CategoryNode
	for _, sub := range middle.Subs {
		if c.filter.HasSub(major.Name, middle.Node.Name, sub.Name) {
			subs = append(subs, sub)
		}
	}
	if len(subs) == 0 {
		slog.DebugContext(ctx, "no eligible sub-categories",
			"major", major.Name, "middle", middle.Node.Name)
		return
	}

	slog.InfoContext(ctx, "dispatching sub-categories",
		"major", major.Name,
		"middle", middle.Node.Name,
		"subs", len(subs),
	)

	var middleRecords []pricedb.PriceRecord
	runUnits(ctx, c.sem, subs, c.scrapeSubcategory, func(sub kpi.CategoryNode, res SubResult) {
		if res.Err != nil {
			slog.ErrorContext(ctx, "sub-category failed",
				"category", sub.Path(), "err", res.Err)
		}
		if err := c.agg.Record(major.Name, middle.Node.Name, sub.Name, res); err != nil {
			slog.ErrorContext(ctx, "failed to record result", "err", err)
		}
		middleRecords = append(middleRecords, res.Records...)

		// checkpoint after every settled unit so a crash loses at
		// most the in-flight one
		if err := c.progress.Write(c.agg.Snapshot(StatusInProgress)); err != nil {
			slog.WarnContext(ctx, "failed to write progress snapshot", "err", err)
		}
	})

	// barrier passed: the aggregate commits first, the cache is
	// cleared second, so readers can never see fresh cache over stale
	// rows
	if err := c.store.UpsertBatch(ctx, middleRecords); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "middle batch commit failed")
		slog.ErrorContext(ctx, "middle category commit failed",
			"major", major.Name, "middle", middle.Node.Name, "err", err)
		return
	}
	if c.cache != nil {
		if err := c.cache.InvalidateMiddle(ctx, major.Name, middle.Node.Name); err != nil {
			slog.WarnContext(ctx, "middle cache invalidation failed",
				"major", major.Name, "middle", middle.Node.Name, "err", err)
		}
	}
}

// runUnits fans work out under the semaphore and joins all results
// before returning. record is called from the dispatching goroutine
// only, in settlement order.
func runUnits(
	ctx context.Context,
	sem *semaphore.Weighted,
	subs []kpi.CategoryNode,
	work func(context.Context, kpi.CategoryNode) SubResult,
	record func(kpi.CategoryNode, SubResult),
) {
	type settled struct {
		sub kpi.CategoryNode
		res SubResult
	}
	results := make(chan settled, len(subs))

	for _, sub := range subs {
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- settled{sub, SubResult{Err: err}}
			continue
		}
		go func(sub kpi.CategoryNode) {
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					results <- settled{sub, SubResult{Err: fmt.Errorf("worker panic: %v", r)}}
				}
			}()
			results <- settled{sub, work(ctx, sub)}
		}(sub)
	}

	for range subs {
		s := <-results
		record(s.sub, s.res)
	}
}

// scrapeSubcategory is one unit of work: open a dedicated tab, extract
// both views, reconcile them and expand the price points into records.
// Only failures before per-option processing are retried; the retry
// covers the whole unit.
func (c *Crawler) scrapeSubcategory(ctx context.Context, sub kpi.CategoryNode) SubResult {
	major, middle := categoryPathOf(sub)
	allow := func(opt specmatch.SpecificationOption) bool {
		return c.filter.AllowsSpec(major, middle, sub.Name, opt.ProductName)
	}

	var data *kpi.SubcategoryData
	err := retry.Do(ctx, retry.Options{
		Attempts: subcategoryAttempts,
		Delay:    subcategoryRetryDelay,
		Name:     "sub-category " + sub.Path(),
	}, func(ctx context.Context) error {
		tab, cancel := c.client.Browser.NewPage()
		// the tab is always closed, whatever happened on it
		defer cancel()

		d, err := c.client.ExtractSubcategory(tab, sub, c.cfg.Start, allow)
		if err != nil {
			return err
		}
		data = d
		return nil
	})
	if err != nil {
		return SubResult{Err: err}
	}

	if len(data.Options) == 0 {
		return SubResult{}
	}
	options := data.Options

	products, err := c.client.ProductRows(ctx, sub)
	if err != nil {
		// a missing listing view leaves every option unmatched rather
		// than failing the unit
		slog.WarnContext(ctx, "listing view unavailable, units will be unresolved",
			"category", sub.Path(), "err", err)
	}

	matched := specmatch.Match(c.matchCfg, products, options)

	res := SubResult{Matched: matched}
	for i, opt := range options {
		m := matched[i]
		spec := opt.ProductName
		if spec == "" {
			spec = opt.FullText
		}
		for _, point := range data.Points[opt.Value] {
			res.Records = append(res.Records, pricedb.PriceRecord{
				Major:         major,
				Middle:        middle,
				Sub:           sub.Name,
				Specification: spec,
				Region:        point.Region,
				DetailSpec:    opt.SpecificationDetail,
				Date:          point.Date,
				Price:         point.Price,
				Unit:          m.Unit,
				HasUnit:       m.Matched,
			})
		}
	}
	return res
}

func categoryPathOf(sub kpi.CategoryNode) (major, middle string) {
	if sub.Parent != nil {
		middle = sub.Parent.Name
		if sub.Parent.Parent != nil {
			major = sub.Parent.Parent.Name
		}
	}
	return major, middle
}
