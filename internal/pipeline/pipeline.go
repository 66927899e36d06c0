// Package pipeline walks a profile's items one at a time and turns each into
// an ItemRecord.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ppiankov/feedharvest/internal/cache"
	"github.com/ppiankov/feedharvest/internal/collect"
	"github.com/ppiankov/feedharvest/internal/extract"
	"github.com/ppiankov/feedharvest/internal/logger"
	"github.com/ppiankov/feedharvest/internal/model"
	"github.com/ppiankov/feedharvest/internal/util"
	"github.com/ppiankov/feedharvest/internal/worker"
)

var (
	// ErrNoItems is returned when the listing page yields no item links
	ErrNoItems = errors.New("no items found on listing page")

	// ErrNavigation is returned when a page could not be loaded
	ErrNavigation = errors.New("navigation failed")
)

// Surface is the browsing surface the pipeline drives
type Surface interface {
	collect.Surface
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	QueryFirstText(ctx context.Context, selector string, timeout time.Duration) (model.Lookup, error)
	HTML(ctx context.Context) (string, string, error)
}

// Pipeline orchestrates one harvest run
type Pipeline struct {
	config    *model.Config
	surface   Surface
	collector *collect.Collector
	links     *extract.LinkExtractor
	limiter   *worker.Limiter
	robots    *util.RobotsChecker // nil when robots.txt checks are off
	cache     *cache.RecordCache  // nil when resuming is off
	paced     map[string]bool     // Hosts whose crawl delay is applied
	now       func() time.Time
	log       logger.Logger
}

// Option customizes a Pipeline
type Option func(*Pipeline)

// WithCache overrides the record cache built from the configuration
func WithCache(c *cache.RecordCache) Option {
	return func(p *Pipeline) { p.cache = c }
}

// WithRobots overrides the robots.txt checker built from the configuration
func WithRobots(r *util.RobotsChecker) Option {
	return func(p *Pipeline) { p.robots = r }
}

// WithLimiter overrides the navigation limiter
func WithLimiter(l *worker.Limiter) Option {
	return func(p *Pipeline) { p.limiter = l }
}

// WithClock sets the time source used for record timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline validates cfg and wires the run's components around surface
func NewPipeline(cfg *model.Config, surface Surface, log logger.Logger, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNop()
	}

	collector, err := collect.New(collect.ConfigFromModel(cfg.Comments), log.With(logger.String("component", "collector")))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		config:    cfg,
		surface:   surface,
		collector: collector,
		links:     extract.NewLinkExtractor(cfg.Target.ItemSelector, cfg.Target.ItemFilter),
		limiter:   worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		paced:     make(map[string]bool),
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}

	if cfg.Cache.Enabled {
		backend := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.TTL)
		p.cache = cache.NewRecordCache(backend, 0)
	}

	if cfg.Robots.Enabled {
		proxy, err := util.NewProxyFunc(cfg.Browser.ProxyServer)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", model.ErrInvalidConfig, err)
		}
		p.robots = util.NewRobotsChecker(cfg.Robots.UserAgent, cfg.Robots.Timeout, proxy)
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// ListItems opens the listing page and returns up to ItemLimit item links
func (p *Pipeline) ListItems(ctx context.Context, profileURL string) ([]string, error) {
	if err := p.navigate(ctx, profileURL); err != nil {
		return nil, fmt.Errorf("open profile: %w", err)
	}

	if err := p.surface.WaitVisible(ctx, p.config.Target.ItemSelector, p.config.Navigation.Timeout); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrNoItems, err)
	}

	html, location, err := p.surface.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	if location == "" {
		location = profileURL
	}

	links, err := p.links.Extract(html, location, p.config.Target.ItemLimit)
	if err != nil {
		return nil, fmt.Errorf("extract item links: %w", err)
	}
	if len(links) == 0 {
		return nil, ErrNoItems
	}

	p.log.Info("items listed",
		logger.String("profile", profileURL),
		logger.Int("count", len(links)),
	)
	return links, nil
}

// ProcessItem visits one item and assembles its record. A failed navigation
// yields a failed record and a nil error unless Navigation.FailFast is set.
// A cancelled context is returned with whatever was collected.
func (p *Pipeline) ProcessItem(ctx context.Context, link string) (model.ItemRecord, error) {
	rec, _, err := p.processItem(ctx, link)
	return rec, err
}

func (p *Pipeline) processItem(ctx context.Context, link string) (model.ItemRecord, bool, error) {
	log := p.log.With(logger.String("item", link))

	if p.cache != nil {
		if rec, ok := p.cache.Get(link); ok {
			log.Info("item already harvested, using cached record")
			return rec, true, nil
		}
	}

	if p.robots != nil {
		if skipped, ok := p.checkRobots(ctx, link, log); !ok {
			return skipped, false, ctx.Err()
		}
	}

	if waited, err := p.limiter.Wait(ctx, link); err != nil {
		if ctx.Err() != nil {
			return model.FailedRecord(link, model.StatusFailed, ctx.Err()), false, ctx.Err()
		}
		log.Warn("rate limiter unavailable", logger.Error(err))
	} else if waited > 0 {
		log.Debug("paced navigation", logger.Duration("waited", waited))
	}

	if err := p.navigate(ctx, link); err != nil {
		rec := model.FailedRecord(link, model.StatusFailed, err)
		if ctx.Err() != nil {
			return rec, false, ctx.Err()
		}
		if p.config.Navigation.FailFast {
			return rec, false, err
		}
		log.Warn("skipping item after failed navigation", logger.Error(err))
		return rec, false, nil
	}

	likes, err := p.surface.QueryFirstText(ctx, p.config.Metrics.LikesSelector, p.config.Metrics.LookupTimeout)
	if err != nil {
		return model.FailedRecord(link, model.StatusFailed, err), false, err
	}
	shares, err := p.surface.QueryFirstText(ctx, p.config.Metrics.SharesSelector, p.config.Metrics.LookupTimeout)
	if err != nil {
		return model.FailedRecord(link, model.StatusFailed, err), false, err
	}

	res, err := p.collector.Collect(ctx, p.surface)

	rec := model.ItemRecord{
		URL:       link,
		Likes:     likes,
		Shares:    shares,
		Comments:  res.Comments,
		Complete:  res.Complete,
		Passes:    res.Passes,
		Status:    model.StatusOK,
		ScrapedAt: p.now(),
	}
	if err != nil {
		return rec, false, err
	}

	log.Info("item harvested",
		logger.Bool("likes_found", likes.Found),
		logger.Bool("shares_found", shares.Found),
		logger.Int("comments", len(rec.Comments)),
		logger.Int("passes", rec.Passes),
		logger.Bool("complete", rec.Complete),
	)

	if p.cache != nil {
		if err := p.cache.Put(rec); err != nil {
			log.Warn("failed to cache record", logger.Error(err))
		}
	}

	return rec, false, nil
}

// checkRobots returns false with a skipped record when link is disallowed.
// Fetch failures allow the item.
func (p *Pipeline) checkRobots(ctx context.Context, link string, log logger.Logger) (model.ItemRecord, bool) {
	verdict, err := p.robots.Check(ctx, link)
	if err != nil {
		if ctx.Err() != nil {
			return model.FailedRecord(link, model.StatusFailed, ctx.Err()), false
		}
		log.Warn("robots.txt check failed, allowing item", logger.Error(err))
	}

	if !verdict.Allowed {
		log.Info("item disallowed by robots.txt")
		return model.FailedRecord(link, model.StatusSkipped, errors.New("disallowed by robots.txt")), false
	}

	if verdict.CrawlDelay > 0 {
		if u, err := url.Parse(link); err == nil && !p.paced[u.Host] {
			p.limiter.SetHostRate(u.Host, 1/verdict.CrawlDelay.Seconds(), 1)
			p.paced[u.Host] = true
			log.Debug("applied robots.txt crawl delay", logger.Duration("delay", verdict.CrawlDelay))
		}
	}

	return model.ItemRecord{}, true
}

// RunResult summarizes one harvest run
type RunResult struct {
	ProfileURL string
	Records    []model.ItemRecord // Listing order
	Succeeded  int
	Failed     int
	Skipped    int
	Cached     int // Records served from the resume cache
	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *RunResult) add(rec model.ItemRecord, cached bool) {
	r.Records = append(r.Records, rec)
	switch rec.Status {
	case model.StatusOK:
		r.Succeeded++
	case model.StatusSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
	if cached {
		r.Cached++
	}
}

// Run lists the profile's items and processes them strictly in order. On
// error the result holds every record assembled so far.
func (p *Pipeline) Run(ctx context.Context, profileURL string) (*RunResult, error) {
	result := &RunResult{
		ProfileURL: profileURL,
		StartedAt:  p.now(),
	}
	defer func() { result.FinishedAt = p.now() }()

	links, err := p.ListItems(ctx, profileURL)
	if err != nil {
		return result, err
	}

	for i, link := range links {
		p.log.Debug("processing item", logger.Int("index", i+1), logger.Int("total", len(links)), logger.String("item", link))

		rec, cached, err := p.processItem(ctx, link)
		if err != nil {
			if rec.URL != "" {
				result.add(rec, cached)
			}
			return result, fmt.Errorf("item %s: %w", link, err)
		}
		result.add(rec, cached)
	}

	p.log.Info("run finished",
		logger.String("profile", profileURL),
		logger.Int("succeeded", result.Succeeded),
		logger.Int("failed", result.Failed),
		logger.Int("skipped", result.Skipped),
		logger.Int("cached", result.Cached),
	)

	return result, nil
}
