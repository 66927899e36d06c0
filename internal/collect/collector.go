// Package collect harvests a bounded set of distinct comment strings from a
// lazily rendered, scrollable panel.
package collect

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/feedharvest/internal/logger"
	"github.com/ppiankov/feedharvest/internal/model"
)

// ErrInvalidConfig is returned by New for a non-positive cap or attempt budget
var ErrInvalidConfig = errors.New("invalid collector configuration")

// Surface is the part of the browsing surface the collector drives
type Surface interface {
	Click(ctx context.Context, selector string, timeout time.Duration) error
	QueryText(ctx context.Context, selector string) ([]string, error)
	ScrollBy(ctx context.Context, dy float64) error
	Wait(ctx context.Context, d time.Duration) error
}

// Config bounds one collection run
type Config struct {
	Cap           int
	MaxAttempts   int
	PanelSelector string // Empty disables panel activation
	PanelTimeout  time.Duration
	PanelSettle   time.Duration
	InitialSettle time.Duration
	Selectors     []string
	ScrollDelta   float64
	ScrollSettle  time.Duration
}

// ConfigFromModel maps the run configuration onto collector settings
func ConfigFromModel(c model.CommentsConfig) Config {
	return Config{
		Cap:           c.Cap,
		MaxAttempts:   c.MaxAttempts,
		PanelSelector: c.PanelSelector,
		PanelTimeout:  c.PanelTimeout,
		PanelSettle:   c.PanelSettle,
		InitialSettle: c.InitialSettle,
		Selectors:     append([]string(nil), c.Selectors...),
		ScrollDelta:   c.ScrollDelta,
		ScrollSettle:  c.ScrollSettle,
	}
}

// Result is the outcome of one collection run
type Result struct {
	Comments  []string // Insertion order
	Passes    int      // Extraction passes performed
	PassSizes []int    // Set size after each pass
	Complete  bool     // Cap reached before the attempt budget ran out
}

// Collector runs the reveal, extract, deduplicate loop
type Collector struct {
	cfg Config
	log logger.Logger
}

// New validates cfg and returns a Collector
func New(cfg Config, log logger.Logger) (*Collector, error) {
	if cfg.Cap <= 0 {
		return nil, fmt.Errorf("%w: cap must be > 0, got %d", ErrInvalidConfig, cfg.Cap)
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w: max attempts must be > 0, got %d", ErrInvalidConfig, cfg.MaxAttempts)
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Collector{cfg: cfg, log: log}, nil
}

// Collect harvests up to Cap distinct fragments from s. Fewer than Cap is a
// normal outcome; Result.Complete tells the two apart. The only error is a
// cancelled context, returned together with what was collected so far.
func (c *Collector) Collect(ctx context.Context, s Surface) (Result, error) {
	set := newCommentSet(c.cfg.Cap)
	res := Result{}

	finish := func(err error) (Result, error) {
		res.Comments = set.items()
		res.Complete = set.full()
		return res, err
	}

	if err := c.openPanel(ctx, s); err != nil {
		return finish(err)
	}
	if err := s.Wait(ctx, c.cfg.InitialSettle); err != nil {
		return finish(err)
	}

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		batch := c.extract(ctx, s)
		if err := ctx.Err(); err != nil {
			return finish(err)
		}

		added := set.addAll(batch)
		res.Passes++
		res.PassSizes = append(res.PassSizes, set.len())

		c.log.Debug("extraction pass",
			logger.Int("pass", attempt),
			logger.Int("candidates", len(batch)),
			logger.Int("added", added),
			logger.Int("total", set.len()),
		)

		if set.full() || attempt == c.cfg.MaxAttempts {
			break
		}

		if err := s.ScrollBy(ctx, c.cfg.ScrollDelta); err != nil {
			if ctx.Err() != nil {
				return finish(ctx.Err())
			}
			c.log.Debug("reveal trigger failed", logger.Error(err))
		}
		if err := s.Wait(ctx, c.cfg.ScrollSettle); err != nil {
			return finish(err)
		}
	}

	return finish(nil)
}

// openPanel clicks the panel affordance if one is configured. A missing
// affordance is expected (the panel may already be open).
func (c *Collector) openPanel(ctx context.Context, s Surface) error {
	if c.cfg.PanelSelector == "" {
		return nil
	}

	if err := s.Click(ctx, c.cfg.PanelSelector, c.cfg.PanelTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Info("no comment button or panel auto-opened", logger.String("selector", c.cfg.PanelSelector))
		return nil
	}

	return s.Wait(ctx, c.cfg.PanelSettle)
}

// extract queries every selector tier and returns the cleaned candidates
func (c *Collector) extract(ctx context.Context, s Surface) []string {
	var batch []string
	for _, sel := range c.cfg.Selectors {
		texts, err := s.QueryText(ctx, sel)
		if err != nil {
			c.log.Debug("query failed", logger.String("selector", sel), logger.Error(err))
			continue
		}
		for _, t := range texts {
			if cleaned, ok := Clean(t); ok {
				batch = append(batch, cleaned)
			}
		}
	}
	return batch
}

// commentSet is a capped, insertion-ordered set of strings
type commentSet struct {
	limit int
	seen  map[string]struct{}
	order []string
}

func newCommentSet(limit int) *commentSet {
	return &commentSet{limit: limit, seen: make(map[string]struct{}, limit)}
}

func (s *commentSet) len() int   { return len(s.order) }
func (s *commentSet) full() bool { return len(s.order) >= s.limit }

// addAll inserts candidates until the set is full; the rest of the batch is dropped
func (s *commentSet) addAll(batch []string) int {
	added := 0
	for _, v := range batch {
		if s.full() {
			break
		}
		if _, ok := s.seen[v]; ok {
			continue
		}
		s.seen[v] = struct{}{}
		s.order = append(s.order, v)
		added++
	}
	return added
}

func (s *commentSet) items() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
