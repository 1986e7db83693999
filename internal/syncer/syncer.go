package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"MarketSync/internal/collector"
	"MarketSync/internal/model"
	"MarketSync/internal/notifier"
	"MarketSync/internal/planner"
	"MarketSync/internal/recorder"
	"MarketSync/internal/store"
)

// Config wires a Synchronizer. Notifier and Recorder are optional.
type Config struct {
	Tickers       []string
	Granularities []model.Granularity
	Fetcher       collector.Fetcher
	Store         store.SeriesStore
	Planner       *planner.Planner
	Notifier      notifier.Notifier
	Recorder      recorder.Recorder
	Concurrency   int
}

// Synchronizer brings stored series up to date with upstream.
type Synchronizer struct {
	cfg Config
}

// New creates a Synchronizer.
func New(cfg Config) (*Synchronizer, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("syncer: fetcher is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("syncer: store is required")
	}
	if cfg.Planner == nil {
		cfg.Planner = planner.New(planner.DefaultPolicy())
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if len(cfg.Granularities) == 0 {
		cfg.Granularities = model.Granularities
	}
	return &Synchronizer{cfg: cfg}, nil
}

// Tickers returns the configured ticker list.
func (s *Synchronizer) Tickers() []string { return s.cfg.Tickers }

// Granularities returns the configured granularities.
func (s *Synchronizer) Granularities() []model.Granularity { return s.cfg.Granularities }

// PassResult is the outcome of one SyncAll call.
type PassResult struct {
	RunID      string
	Source     string
	StartedAt  time.Time
	FinishedAt time.Time
	Now        time.Time
	Outcomes   notifier.PassOutcomes
}

// HasFailures reports whether any ticker failed.
func (p *PassResult) HasFailures() bool {
	for _, byTicker := range p.Outcomes {
		for _, o := range byTicker {
			if o.Failed() {
				return true
			}
		}
	}
	return false
}

// Updated returns the tickers that received new rows at g, sorted.
func (p *PassResult) Updated(g model.Granularity) []string {
	var out []string
	for ticker, o := range p.Outcomes[g] {
		if o.Status == model.StatusUpdated {
			out = append(out, ticker)
		}
	}
	sort.Strings(out)
	return out
}

// SyncAll runs Sync for every granularity with a single now, then records the
// pass and reports failures. Partial failure is not an error.
func (s *Synchronizer) SyncAll(ctx context.Context, granularities []model.Granularity, now time.Time) *PassResult {
	return s.RunPass(ctx, "manual", granularities, now)
}

// RunPass is SyncAll with the trigger that started the pass recorded as source.
func (s *Synchronizer) RunPass(ctx context.Context, source string, granularities []model.Granularity, now time.Time) *PassResult {
	if len(granularities) == 0 {
		granularities = s.cfg.Granularities
	}
	res := &PassResult{
		RunID:     uuid.NewString(),
		Source:    source,
		StartedAt: time.Now(),
		Now:       now,
		Outcomes:  make(notifier.PassOutcomes, len(granularities)),
	}
	log.Printf("[INFO] sync pass %s started (%s, %d tickers, %v)", res.RunID, source, len(s.cfg.Tickers), granularities)

	for _, g := range granularities {
		res.Outcomes[g] = s.Sync(ctx, s.cfg.Tickers, g, now)
	}
	res.FinishedAt = time.Now()

	if s.cfg.Recorder != nil {
		if err := s.cfg.Recorder.RecordRun(toRunRecord(res, s.cfg.Fetcher.Name())); err != nil {
			log.Printf("[ERROR] record sync run %s: %v", res.RunID, err)
		}
	}

	if res.HasFailures() {
		log.Printf("[WARN] sync pass %s finished with failures", res.RunID)
		if s.cfg.Notifier != nil {
			text := notifier.FormatPassSummary(res.RunID, now, res.Outcomes, true)
			if err := s.cfg.Notifier.Send(ctx, text); err != nil {
				log.Printf("[ERROR] %v", &notifier.NotifyError{Err: err})
			}
		}
	} else {
		log.Printf("[INFO] sync pass %s finished in %v", res.RunID, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	}
	return res
}

func toRunRecord(res *PassResult, provider string) *recorder.RunRecord {
	run := &recorder.RunRecord{
		RunID:      res.RunID,
		Provider:   provider,
		Source:     res.Source,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	for _, g := range model.Granularities {
		byTicker, ok := res.Outcomes[g]
		if !ok {
			continue
		}
		tickers := make([]string, 0, len(byTicker))
		for t := range byTicker {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		for _, t := range tickers {
			run.Outcomes = append(run.Outcomes, recorder.OutcomeRecord{Ticker: t, Granularity: g, Outcome: byTicker[t]})
		}
	}
	return run
}

// Sync brings every ticker's series at g up to date. Tickers are independent:
// one failing never affects another. Tickers not started when ctx is
// cancelled are reported as failed.
func (s *Synchronizer) Sync(ctx context.Context, tickers []string, g model.Granularity, now time.Time) map[string]model.SyncOutcome {
	// One pipeline per file: a repeated ticker would append twice.
	tickers = uniqueTickers(tickers)
	outcomes := make(map[string]model.SyncOutcome, len(tickers))
	var mu sync.Mutex
	set := func(ticker string, o model.SyncOutcome) {
		mu.Lock()
		outcomes[ticker] = o
		mu.Unlock()
	}

	var eg errgroup.Group
	eg.SetLimit(s.cfg.Concurrency)
	for _, ticker := range tickers {
		ticker := ticker
		if err := ctx.Err(); err != nil {
			set(ticker, model.Failed(fmt.Sprintf("sync cancelled: %v", err)))
			continue
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				set(ticker, model.Failed(fmt.Sprintf("sync cancelled: %v", err)))
				return nil
			}
			o := s.syncOne(ctx, ticker, g, now)
			log.Printf("[INFO] %s %s: %s", ticker, g, o)
			set(ticker, o)
			return nil
		})
	}
	eg.Wait()
	return outcomes
}

// uniqueTickers drops repeated symbols, keeping first-seen order.
func uniqueTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if seen[t] {
			log.Printf("[WARN] ticker %s listed more than once, syncing it once", t)
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (s *Synchronizer) syncOne(ctx context.Context, ticker string, g model.Granularity, now time.Time) model.SyncOutcome {
	existing, err := s.cfg.Store.Load(ticker, g)
	if err != nil {
		log.Printf("[ERROR] load %s %s: %v", ticker, g, err)
		return model.Failed(err.Error())
	}

	last, _ := existing.Last()
	window := s.cfg.Planner.PlanWindow(g, last, now)
	if window.Empty() {
		return withWindow(model.UpToDate(0), window)
	}

	fetched, err := s.cfg.Fetcher.Fetch(ctx, ticker, window, g)
	if err != nil {
		log.Printf("[ERROR] fetch %s %s [%s]: %v", ticker, g, window, err)
		return withWindow(model.Failed(err.Error()), window)
	}
	if len(fetched) == 0 {
		return withWindow(model.NoNewData(), window)
	}

	novel := selectNovel(existing, fetched, g, last, now.Location())
	if len(novel) == 0 {
		return withWindow(model.UpToDate(0), window)
	}

	n, err := s.cfg.Store.Append(ticker, g, novel)
	if err != nil {
		log.Printf("[ERROR] append %s %s: %v", ticker, g, err)
		return withWindow(model.Failed(err.Error()), window)
	}
	return withWindow(model.Updated(n), window)
}

// selectNovel keeps fetched bars not already stored, deduplicated and sorted.
// Bars older than the stored last one cannot be appended without breaking the
// ascending order of the file and are dropped. Bar times are moved into loc,
// the exchange location the store persists naive timestamps in.
func selectNovel(existing *model.SeriesRecord, fetched []model.Bar, g model.Granularity, last time.Time, loc *time.Location) []model.Bar {
	seen := make(map[string]struct{}, len(fetched))
	novel := make([]model.Bar, 0, len(fetched))
	dropped := 0
	for _, b := range fetched {
		b.Time = g.Normalize(b.Time.In(loc))
		key := g.FormatTimestamp(b.Time)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if existing.Contains(b.Time) {
			continue
		}
		if !last.IsZero() && !b.Time.After(last) {
			dropped++
			continue
		}
		novel = append(novel, b)
	}
	if dropped > 0 {
		log.Printf("[WARN] %s %s: dropped %d fetched bar(s) older than stored last %s",
			existing.Ticker, g, dropped, g.FormatTimestamp(last))
	}
	sort.Slice(novel, func(i, j int) bool { return novel[i].Time.Before(novel[j].Time) })
	return novel
}

func withWindow(o model.SyncOutcome, w model.SyncWindow) model.SyncOutcome {
	o.Window = w
	return o
}
