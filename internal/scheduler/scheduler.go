package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"MarketSync/internal/alert"
	"MarketSync/internal/model"
	"MarketSync/internal/notifier"
	"MarketSync/internal/store"
	"MarketSync/internal/syncer"

	"github.com/robfig/cron/v3"
)

// Scheduler runs sync passes on cron schedules and answers chat commands.
type Scheduler struct {
	Cron       *cron.Cron
	Syncer     *syncer.Synchronizer
	Store      store.SeriesStore
	Monitor    *alert.Monitor
	Notifier   notifier.Notifier
	Location   *time.Location
	ParquetDir string // empty disables snapshots
	Alerts     bool   // run the RSI zone check after each pass
	Now        func() time.Time
	Ctx        context.Context

	passMu map[model.Granularity]*sync.Mutex
	mu     sync.Mutex
	last   map[model.Granularity]*syncer.PassResult
}

// NewScheduler creates a new Scheduler. mon and n may be nil.
func NewScheduler(ctx context.Context, sy *syncer.Synchronizer, st store.SeriesStore, mon *alert.Monitor, n notifier.Notifier, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		Syncer:   sy,
		Store:    st,
		Monitor:  mon,
		Notifier: n,
		Location: loc,
		Alerts:   mon != nil,
		Now:      time.Now,
		Ctx:      ctx,
		passMu:   make(map[model.Granularity]*sync.Mutex),
		last:     make(map[model.Granularity]*syncer.PassResult),
	}
	for _, g := range model.Granularities {
		s.passMu[g] = &sync.Mutex{}
	}
	return s
}

// RegisterAll registers one sync job per configured granularity. An empty
// cron expression leaves that granularity to manual /sync only.
func (s *Scheduler) RegisterAll(cronFor func(model.Granularity) string) error {
	for _, g := range s.Syncer.Granularities() {
		g := g
		expr := cronFor(g)
		if expr == "" {
			log.Printf("[INFO] no schedule for %s, manual sync only", g)
			continue
		}
		if _, err := s.Cron.AddFunc(expr, func() { s.runPass("cron", []model.Granularity{g}) }); err != nil {
			return fmt.Errorf("register %s task: %w", g, err)
		}
		log.Printf("[INFO] %s sync scheduled: %s", g, expr)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	log.Println("[INFO] scheduler stopped")
}

// RunNow executes a pass over every configured granularity immediately.
func (s *Scheduler) RunNow(source string) *syncer.PassResult {
	return s.runPass(source, s.Syncer.Granularities())
}

func (s *Scheduler) runPass(source string, gs []model.Granularity) *syncer.PassResult {
	for _, g := range gs {
		mu := s.passMu[g]
		mu.Lock()
		defer mu.Unlock()
	}

	now := s.Now().In(s.Location)
	res := s.Syncer.RunPass(s.Ctx, source, gs, now)

	s.mu.Lock()
	for _, g := range gs {
		s.last[g] = res
	}
	s.mu.Unlock()

	for _, g := range gs {
		if s.ParquetDir != "" {
			s.exportSnapshots(g, res.Updated(g))
		}
		if s.Alerts && s.Monitor != nil {
			if _, err := s.Monitor.Check(s.Ctx, s.Syncer.Tickers(), g); err != nil {
				log.Printf("[ERROR] rsi check %s: %v", g, err)
			}
		}
	}
	return res
}

func (s *Scheduler) exportSnapshots(g model.Granularity, tickers []string) {
	for _, ticker := range tickers {
		rec, err := s.Store.Load(ticker, g)
		if err != nil {
			log.Printf("[ERROR] load %s %s for snapshot: %v", ticker, g, err)
			continue
		}
		path := store.SnapshotPath(s.ParquetDir, ticker, g)
		if err := store.ExportParquet(rec, path); err != nil {
			log.Printf("[ERROR] export %s: %v", path, err)
		}
	}
}

// LastPass returns the most recent pass that covered g.
func (s *Scheduler) LastPass(g model.Granularity) *syncer.PassResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[g]
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(_ context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// Group chats deliver "/status@MyBot".
	name, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	args := fields[1:]

	switch name {
	case "/status":
		return s.status()
	case "/sync":
		gs := s.Syncer.Granularities()
		if len(args) > 0 {
			g, err := model.ParseGranularity(args[0])
			if err != nil {
				return err.Error()
			}
			gs = []model.Granularity{g}
		}
		res := s.runPass("command", gs)
		return notifier.FormatPassSummary(res.RunID, res.Now, res.Outcomes, false)
	case "/rsi":
		if len(args) == 0 {
			return "Usage: /rsi TICKER"
		}
		if s.Monitor == nil {
			return "RSI is not configured"
		}
		ticker := s.resolveTicker(args[0])
		readings, err := s.Monitor.Readings(ticker, s.Syncer.Granularities())
		if err != nil {
			return fmt.Sprintf("❌ rsi %s: %v", ticker, err)
		}
		return notifier.FormatReadings(ticker, readings)
	default:
		return notifier.FormatHelp()
	}
}

// resolveTicker matches a typed symbol against the configured tickers.
func (s *Scheduler) resolveTicker(arg string) string {
	for _, t := range s.Syncer.Tickers() {
		if strings.EqualFold(t, arg) {
			return t
		}
	}
	return arg
}

func (s *Scheduler) status() string {
	var b strings.Builder
	seen := make(map[string]bool)
	for _, g := range s.Syncer.Granularities() {
		g := g
		res := s.LastPass(g)
		if res == nil {
			b.WriteString(fmt.Sprintf("%s: no pass yet\n", g))
			continue
		}
		if seen[res.RunID] {
			continue
		}
		seen[res.RunID] = true
		b.WriteString(notifier.FormatPassSummary(res.RunID, res.Now, res.Outcomes, false))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
