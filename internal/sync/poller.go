package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/nhle/pi-productivity/internal/model"
	"github.com/nhle/pi-productivity/internal/source"
	"github.com/nhle/pi-productivity/internal/store"
)

// SyncState represents the current state of the sync loop.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return fmt.Sprintf("SyncState(%d)", int(s))
	}
}

// SyncStatus is a snapshot of the poller's progress.
type SyncStatus struct {
	State     SyncState
	LastSync  time.Time
	LastCount int
	Error     error
}

// Defaults used when Config leaves a field empty.
const (
	DefaultSchedule = "*/15 * * * *"
	DefaultTimeout  = 2 * time.Minute
	maxRenderers    = 4
)

// Config controls a Poller.
type Config struct {
	// Schedule is a five-field cron expression evaluated in Location.
	Schedule string

	// Timeout bounds one sync pass: every remote page plus the upsert.
	Timeout time.Duration

	// Limit caps the remote tasks fetched per pass. Zero fetches all.
	Limit int

	// DisplayLimit is passed to FetchItemsForDisplay when rendering.
	DisplayLimit int

	Location *time.Location
}

// Poller keeps the local store in step with the remote task source and
// pushes fresh views to its renderers after every successful sync.
type Poller struct {
	src       source.TaskSource
	store     store.Store
	renderers []Renderer
	cfg       Config
	now       func() time.Time
	triggerCh chan struct{}

	mu     gosync.Mutex
	status SyncStatus
}

// New validates cfg and creates a Poller.
func New(src source.TaskSource, s store.Store, cfg Config, renderers ...Renderer) (*Poller, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	gron := gronx.New()
	if !gron.IsValid(cfg.Schedule) {
		return nil, fmt.Errorf("invalid sync schedule %q", cfg.Schedule)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.DisplayLimit <= 0 {
		cfg.DisplayLimit = store.DefaultDisplayLimit
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	return &Poller{
		src:       src,
		store:     s,
		renderers: renderers,
		cfg:       cfg,
		now:       time.Now,
		triggerCh: make(chan struct{}, 1),
	}, nil
}

// Status returns the current sync status.
func (p *Poller) Status() SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Refresh asks a running poller to sync now. Requests made while one is
// already pending are coalesced.
func (p *Poller) Refresh() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// SyncOnce fetches the remote tasks, upserts them, and renders the fresh
// views. It returns the number of tasks stored. Renderers only run after a
// successful upsert and their failures are logged, not returned.
func (p *Poller) SyncOnce(ctx context.Context) (int, error) {
	p.setStatus(SyncRunning, 0, nil)

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	payloads, err := p.src.ListAllTasks(fetchCtx, p.cfg.Limit)
	if err != nil {
		err = fmt.Errorf("fetching remote tasks: %w", err)
		p.setStatus(SyncError, 0, err)
		return 0, err
	}

	n, err := p.store.UpsertTasks(fetchCtx, payloads)
	if err != nil {
		err = fmt.Errorf("storing tasks: %w", err)
		p.setStatus(SyncError, 0, err)
		return 0, err
	}

	p.setStatus(SyncIdle, n, nil)
	log.Info().Int("tasks", n).Msg("sync complete")

	p.render(ctx)
	return n, nil
}

// Run syncs immediately, then again at every schedule tick or Refresh call,
// until ctx is cancelled. Failed passes are logged and retried on the next
// tick.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if _, err := p.SyncOnce(ctx); err != nil {
			ev := log.Err(err)
			if source.IsAuthError(err) {
				ev = ev.Bool("auth", true)
			}
			ev.Msg("sync failed")
		}

		next, err := gronx.NextTickAfter(p.cfg.Schedule, p.now().In(p.cfg.Location), false)
		if err != nil {
			return fmt.Errorf("computing next sync: %w", err)
		}
		wait := time.Until(next)
		log.Debug().Time("next", next).Msg("waiting for next sync")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		case <-p.triggerCh:
			timer.Stop()
		}
	}
}

// render hands the current views to every renderer concurrently.
func (p *Poller) render(ctx context.Context) {
	if len(p.renderers) == 0 {
		return
	}

	snap := Snapshot{
		GeneratedAt: p.now().UTC(),
		Status:      p.Status().State.String(),
		Items:       p.store.FetchItemsForDisplay(ctx, p.cfg.DisplayLimit),
		Week:        p.store.FetchWeekCalendar(ctx, store.DefaultCalendarLimit),
	}

	rp := pool.New().WithContext(ctx).WithMaxGoroutines(maxRenderers)
	for _, r := range p.renderers {
		rp.Go(func(ctx context.Context) error {
			return r.Render(ctx, snap)
		})
	}
	if err := rp.Wait(); err != nil {
		log.Err(err).Msg("rendering views")
	}
}

func (p *Poller) setStatus(state SyncState, count int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status.State = state
	p.status.Error = err
	if state == SyncIdle && err == nil {
		p.status.LastSync = p.now()
		p.status.LastCount = count
	}
}

// Snapshot is what renderers receive after a sync.
type Snapshot struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Status      string              `json:"status"`
	Items       []model.DisplayItem `json:"items"`
	Week        model.WeekCalendar  `json:"week"`
}

// Renderer consumes the views produced after a successful sync, e.g. an
// e-paper refresher or a web broadcaster.
type Renderer interface {
	Render(ctx context.Context, snap Snapshot) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, snap Snapshot) error

// Render calls f.
func (f RendererFunc) Render(ctx context.Context, snap Snapshot) error {
	return f(ctx, snap)
}
