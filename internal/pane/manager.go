package pane

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSettle is how long a reused pane gets to unwind after the interrupt
// before the new command is typed into it.
const DefaultSettle = 150 * time.Millisecond

// Result describes what Spawn did.
type Result struct {
	Record Record
	Reused bool
}

// Manager owns the pane lifecycle: at most one recorded pane, reused while it
// is alive and replaced when it is gone.
type Manager struct {
	registry Registry
	muxes    []Multiplexer
	settle   time.Duration
	log      zerolog.Logger

	sleep func(context.Context, time.Duration) error
}

// NewManager builds a Manager. muxes are tried in order during detection.
func NewManager(reg Registry, settle time.Duration, log zerolog.Logger, muxes ...Multiplexer) *Manager {
	if settle < 0 {
		settle = 0
	}
	return &Manager{
		registry: reg,
		muxes:    muxes,
		settle:   settle,
		log:      log.With().Str("component", "pane").Logger(),
		sleep:    sleepContext,
	}
}

// Spawn runs command in the recorded pane when it is still alive, otherwise
// in a new split whose id is recorded. It fails with ErrNoMultiplexer when
// no multiplexer is usable; nothing is created in that case.
func (m *Manager) Spawn(ctx context.Context, command string) (Result, error) {
	mux, err := Detect(ctx, m.muxes...)
	if err != nil {
		return Result{}, err
	}

	rec, ok, err := m.registry.Load(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("unreadable pane record, treating as absent")
		ok = false
	}
	if ok {
		if rec.Kind == mux.Kind() && mux.Alive(ctx, rec.ID) {
			err := m.reuse(ctx, mux, rec, command)
			if err == nil {
				m.log.Info().Str("pane", rec.ID).Msg("reused pane")
				return Result{Record: rec, Reused: true}, nil
			}
			m.log.Debug().Err(err).Str("pane", rec.ID).Msg("reuse failed, creating a new pane")
		} else {
			m.log.Debug().Str("pane", rec.ID).Str("kind", string(rec.Kind)).Msg("discarding stale pane record")
		}
		if err := m.registry.Clear(ctx); err != nil {
			m.log.Debug().Err(err).Msg("clear pane record")
		}
	}

	id, err := mux.CreateSplit(ctx, command)
	if err != nil {
		return Result{}, fmt.Errorf("create pane: %w", err)
	}
	rec = Record{ID: id, Kind: mux.Kind()}
	if err := m.registry.Save(ctx, rec); err != nil {
		return Result{Record: rec}, fmt.Errorf("save pane record: %w", err)
	}
	m.log.Info().Str("pane", id).Str("kind", string(rec.Kind)).Msg("created pane")
	return Result{Record: rec}, nil
}

// reuse interrupts whatever runs in the pane and types command into it.
// Only a failure to send the command is reported.
func (m *Manager) reuse(ctx context.Context, mux Multiplexer, rec Record, command string) error {
	if err := mux.Interrupt(ctx, rec.ID); err != nil {
		m.log.Debug().Err(err).Str("pane", rec.ID).Msg("interrupt")
	}
	if err := m.sleep(ctx, m.settle); err != nil {
		return err
	}
	return mux.SendKeys(ctx, rec.ID, command)
}

// Close destroys the recorded pane if it is still alive and forgets it.
// Multiplexer failures are ignored; with no record it does nothing.
func (m *Manager) Close(ctx context.Context) error {
	rec, ok, err := m.registry.Load(ctx)
	if err != nil {
		m.log.Warn().Err(err).Msg("unreadable pane record, clearing")
		return m.registry.Clear(ctx)
	}
	if !ok {
		return nil
	}
	if mux, known := ByKind(rec.Kind, m.muxes...); known && mux.Alive(ctx, rec.ID) {
		if err := mux.Destroy(ctx, rec.ID); err != nil {
			m.log.Debug().Err(err).Str("pane", rec.ID).Msg("destroy pane")
		} else {
			m.log.Info().Str("pane", rec.ID).Msg("closed pane")
		}
	}
	return m.registry.Clear(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
