// Package monitor schedules the collection rounds and feeds their
// events into the writer. Each monitor runs in its own goroutine behind
// a fault barrier: a panicking or failing round is logged and the loop
// keeps its cadence.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/akorchagin/hostsentry/internal/collector"
	"github.com/akorchagin/hostsentry/internal/model"
)

// EventSink is where collected events go; the storage writer satisfies
// it.
type EventSink interface {
	Enqueue(ev model.UnifiedEvent) error
}

// Intervals sets the cadence of each monitor. Zero fields get the
// defaults from DefaultIntervals.
type Intervals struct {
	Process  time.Duration
	Service  time.Duration
	Hardware time.Duration
	Malware  time.Duration

	// NetworkRestart is the delay before reopening a dead capture
	// stream.
	NetworkRestart time.Duration
}

// DefaultIntervals matches the daemon's standing cadence.
func DefaultIntervals() Intervals {
	return Intervals{
		Process:        10 * time.Second,
		Service:        30 * time.Second,
		Hardware:       15 * time.Second,
		Malware:        60 * time.Second,
		NetworkRestart: 2 * time.Second,
	}
}

// Options configures the supervisor.
type Options struct {
	Collector collector.Collector
	Sink      EventSink
	Intervals Intervals

	// ServiceLimit caps service records per round. Default 50.
	ServiceLimit int

	// CPUThreshold and MemThreshold gate hardware-spike emission.
	CPUThreshold float64
	MemThreshold float64

	Logger zerolog.Logger
}

// Supervisor owns the monitor goroutines.
type Supervisor struct {
	opts Options
	wg   sync.WaitGroup
}

func New(opts Options) *Supervisor {
	def := DefaultIntervals()
	if opts.Intervals.Process <= 0 {
		opts.Intervals.Process = def.Process
	}
	if opts.Intervals.Service <= 0 {
		opts.Intervals.Service = def.Service
	}
	if opts.Intervals.Hardware <= 0 {
		opts.Intervals.Hardware = def.Hardware
	}
	if opts.Intervals.Malware <= 0 {
		opts.Intervals.Malware = def.Malware
	}
	if opts.Intervals.NetworkRestart <= 0 {
		opts.Intervals.NetworkRestart = def.NetworkRestart
	}
	if opts.ServiceLimit <= 0 {
		opts.ServiceLimit = 50
	}
	if opts.CPUThreshold <= 0 {
		opts.CPUThreshold = 40
	}
	if opts.MemThreshold <= 0 {
		opts.MemThreshold = 40
	}
	return &Supervisor{opts: opts}
}

// Run starts all monitors and blocks until the context is cancelled and
// every monitor has returned.
func (s *Supervisor) Run(ctx context.Context) {
	c := s.opts.Collector
	iv := s.opts.Intervals

	s.spawn(ctx, "process", iv.Process, func(ctx context.Context) error {
		events, err := c.CollectProcessEvents(ctx)
		if err != nil {
			return err
		}
		s.enqueueAll(events)
		return nil
	})

	s.spawn(ctx, "service", iv.Service, func(ctx context.Context) error {
		events, err := c.CollectServiceEvents(ctx, s.opts.ServiceLimit)
		if err != nil {
			return err
		}
		s.enqueueAll(events)
		return nil
	})

	s.spawn(ctx, "hardware", iv.Hardware, func(ctx context.Context) error {
		events, err := c.CollectHardwareEvents(ctx, s.opts.CPUThreshold, s.opts.MemThreshold)
		if err != nil {
			return err
		}
		s.enqueueAll(events)
		return nil
	})

	s.spawn(ctx, "malware", iv.Malware, func(ctx context.Context) error {
		events, err := c.CollectMalwareEvents(ctx)
		if err != nil {
			return err
		}
		s.enqueueAll(events)
		return nil
	})

	s.wg.Add(1)
	go s.runNetwork(ctx)

	s.wg.Wait()
}

// spawn runs one snapshot monitor: collect, sleep, repeat. The round
// runs inside a recover so a panic costs one round, not the monitor.
func (s *Supervisor) spawn(ctx context.Context, name string, interval time.Duration, round func(context.Context) error) {
	s.wg.Add(1)
	log := s.opts.Logger.With().Str("monitor", name).Logger()

	go func() {
		defer s.wg.Done()
		log.Info().Dur("interval", interval).Msg("monitor started")

		for {
			s.safeRound(log, ctx, round)
			select {
			case <-ctx.Done():
				log.Info().Msg("monitor stopped")
				return
			case <-time.After(interval):
			}
		}
	}()
}

func (s *Supervisor) safeRound(log zerolog.Logger, ctx context.Context, round func(context.Context) error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("collection round panicked")
		}
	}()
	if err := round(ctx); err != nil && ctx.Err() == nil {
		log.Warn().Err(err).Msg("collection round failed")
	}
}

// runNetwork consumes the packet stream, reopening it after failures.
// The capture handle itself blocks in its own OS thread inside the
// collector; this loop only drains the channel.
func (s *Supervisor) runNetwork(ctx context.Context) {
	defer s.wg.Done()
	log := s.opts.Logger.With().Str("monitor", "network").Logger()
	log.Info().Msg("monitor started")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("monitor stopped")
			return
		}

		stream, err := s.opts.Collector.CollectNetworkEvents(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("capture open failed, retrying")
		} else {
			for ev := range stream {
				s.enqueue(ev)
			}
			if ctx.Err() == nil {
				log.Warn().Msg("capture stream ended, reopening")
			}
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("monitor stopped")
			return
		case <-time.After(s.opts.Intervals.NetworkRestart):
		}
	}
}

func (s *Supervisor) enqueueAll(events []model.UnifiedEvent) {
	for _, ev := range events {
		s.enqueue(ev)
	}
}

func (s *Supervisor) enqueue(ev model.UnifiedEvent) {
	if err := s.opts.Sink.Enqueue(ev); err != nil {
		s.opts.Logger.Warn().Err(err).Str("type", string(ev.Type)).Msg("event not accepted")
	}
}
