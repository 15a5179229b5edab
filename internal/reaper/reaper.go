// Package reaper implements the Reaper Loop (C7): a fixed 60s sweep that
// deletes sessions whose running lifetime exceeds their declared maximum
// duration, plus a startup fix-up pass that restores Ingress rules for
// sessions that survived a control-plane restart (spec §4.7).
package reaper

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	apperrors "github.com/streamspace/playground/internal/errors"
	"github.com/streamspace/playground/internal/ingress"
	"github.com/streamspace/playground/internal/metrics"
	"github.com/streamspace/playground/internal/models"
	"github.com/streamspace/playground/internal/session"
)

const tickSchedule = "@every 60s"

// Loop drives the periodic expiry sweep. It shares the Session Orchestrator
// and Ingress Router with the HTTP boundary; no state is held beyond the
// cron scheduler itself.
type Loop struct {
	orchestrator *session.Orchestrator
	ingress      *ingress.Router
	clusterHost  string
	metrics      *metrics.Recorder
	log          *zerolog.Logger

	cron *cron.Cron
}

func New(orchestrator *session.Orchestrator, ingressRouter *ingress.Router, clusterHost string, rec *metrics.Recorder, log *zerolog.Logger) *Loop {
	return &Loop{
		orchestrator: orchestrator,
		ingress:      ingressRouter,
		clusterHost:  clusterHost,
		metrics:      rec,
		log:          log,
		cron:         cron.New(),
	}
}

// Start runs the startup fix-up pass (spec §4.7 step 3), then schedules the
// recurring sweep. Returns once the fix-up pass completes; the recurring
// sweep continues on the cron scheduler's own goroutine.
func (l *Loop) Start(ctx context.Context) error {
	if err := l.fixUp(ctx); err != nil {
		l.log.Error().Err(err).Msg("reaper startup fix-up failed")
	}

	_, err := l.cron.AddFunc(tickSchedule, func() {
		l.tick(context.Background())
	})
	if err != nil {
		return err
	}
	l.cron.Start()
	return nil
}

// Stop waits for the current tick to drain before returning, matching spec
// §4.7's "not cancellable per tick" cancellation contract.
func (l *Loop) Stop() {
	<-l.cron.Stop().Done()
}

// tick implements spec §4.7 steps 1-2: list every session, delete any
// Running session past its max duration. Per-session delete failures are
// logged and do not abort the sweep.
func (l *Loop) tick(ctx context.Context) {
	sessions, err := l.orchestrator.List(ctx, models.Caller{Admin: true})
	if err != nil {
		l.metrics.IncReaperError()
		l.log.Error().Err(err).Msg("reaper tick: failed to list sessions")
		return
	}

	now := time.Now()
	for _, s := range sessions {
		if s.State.Tag != models.SessionRunning || s.State.StartTime == nil {
			continue
		}
		expiry := s.State.StartTime.Time().Add(s.MaxDuration.Duration())
		if now.Before(expiry) {
			continue
		}
		if delErr := l.orchestrator.Delete(ctx, s.ID); delErr != nil {
			l.metrics.IncReaperError()
			l.log.Error().Err(delErr).Str("sessionId", s.ID).Msg("reaper tick: failed to delete expired session")
			continue
		}
		l.metrics.IncReaperDeletion()
		l.log.Info().Str("sessionId", s.ID).Msg("reaper deleted expired session")
	}
}

// fixUp implements spec §4.7 step 3: ensure every Running session has a
// matching Ingress rule, restoring any lost across a control-plane restart
// in a single Ingress replace.
func (l *Loop) fixUp(ctx context.Context) *apperrors.AppError {
	sessions, err := l.orchestrator.List(ctx, models.Caller{Admin: true})
	if err != nil {
		return err
	}

	rules := make([]ingress.Rule, 0, len(sessions))
	for _, s := range sessions {
		if s.State.Tag != models.SessionRunning {
			continue
		}
		rule := ingress.Rule{
			Host:        ingress.Host(s.ID, l.clusterHost),
			ServiceName: session.ExternalServiceName(s.ID),
		}
		if s.State.Runtime != nil {
			for _, p := range s.State.Runtime.Ports {
				rule.ExtraPaths = append(rule.ExtraPaths, ingress.RulePath{Path: p.Path, Port: p.Port})
			}
		}
		rules = append(rules, rule)
	}

	return l.ingress.ReplaceAll(ctx, rules, nil)
}
