// Package processor routes a parsed event through its fixed sequence of steps.
//
// Every step is safe to repeat: redelivery is the only retry. The first failing
// step aborts the rest, so hooks fire only for fully written events.
package processor

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/apperrors"
	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/envelope"
	"github.com/Ramsey-B/clover/pkg/hooks"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Outcome is the terminal state of a handled message
type Outcome int

const (
	// OutcomeCommitted means every step ran and hooks fired.
	OutcomeCommitted Outcome = iota
	// OutcomeRejected means the envelope was malformed. Nothing was written.
	OutcomeRejected
	// OutcomeIgnored means the event kind is unknown. Nothing was written.
	OutcomeIgnored
	// OutcomeFailed means a step failed. Earlier steps may have written.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommitted:
		return "committed"
	case OutcomeRejected:
		return "rejected"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

type Processor struct {
	deps   Dependencies
	routes map[envelope.Kind][]step
	logger ectologger.Logger
}

func New(deps Dependencies, logger ectologger.Logger) *Processor {
	if deps.Breaker == nil {
		deps.Breaker = passthrough{}
	}
	if deps.Hooks == nil {
		deps.Hooks = hooks.NewRegistry(logger)
	}
	p := &Processor{deps: deps, logger: logger}
	p.routes = p.routeTable()
	return p
}

// Steps returns the step names of kind in execution order
func (p *Processor) Steps(kind envelope.Kind) []string {
	names := make([]string, 0, len(p.routes[kind]))
	for _, s := range p.routes[kind] {
		names = append(names, s.name)
	}
	return names
}

// Handle parses payload and runs its route. A nil error means the message may be acknowledged.
func (p *Processor) Handle(ctx context.Context, payload []byte) (Outcome, error) {
	ctx, span := tracing.StartSpan(ctx, "processor.Handle")
	defer span.End()

	ev, err := envelope.Parse(payload)
	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"payload_bytes": len(payload),
		}).Warn("Rejected malformed envelope")
		metrics.RecordMessage("malformed", OutcomeRejected.String())
		return OutcomeRejected, err
	}

	ctx = appctx.SetEventID(ctx, ev.ID)
	ctx = appctx.SetEventName(ctx, ev.Name)
	ctx = appctx.SetEnterpriseID(ctx, ev.EnterpriseID)
	log := p.logger.WithContext(ctx).WithFields(appctx.LogFields(ctx))

	route, ok := p.routes[ev.Kind]
	if !ok {
		log.Info("Ignoring unknown event kind")
		metrics.RecordMessage("unknown", OutcomeIgnored.String())
		return OutcomeIgnored, nil
	}

	st := &state{ev: ev, payload: &hooks.Payload{Kind: ev.Kind, EventID: ev.ID, At: ev.ReceivedAt}}
	for _, s := range route {
		if err := p.runStep(ctx, s, st); err != nil {
			log.WithError(err).WithFields(map[string]any{
				"step":       s.name,
				"storage":    apperrors.IsStorage(err),
				"user_id":    ev.UserID,
				"route_url":  ev.RouteURL,
				"product_id": ev.ProductID,
			}).Errorf("Step %s failed, aborting event", s.name)
			metrics.RecordMessage(ev.Name, OutcomeFailed.String())
			return OutcomeFailed, err
		}
	}

	metrics.RecordMessage(ev.Name, OutcomeCommitted.String())
	return OutcomeCommitted, nil
}

func (p *Processor) runStep(ctx context.Context, s step, st *state) error {
	ctx, span := tracing.StartSpan(ctx, "processor."+s.name)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.RecordStep(st.ev.Name, s.name, time.Since(start).Seconds())
	}()

	if !s.guarded {
		return s.run(ctx, st)
	}
	return p.deps.Breaker.Do(ctx, func(ctx context.Context) error {
		return s.run(ctx, st)
	})
}
