// Package hooks is the post-commit callback registry. Callbacks are registered
// once at startup per event kind and run sequentially in registration order.
// A failing callback never stops the ones after it.
package hooks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/apperrors"
	"github.com/Ramsey-B/clover/pkg/envelope"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Payload carries the resolved entities of a committed event
type Payload struct {
	Kind       envelope.Kind
	EventID    string
	At         time.Time
	Enterprise *models.Enterprise
	User       *models.User
	APIEvent   *models.APIEvent
	Product    *models.Product
	Page       *models.Page
	Categories []models.Taxon
	Tags       []models.Taxon
}

type Func func(ctx context.Context, p *Payload) error

type hook struct {
	name string
	fn   Func
}

type Registry struct {
	mu     sync.RWMutex
	hooks  map[envelope.Kind][]hook
	logger ectologger.Logger
}

func NewRegistry(logger ectologger.Logger) *Registry {
	return &Registry{
		hooks:  make(map[envelope.Kind][]hook),
		logger: logger,
	}
}

// Register appends fn to the callbacks of kind
func (r *Registry) Register(kind envelope.Kind, name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[kind] = append(r.hooks[kind], hook{name: name, fn: fn})
}

// Names returns the callback names of kind in execution order
func (r *Registry) Names(kind envelope.Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.hooks[kind]))
	for _, h := range r.hooks[kind] {
		names = append(names, h.name)
	}
	return names
}

// Fire runs every callback of kind. The returned errors are the isolated
// callback failures, already logged; they are informational only.
func (r *Registry) Fire(ctx context.Context, kind envelope.Kind, p *Payload) []error {
	ctx, span := tracing.StartSpan(ctx, "hooks.Registry.Fire")
	defer span.End()

	r.mu.RLock()
	hooks := append([]hook(nil), r.hooks[kind]...)
	r.mu.RUnlock()

	var errs []error
	for _, h := range hooks {
		if err := r.run(ctx, kind, h, p); err != nil {
			hookErr := &apperrors.HookExecutionError{Hook: h.name, Kind: kind.HookName(), Err: err}
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"hook":     h.name,
				"event":    kind.String(),
				"event_id": p.EventID,
			}).Error(hookErr.Error())
			metrics.RecordHookFailure(kind.String(), h.name)
			errs = append(errs, hookErr)
		}
	}
	return errs
}

func (r *Registry) run(ctx context.Context, kind envelope.Kind, h hook, p *Payload) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	ctx, span := tracing.StartSpan(ctx, "hooks."+kind.HookName()+"."+h.name)
	defer span.End()

	return h.fn(ctx, p)
}
