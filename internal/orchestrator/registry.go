package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/eosched/internal/config"
	"github.com/me/eosched/pkg/model"
)

// Decision is a processor's answer to a processing request.
type Decision struct {
	model.SchedulingDecision
	Parameters map[string]any
}

// Processor decides whether a processing request becomes a job.
type Processor interface {
	// ID returns the processor identifier requests are keyed by.
	ID() int

	// Name returns a human readable processor name.
	Name() string

	// Decide evaluates one request.
	Decide(ctx context.Context, req model.ProcessingRequest) (Decision, error)
}

// Registry maps processor ids to their Processor implementations.
// Registration happens at startup before concurrent access, so no mutex is needed.
type Registry struct {
	processors map[int]Processor
	logger     *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		processors: make(map[int]Processor),
		logger:     logger.With("component", "processor-registry"),
	}
}

// NewRegistryFromConfig registers a DefaultProcessor per configured processor.
func NewRegistryFromConfig(cfg config.OrchestratorConfig, logger *slog.Logger) (*Registry, error) {
	reg := NewRegistry(logger)
	for i, pc := range cfg.Processors {
		key := fmt.Sprintf("orchestrator.processors[%d]", i)
		if pc.ID <= 0 {
			return nil, model.NewConfigError(key+".id", "must be positive, got %d", pc.ID)
		}
		flags := model.ScheduleNext
		if pc.SchedulingFlags != "" {
			f, err := model.ParseSchedulingFlags(pc.SchedulingFlags)
			if err != nil {
				return nil, &model.ConfigError{Key: key + ".scheduling_flags", Err: err}
			}
			flags = f
		}
		reg.Register(NewDefaultProcessor(pc.ID, pc.Name, flags))
	}
	return reg, nil
}

// Register adds a Processor to the registry, keyed by its ID().
func (r *Registry) Register(p Processor) {
	r.processors[p.ID()] = p
	r.logger.Info("processor registered", "processor_id", p.ID(), "name", p.Name())
}

// Get returns the Processor for id or an error if none is registered.
func (r *Registry) Get(id int) (Processor, error) {
	p, ok := r.processors[id]
	if !ok {
		return nil, fmt.Errorf("no processor registered for id %d", id)
	}
	return p, nil
}

// Len returns the number of registered processors.
func (r *Registry) Len() int {
	return len(r.processors)
}

// DefaultProcessor accepts every request with fixed scheduling flags and
// forwards the request parameters into the job body.
type DefaultProcessor struct {
	id    int
	name  string
	flags model.SchedulingFlags
}

// NewDefaultProcessor creates a DefaultProcessor. Empty flags mean SCHEDULE_NEXT.
func NewDefaultProcessor(id int, name string, flags model.SchedulingFlags) *DefaultProcessor {
	if flags == "" {
		flags = model.ScheduleNext
	}
	if name == "" {
		name = fmt.Sprintf("processor-%d", id)
	}
	return &DefaultProcessor{id: id, name: name, flags: flags}
}

func (p *DefaultProcessor) ID() int      { return p.id }
func (p *DefaultProcessor) Name() string { return p.name }

// Decide implements Processor.
func (p *DefaultProcessor) Decide(_ context.Context, req model.ProcessingRequest) (Decision, error) {
	params, err := req.Parameters()
	if err != nil {
		return Decision{}, err
	}
	return Decision{
		SchedulingDecision: model.SchedulingDecision{IsValid: true, SchedulingFlags: p.flags},
		Parameters:         params,
	}, nil
}
