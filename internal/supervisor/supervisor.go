// Package supervisor starts and stops advisor actors from AdvisorSpecs,
// and reports which addresses are newly started versus already running.
//
// Running advisors live in a map keyed by address and guarded by a
// sync.RWMutex; starting spawns a goroutine, and stopping cancels that
// goroutine's context and waits for it to exit.
package supervisor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/LaoKpa/tai/internal/advisor"
	"github.com/LaoKpa/tai/internal/bus"
	"github.com/LaoKpa/tai/internal/orderbook"
	"github.com/LaoKpa/tai/internal/registry"
	"github.com/LaoKpa/tai/internal/telemetry"
)

// Supervisor starts, stops, and enumerates advisor.Runtimes built from
// registry.AdvisorSpecs. A Supervisor is safe for concurrent use.
type Supervisor struct {
	mu      sync.RWMutex
	running map[string]*advisor.Runtime

	orderBook orderbook.Query
	bus       bus.EventBus
	sink      telemetry.Sink
	logger    *slog.Logger
}

// New creates a Supervisor. orderBook, eventBus, and sink are shared by
// every advisor.Runtime it starts.
func New(orderBook orderbook.Query, eventBus bus.EventBus, sink telemetry.Sink, logger *slog.Logger) *Supervisor {
	return &Supervisor{
		running:   make(map[string]*advisor.Runtime),
		orderBook: orderBook,
		bus:       eventBus,
		sink:      sink,
		logger:    logger.With("component", "supervisor"),
	}
}

// StartResult reports how many specs started a new advisor versus how
// many addresses were already running.
type StartResult struct {
	New            int
	AlreadyRunning int
}

// Start starts one advisor.Runtime per spec whose address is not already
// running.
func (s *Supervisor) Start(ctx context.Context, specs []registry.AdvisorSpec) StartResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result StartResult
	for _, spec := range specs {
		address := spec.Address()
		if _, ok := s.running[address]; ok {
			result.AlreadyRunning++
			continue
		}

		rt := advisor.New(spec.Module, spec.GroupID, spec.AdvisorID, spec.Products, s.orderBook, s.bus, s.sink, s.logger, spec.Config, spec.Trades)
		rt.Start(ctx)
		s.running[address] = rt
		result.New++
		s.logger.Info("advisor started", "address", address)
	}
	return result
}

// Info reports, for every spec, whether its address is currently running.
type Info struct {
	Spec    registry.AdvisorSpec
	Running bool
}

func (s *Supervisor) Info(specs []registry.AdvisorSpec) []Info {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]Info, len(specs))
	for i, spec := range specs {
		_, running := s.running[spec.Address()]
		infos[i] = Info{Spec: spec, Running: running}
	}
	return infos
}

// Terminate stops the advisor at address, if running. Idempotent.
func (s *Supervisor) Terminate(address string) {
	s.mu.Lock()
	rt, ok := s.running[address]
	if ok {
		delete(s.running, address)
	}
	s.mu.Unlock()

	if ok {
		rt.Stop()
		s.logger.Info("advisor stopped", "address", address)
	}
}

// Running reports the number of currently running advisors. Test hook.
func (s *Supervisor) Running() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.running)
}
