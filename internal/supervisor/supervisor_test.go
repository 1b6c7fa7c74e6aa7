package supervisor

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/LaoKpa/tai/internal/advisor"
	"github.com/LaoKpa/tai/internal/bus"
	"github.com/LaoKpa/tai/internal/registry"
	"github.com/LaoKpa/tai/internal/telemetry"
	"github.com/LaoKpa/tai/pkg/types"
)

type stubQuery struct{}

func (stubQuery) InsideQuote(ctx context.Context, venueID, symbol string) (types.MarketQuote, error) {
	return types.MarketQuote{}, nil
}

type stubAdvisor struct{ advisor.BaseAdvisor }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSpecs() []registry.AdvisorSpec {
	return []registry.AdvisorSpec{
		{Module: stubAdvisor{}, GroupID: "group_a", AdvisorID: "1"},
		{Module: stubAdvisor{}, GroupID: "group_a", AdvisorID: "2"},
	}
}

func TestStartCountsNewAdvisors(t *testing.T) {
	t.Parallel()
	s := New(stubQuery{}, bus.NewInProcess(), telemetry.NopSink{}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := s.Start(ctx, testSpecs())
	if result.New != 2 || result.AlreadyRunning != 0 {
		t.Errorf("result = %+v, want {New:2 AlreadyRunning:0}", result)
	}
	if s.Running() != 2 {
		t.Errorf("Running() = %d, want 2", s.Running())
	}
}

func TestStartTwiceCountsAlreadyRunning(t *testing.T) {
	t.Parallel()
	s := New(stubQuery{}, bus.NewInProcess(), telemetry.NopSink{}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Start(ctx, testSpecs())
	result := s.Start(ctx, testSpecs())
	if result.New != 0 || result.AlreadyRunning != 2 {
		t.Errorf("result = %+v, want {New:0 AlreadyRunning:2}", result)
	}
}

func TestInfoReportsRunningState(t *testing.T) {
	t.Parallel()
	s := New(stubQuery{}, bus.NewInProcess(), telemetry.NopSink{}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	specs := testSpecs()

	s.Start(ctx, specs[:1])
	infos := s.Info(specs)
	if len(infos) != 2 {
		t.Fatalf("expected 2 infos, got %d", len(infos))
	}
	if !infos[0].Running {
		t.Error("expected specs[0] to be running")
	}
	if infos[1].Running {
		t.Error("expected specs[1] to not be running")
	}
}

func TestTerminateStopsAndIsIdempotent(t *testing.T) {
	t.Parallel()
	s := New(stubQuery{}, bus.NewInProcess(), telemetry.NopSink{}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	specs := testSpecs()

	s.Start(ctx, specs)
	address := specs[0].Address()

	s.Terminate(address)
	if s.Running() != 1 {
		t.Errorf("Running() = %d, want 1 after terminating one advisor", s.Running())
	}

	s.Terminate(address) // idempotent, must not panic
	if s.Running() != 1 {
		t.Errorf("Running() = %d, want 1 after redundant terminate", s.Running())
	}
}
