// advisorctl is the command-line entry point for the advisor runtime.
//
// Architecture:
//
//	main.go                  — entry point: loads config, wires the runtime, waits for SIGINT/SIGTERM
//	internal/config          — YAML + env config for venues, the order-book service, and advisor groups
//	internal/registry        — validates advisor_groups, expands product selectors, builds AdvisorSpecs
//	internal/supervisor      — starts/stops/enumerates advisor.Runtimes from AdvisorSpecs
//	internal/advisor         — the advisor actor: mailbox, staleness-gated dispatch, fault isolation
//	internal/pipeline        — buy/sell/amend/cancel, the order status state machine
//	internal/venue/httpadapter — reference REST venue.Adapter
//	internal/orderbook/httpclient — reference order-book Query client
//	internal/bus              — in-process EventBus every advisor and the pipeline publish/subscribe on
//
// advisorctl ships one reference Advisor (a no-op "noop" type) and one
// reference Factory ("one_per_product") under those config names — real
// strategies are user-supplied Go code that registers its own types into
// advisorTypes/factoryTypes below, since advisors are user code and not
// something a config file can construct on its own.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/LaoKpa/tai/internal/advisor"
	"github.com/LaoKpa/tai/internal/bus"
	"github.com/LaoKpa/tai/internal/config"
	"github.com/LaoKpa/tai/internal/orderbook/httpclient"
	"github.com/LaoKpa/tai/internal/orderstore"
	"github.com/LaoKpa/tai/internal/pipeline"
	"github.com/LaoKpa/tai/internal/registry"
	"github.com/LaoKpa/tai/internal/supervisor"
	"github.com/LaoKpa/tai/internal/telemetry"
	"github.com/LaoKpa/tai/internal/venue"
	"github.com/LaoKpa/tai/internal/venue/httpadapter"
	"github.com/LaoKpa/tai/pkg/types"
)

var advisorTypes = map[string]advisor.Advisor{
	"noop": advisor.BaseAdvisor{},
}

var factoryTypes = map[string]registry.Factory{
	"one_per_product": registry.OnePerProduct{},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "start":
		runStart(os.Args[2:])
	case "stop":
		runStop(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: advisorctl start|stop [flags]")
}

func loadAndValidate(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func productUniverse(cfg *config.Config) []types.Product {
	universe := make([]types.Product, len(cfg.Products))
	for i, p := range cfg.Products {
		universe[i] = types.Product{VenueID: p.Venue, Symbol: p.Symbol}
	}
	return universe
}

// resolveGroups turns config.AdvisorGroups' advisor_type/factory_type
// strings into registry.GroupConfig values via advisorTypes/factoryTypes,
// then parses them through registry.ParseConfig.
func resolveGroups(cfg *config.Config) ([]registry.AdvisorGroup, map[string][]registry.FieldError, error) {
	raw := make(map[string]registry.GroupConfig, len(cfg.AdvisorGroups))
	for id, g := range cfg.AdvisorGroups {
		adv, ok := advisorTypes[g.AdvisorType]
		if !ok {
			return nil, nil, fmt.Errorf("advisor_groups.%s.advisor_type %q is not registered", id, g.AdvisorType)
		}
		factory, ok := factoryTypes[g.FactoryType]
		if !ok {
			return nil, nil, fmt.Errorf("advisor_groups.%s.factory_type %q is not registered", id, g.FactoryType)
		}
		raw[id] = registry.GroupConfig{Advisor: adv, Factory: factory, Products: g.Products, Config: g.Config}
	}

	groups, fieldErrs := registry.ParseConfig(raw)
	return groups, fieldErrs, nil
}

// runStart loads config, wires the full runtime (venue adapters, order-book
// client, event bus, order pipeline, advisor supervisor), starts one
// advisor.Runtime per resolved AdvisorSpec, and blocks until SIGINT/SIGTERM,
// at which point it terminates every running advisor before exiting.
//
// Exit code 0 on a clean run or a clean shutdown; non-zero only if config
// loading/validation/resolution fails before anything starts.
func runStart(args []string) {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	cfgPath := fs.String("config", "configs/config.yaml", "path to config.yaml")
	fs.Parse(args)

	cfg, err := loadAndValidate(*cfgPath)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	logger := newLogger(cfg.Logging)

	groups, fieldErrs, err := resolveGroups(cfg)
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
	if fieldErrs != nil {
		logger.Error("invalid advisor_groups", "errors", fieldErrs)
		os.Exit(1)
	}

	byVenue := make(map[string]venue.Adapter, len(cfg.Venues))
	for id, v := range cfg.Venues {
		byVenue[id] = httpadapter.New(httpadapter.Config{
			BaseURL: v.BaseURL,
			Timeout: v.Timeout,
			DryRun:  cfg.DryRun,
			RateLimits: httpadapter.RateLimits{
				CreateCapacity: v.CreateCapacity, CreateRatePerSec: v.CreateRatePerSec,
				CancelCapacity: v.CancelCapacity, CancelRatePerSec: v.CancelRatePerSec,
				BookCapacity: v.BookCapacity, BookRatePerSec: v.BookRatePerSec,
			},
		}, logger)
	}
	router := venue.NewRouter(byVenue)
	orderBook := httpclient.New(cfg.OrderBook.BaseURL)
	eventBus := bus.NewInProcess()
	sink := telemetry.NewLogSink(logger)
	store := orderstore.New()
	trades := pipeline.New(store, router, eventBus, sink, logger)

	specs := registry.BuildSpecs(groups, productUniverse(cfg))
	for i := range specs {
		specs[i].Trades = trades
	}

	super := supervisor.New(orderBook, eventBus, sink, logger)
	ctx, cancel := context.WithCancel(context.Background())
	result := super.Start(ctx, specs)
	logger.Info("advisors started", "new", result.New, "already_running", result.AlreadyRunning, "dry_run", cfg.DryRun)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	for _, spec := range specs {
		super.Terminate(spec.Address())
	}
	cancel()
}

// runStop resolves a single advisor group (and, optionally, a single
// advisor within it) against config and prints its address. It never
// terminates a live process: this runtime has no cross-process control
// plane, so "stopping" a specific advisor started by a separate `start`
// invocation is left to whatever external supervisor manages that
// process. This command exists to let operator tooling compute the
// address a real control plane would target.
func runStop(args []string) {
	fs := flag.NewFlagSet("stop", flag.ExitOnError)
	cfgPath := fs.String("config", "configs/config.yaml", "path to config.yaml")
	groupID := fs.String("group", "", "advisor group id")
	advisorID := fs.String("advisor-id", "", "advisor id within the group (optional)")
	fs.Parse(args)

	if *groupID == "" {
		slog.Error("stop requires -group")
		os.Exit(1)
	}

	cfg, err := loadAndValidate(*cfgPath)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	groups, fieldErrs, err := resolveGroups(cfg)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	if fieldErrs != nil {
		slog.Error("invalid advisor_groups", "errors", fieldErrs)
		os.Exit(1)
	}

	universe := productUniverse(cfg)
	if *advisorID != "" {
		spec := registry.BuildSpecsForAdvisor(groups, universe, *groupID, *advisorID)
		if spec == nil {
			slog.Error("no such advisor", "group", *groupID, "advisor_id", *advisorID)
			os.Exit(1)
		}
		fmt.Println(spec.Address())
		return
	}

	specs := registry.BuildSpecsForGroup(groups, universe, *groupID)
	if specs == nil {
		slog.Error("no such advisor group", "group", *groupID)
		os.Exit(1)
	}
	for _, spec := range specs {
		fmt.Println(spec.Address())
	}
}
