package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goa.design/clue/log"

	sw "github.com/Channel-3-Eugene/streamworker"
	"github.com/Channel-3-Eugene/streamworker/metrics"
	"github.com/Channel-3-Eugene/streamworker/workers"
)

func main() {
	var (
		configF = flag.String("config", "", "YAML file with bridge options")
		demoF   = flag.String("demo", "accumulate", "Demo to run (accumulate|piping|factorize|sensor|primes)")
		dbgF    = flag.Bool("debug", false, "Log handle lifecycle events")
		metF    = flag.Duration("metrics", 0, "Export OpenTelemetry metrics to stderr at this interval (0 disables)")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	demo, ok := demos[*demoF]
	if !ok {
		log.Fatal(ctx, fmt.Errorf("invalid demo: %q (valid demos: accumulate, piping, factorize, sensor, primes)", *demoF))
	}

	opts := sw.DefaultOptions()
	if *configF != "" {
		var err error
		if opts, err = sw.LoadOptions(*configF); err != nil {
			log.Fatal(ctx, err)
		}
	}

	if *metF > 0 {
		mp, err := newMeterProvider(os.Stderr, *metF)
		if err != nil {
			log.Fatal(ctx, err)
		}
		defer func() {
			if err := mp.Shutdown(context.Background()); err != nil {
				log.Error(ctx, err, log.KV{K: "msg", V: "metrics shutdown failed"})
			}
		}()
	}

	m := metrics.NewMetrics(time.Second)
	defer m.Stop()
	reg, err := metrics.RegisterObservers(metrics.Meter(), m)
	if err != nil {
		log.Fatal(ctx, err)
	}
	defer reg.Unregister()

	registry := sw.NewRegistry()
	if err := workers.Register(registry); err != nil {
		log.Fatal(ctx, err)
	}
	if opts.CloseTimeout == 0 {
		opts.CloseTimeout = 5 * time.Second
	}
	bridge := sw.NewBridge(registry, sw.WithOptions(opts), sw.WithMetrics(m))
	super := sw.NewSupervisor("streamworker", bridge, 64)
	go logReports(ctx, super)

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("%s", <-c)
	}()
	go func() {
		errc <- demo(ctx, super)
	}()

	if err := <-errc; err != nil {
		log.Printf(ctx, "exiting (%v)", err)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*opts.CloseTimeout)
	defer cancel()
	if err := super.Stop(stopCtx); err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "some handles did not stop"})
	}

	snap := m.Snapshot()
	log.Print(ctx,
		log.KV{K: "published", V: snap.Published},
		log.KV{K: "delivered", V: snap.Delivered},
		log.KV{K: "dropped", V: snap.Dropped},
		log.KV{K: "failed", V: snap.Errors},
		log.KV{K: "latency-p50", V: snap.LatencyP50.String()},
		log.KV{K: "latency-p99", V: snap.LatencyP99.String()},
	)
	log.Printf(ctx, "exited")
}

func logReports(ctx context.Context, super *sw.Supervisor) {
	for r := range super.Events() {
		if r.Err != nil {
			log.Error(ctx, r.Err, log.KV{K: "worker", V: r.Worker}, log.KV{K: "handle", V: r.HandleID}, log.KV{K: "level", V: r.Level.String()})
			continue
		}
		log.Debug(ctx, log.KV{K: "msg", V: "handle ended"}, log.KV{K: "worker", V: r.Worker}, log.KV{K: "handle", V: r.HandleID})
	}
}
