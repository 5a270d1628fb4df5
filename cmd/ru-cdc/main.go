// Command ru-cdc streams row-level changes off a MySQL binlog and
// republishes them as Canal-compatible JSON records to configured Kafka
// or Redis sinks, optionally exposing a local HTTP status/SSE surface
// for the companion ru-cdc-tui dashboard.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/ipconfiger/ru-cdc/internal/admin"
	"github.com/ipconfiger/ru-cdc/internal/broker"
	"github.com/ipconfiger/ru-cdc/internal/config"
	"github.com/ipconfiger/ru-cdc/internal/dispatch"
	"github.com/ipconfiger/ru-cdc/internal/ingest"
	"github.com/ipconfiger/ru-cdc/internal/logging"
	"github.com/ipconfiger/ru-cdc/internal/position"
	"github.com/ipconfiger/ru-cdc/internal/schema"
	"github.com/ipconfiger/ru-cdc/internal/sink"
	"github.com/ipconfiger/ru-cdc/internal/stats"
)

var version = "dev"

func main() {
	fs := flag.NewFlagSet("ru-cdc", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "ru-cdc — MySQL binlog CDC agent\n\nUsage:\n  ru-cdc -c config.json -s\n  ru-cdc -g config.json\n\nFlags:\n")
		fs.PrintDefaults()
	}

	cfgPath := fs.String("c", "", "path to the JSON config file")
	fs.StringVar(cfgPath, "config", "", "path to the JSON config file (alias for -c)")
	serve := fs.Bool("s", false, "run the agent, streaming from the configured database")
	fs.BoolVar(serve, "serve", false, "run the agent (alias for -s)")
	gen := fs.String("g", "", "write a default config file to this path and exit")
	fs.StringVar(gen, "gen", "", "write a default config file to this path and exit (alias for -g)")
	adminAddr := fs.String("admin-addr", "", "bind the admin HTTP/SSE server to this address (disabled unless set)")
	showVersion := fs.Bool("version", false, "show version and exit")

	_ = fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("ru-cdc %s\n", version)
		return
	}

	if *gen != "" {
		if err := config.Generate(*gen); err != nil {
			logging.Fatalf("%v", err)
		}
		fmt.Printf("wrote default config to %s\n", *gen)
		return
	}

	if !*serve || *cfgPath == "" {
		fs.Usage()
		os.Exit(1)
	}

	if err := run(*cfgPath, *adminAddr); err != nil {
		logging.Fatalf("%v", err)
	}
}

func run(cfgPath, adminAddr string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	metaPath, err := position.DefaultMetaPath()
	if err != nil {
		return err
	}
	posMgr := position.NewManager(metaPath)
	if err := posMgr.LoadFromFile(); err != nil {
		logging.Warnf("position: %v", err)
	}
	go posMgr.Run()
	defer posMgr.Stop()

	collector := stats.NewCollector(5 * time.Second)
	gcCtx, stopGC := context.WithCancel(ctx)
	defer stopGC()
	go collector.WatchGC(gcCtx, 10*time.Second)

	b := broker.New(256)

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/", cfg.UserName, cfg.Passwd, cfg.DBIP, cfg.DBPort)
	resolver, err := schema.NewResolver(dsn)
	if err != nil {
		return fmt.Errorf("open schema resolver: %w", err)
	}
	defer func() { _ = resolver.Close() }()

	router, sinks, err := buildSinks(cfg, posMgr)
	if err != nil {
		return err
	}
	for _, s := range sinks {
		go s.Run(ctx)
	}
	defer func() {
		for _, s := range sinks {
			s.Close()
		}
	}()

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool := dispatch.NewPool(workers, 256, cfg.Instances, resolver, router, b)
	go pool.Run(ctx)
	defer pool.Close()

	var adminSrv *admin.Server
	if adminAddr != "" {
		adminSrv = admin.New(b, posMgr, collector)
		var lc net.ListenConfig
		lis, err := lc.Listen(ctx, "tcp", adminAddr)
		if err != nil {
			return fmt.Errorf("listen admin %s: %w", adminAddr, err)
		}
		go func() {
			logging.Infof("admin server listening on %s", adminAddr)
			if err := adminSrv.Serve(lis); err != nil {
				logging.Errorf("admin serve: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = adminSrv.Shutdown(shutdownCtx)
		}()
	}

	ingestCfg := ingest.Config{
		Addr:      fmt.Sprintf("%s:%d", cfg.DBIP, cfg.DBPort),
		User:      cfg.UserName,
		Password:  cfg.Passwd,
		ServerID:  1001,
		FromStart: cfg.FromStart,
	}
	go ingest.RunKeepalive(ctx, ingestCfg)

	loop := ingest.New(ingestCfg, pool, posMgr, collector, b)
	logging.Infof("ru-cdc streaming %s -> %d sink(s)", ingestCfg.Addr, len(sinks))
	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	return nil
}

// buildSinks constructs one sink.Sink per configured MQ, wires its
// PositionNotifier to advance the persisted checkpoint on every
// successful publish, and registers it on a Router under every
// instance name that targets it.
func buildSinks(cfg *config.Config, posMgr *position.Manager) (*sink.Router, []sink.Sink, error) {
	router := sink.NewRouter()
	notify := func(file string, offset uint32) { posMgr.UpdateOffset(offset) }

	sinks := make([]sink.Sink, 0, len(cfg.MQs))
	for _, mq := range cfg.MQs {
		var s sink.Sink
		switch {
		case mq.Config.Kafka != nil:
			s = sink.NewKafkaSink(mq.Name, mq.Config.Kafka.Brokers, mq.Config.Kafka.QueueBufferingMax, notify)
		case mq.Config.Redis != nil:
			addr := fmt.Sprintf("%s:%d", mq.Config.Redis.IP, mq.Config.Redis.Port)
			s = sink.NewRedisSink(mq.Name, addr, 1024, notify)
		default:
			return nil, nil, fmt.Errorf("config: mq %q has no backend configured", mq.Name)
		}
		sinks = append(sinks, s)
		router.Register(mq.Name, s)
	}
	return router, sinks, nil
}
