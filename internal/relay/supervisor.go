package relay

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/bgpmon/bgpmon-filter/internal/config"
	"github.com/bgpmon/bgpmon-filter/internal/debugsrv"
	"github.com/bgpmon/bgpmon-filter/internal/filter"
	"github.com/bgpmon/bgpmon-filter/internal/relay/filesink"
	"github.com/bgpmon/bgpmon-filter/internal/relay/kafkasink"
	"github.com/bgpmon/bgpmon-filter/internal/upstream"
)

// Supervisor is spec.md §4.7: wires every component, owns the shared
// shutdown signal, joins workers, and reports the process exit code. It
// generalizes the started/stopped/running atomic-bool lifecycle the
// teacher's core/run.go uses per stage to this module's fixed,
// non-pluggable topology.
type Supervisor struct {
	cfg *config.Config
	log zerolog.Logger

	shutdown atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup

	upstreamClient *upstream.Client
	listener       net.Listener
	fileSink       *filesink.Sink
	kafkaSink      *kafkasink.Sink
	debugHTTP      *http.Server

	registry *Registry
}

func New(cfg *config.Config, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		cfg:      cfg,
		log:      log,
		done:     make(chan struct{}),
		registry: NewRegistry(),
	}
}

// registrySnapshotAdapter satisfies debugsrv.SubscriberLister without
// debugsrv importing this package back.
type registrySnapshotAdapter struct{ r *Registry }

func (a registrySnapshotAdapter) Snapshot() []debugsrv.Subscriber {
	stats := a.r.Snapshot()
	out := make([]debugsrv.Subscriber, len(stats))
	for i, s := range stats {
		out[i] = debugsrv.Subscriber{ID: s.ID, Remote: s.Remote, Drops: s.Drops}
	}
	return out
}

// Run performs startup (any failure here returns a non-nil error and the
// caller should exit(1), per spec.md §6's exit code table), then blocks
// until a signal, upstream disconnect, or fatal error requests shutdown,
// then joins every worker and releases resources. It returns nil on a
// graceful shutdown.
func (sup *Supervisor) Run() error {
	filterStore := filter.New()
	if err := filterStore.Load(sup.cfg.PrefixFile); err != nil {
		return fmt.Errorf("load rule file: %w", err)
	}
	sup.log.Info().
		Int("v4", filterStore.CountV4()).Int("v6", filterStore.CountV6()).
		Int("as", filterStore.CountAS()).Int("host", filterStore.CountHost()).
		Msg("rule set loaded")

	if sup.cfg.OutputFile != "" {
		fs, err := filesink.Open(sup.cfg.OutputFile, sup.cfg.OutputCompress)
		if err != nil {
			return fmt.Errorf("open output file: %w", err)
		}
		sup.fileSink = fs
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", sup.cfg.ListeningPort))
	if err != nil {
		return fmt.Errorf("bind listening port: %w", err)
	}
	sup.listener = ln

	upc := upstream.New(sup.cfg.Server, sup.cfg.Port)
	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 10*time.Second)
	err = upc.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		return fmt.Errorf("connect upstream: %w", err)
	}
	sup.upstreamClient = upc

	if len(sup.cfg.KafkaBrokers) > 0 && sup.cfg.KafkaTopic != "" {
		ks, err := kafkasink.Dial(context.Background(), sup.cfg.KafkaBrokers, sup.cfg.KafkaTopic, sup.log)
		if err != nil {
			sup.log.Error().Err(err).Msg("kafka sink disabled: dial failed")
		} else {
			sup.kafkaSink = ks
		}
	}

	activeRegistry.Store(sup.registry)

	var mirror func([]byte)
	if sup.cfg.DebugListen != "" {
		debugSrv := debugsrv.New(registrySnapshotAdapter{sup.registry}, sup.log)
		mirror = debugSrv.Mirror
		sup.debugHTTP = &http.Server{Addr: sup.cfg.DebugListen, Handler: debugSrv.Handler()}
		go func() {
			if err := sup.debugHTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				sup.log.Error().Err(err).Msg("debug server exited")
			}
		}()
	}

	sup.installSignalHandlers()

	queue := make(chan []byte, 4096)

	reader := upstream.NewReader(upc, queue, sup.log, sup.triggerShutdown)
	worker := NewWorker(WorkerConfig{
		Filter:    filterStore,
		Queue:     queue,
		Registry:  sup.registry,
		Stdout:    sup.cfg.Stdout,
		FileSink:  sinkOrNil(sup.fileSink),
		KafkaSink: sinkOrNilKafka(sup.kafkaSink),
		Mirror:    mirror,
		Log:       sup.log,
	})
	acceptor := NewAcceptor(ln, sup.registry, sup.cfg.SubscriberQueueLen, sup.log)

	sup.wg.Add(3)
	go func() { defer sup.wg.Done(); reader.Run(sup.done) }()
	go func() { defer sup.wg.Done(); worker.Run(sup.done) }()
	go func() {
		defer sup.wg.Done()
		acceptor.Run(sup.done, func(sub *subscriber) {
			RunHandler(sub, sup.registry, sup.done, sup.log)
		})
	}()

	// the listener's Accept only unblocks on its own Close, not on sup.done,
	// so close it explicitly once shutdown is requested.
	go func() {
		<-sup.done
		ln.Close()
	}()

	sup.wg.Wait()
	sup.closeResources()
	return nil
}

func sinkOrNil(s *filesink.Sink) FileSink {
	if s == nil {
		return nil
	}
	return s
}

func sinkOrNilKafka(s *kafkasink.Sink) KafkaSink {
	if s == nil {
		return nil
	}
	return s
}

func (sup *Supervisor) installSignalHandlers() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		s := <-sig
		sup.log.Info().Stringer("signal", s).Msg("shutdown requested")
		sup.triggerShutdown()
	}()
}

// triggerShutdown is the single shared shutdown flag of spec.md §5, safe
// to call from any goroutine (signal handler, upstream disconnect).
func (sup *Supervisor) triggerShutdown() {
	if !sup.shutdown.Swap(true) {
		close(sup.done)
	}
}

func (sup *Supervisor) closeResources() {
	if sup.upstreamClient != nil {
		sup.upstreamClient.Close()
	}
	if sup.fileSink != nil {
		sup.fileSink.Close()
	}
	if sup.kafkaSink != nil {
		sup.kafkaSink.Close()
	}
	if sup.debugHTTP != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sup.debugHTTP.Shutdown(ctx)
	}
}
