// Package runtime implements the EtherIP forwarding engine: the set of
// TAP interfaces a configuration declares, the single raw EtherIP
// socket they share, and the reload state machine that tears down and
// rebuilds the forwarding goroutines whenever the configuration changes.
//
// The reconcile-then-spawn-then-wait-for-reload loop follows a
// signal.NotifyContext plus SIGHUP-goroutine shape, adapted here into a
// coalescing reload channel since a daemon config reload is a single
// logical event, not a stream.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/menhera-org/etherip-rs/internal/config"
	"github.com/menhera-org/etherip-rs/internal/metrics"
)

// TapDevice is the subset of *tap.Device the forwarding engine depends
// on, reduced to an interface so tests can substitute an in-memory fake.
type TapDevice interface {
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	SetReadDeadline(t time.Time) error
	Close() error
}

// EtherIPSocket is the subset of *rawsock.Socket the forwarding engine
// depends on.
type EtherIPSocket interface {
	SendTo(buf []byte, addr netip.Addr) (int, error)
	RecvFrom(buf []byte) (int, netip.Addr, error)
	SetReadDeadline(t time.Time) error
}

// OpenTapFunc opens (or re-attaches to) a persistent TAP interface named
// name, matching tap.Open.
type OpenTapFunc func(name string) (TapDevice, error)

// DeleteTapFunc clears a TAP interface's persistent bit, matching
// tap.Delete.
type DeleteTapFunc func(name string) error

// InterfaceState pairs one link's TAP device with its currently resolved
// remote address. The remote address is read far more often (every
// forwarded frame) than it is written (every DNS refresh tick), so it is
// held in an atomic.Pointer rather than behind a mutex — the Go
// equivalent of the original implementation's Arc<RwLock<Option<IpAddr>>>.
type InterfaceState struct {
	name   string
	tap    TapDevice
	remote atomic.Pointer[netip.Addr]
}

func newInterfaceState(name string, dev TapDevice) *InterfaceState {
	return &InterfaceState{name: name, tap: dev}
}

// Name returns the link name this state was created for.
func (s *InterfaceState) Name() string {
	return s.name
}

// RemoteAddr returns the currently resolved remote address, if any.
func (s *InterfaceState) RemoteAddr() (netip.Addr, bool) {
	p := s.remote.Load()
	if p == nil {
		return netip.Addr{}, false
	}
	return *p, true
}

// SetRemoteAddr records a newly resolved remote address.
func (s *InterfaceState) SetRemoteAddr(addr netip.Addr) {
	s.remote.Store(&addr)
}

// InterfaceTable is the name -> InterfaceState registry, guarded for
// concurrent access from the reconciler, the DNS refresher, and the
// per-link reader goroutines.
type InterfaceTable struct {
	mu sync.RWMutex
	m  map[string]*InterfaceState
}

func newInterfaceTable() *InterfaceTable {
	return &InterfaceTable{m: make(map[string]*InterfaceState)}
}

func (t *InterfaceTable) get(name string) (*InterfaceState, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.m[name]
	return s, ok
}

func (t *InterfaceTable) set(name string, s *InterfaceState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.m[name] = s
}

func (t *InterfaceTable) delete(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, name)
}

func (t *InterfaceTable) names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.m))
	for name := range t.m {
		names = append(names, name)
	}
	return names
}

// RemoteMap is the reverse index the EtherIP socket reader uses to
// dispatch an inbound datagram to the TAP interface whose link the
// sender's address currently belongs to.
type RemoteMap struct {
	mu sync.RWMutex
	m  map[netip.Addr]*InterfaceState
}

func newRemoteMap() *RemoteMap {
	return &RemoteMap{m: make(map[netip.Addr]*InterfaceState)}
}

// Get looks up the interface currently associated with addr.
func (r *RemoteMap) Get(addr netip.Addr) (*InterfaceState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.m[addr]
	return s, ok
}

func (r *RemoteMap) insert(addr netip.Addr, s *InterfaceState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[addr] = s
}

func (r *RemoteMap) remove(addr netip.Addr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.m, addr)
}

// Runtime owns the forwarding engine's full lifecycle: config load,
// reconciliation, per-generation goroutines, and SIGHUP-triggered
// reload.
type Runtime struct {
	configPath string
	logger     *slog.Logger
	levelVar   *slog.LevelVar
	metrics    *metrics.Collector
	socket     EtherIPSocket
	openTap    OpenTapFunc
	deleteTap  DeleteTapFunc

	table   *InterfaceTable
	remotes *RemoteMap

	currentCfg atomic.Pointer[config.Config]
	// reload is a capacity-1 coalescing channel: multiple SIGHUPs that
	// arrive before the main loop observes the first one collapse into a
	// single reload, since what matters is "configuration changed since
	// last observed", not how many times it changed.
	reload chan struct{}
}

// New builds a Runtime. socket is shared across every generation;
// openTap/deleteTap are injected so tests can substitute in-memory fakes
// for the real /dev/net/tun-backed implementations.
func New(
	configPath string,
	socket EtherIPSocket,
	openTap OpenTapFunc,
	deleteTap DeleteTapFunc,
	logger *slog.Logger,
	levelVar *slog.LevelVar,
	collector *metrics.Collector,
) *Runtime {
	return &Runtime{
		configPath: configPath,
		logger:     logger,
		levelVar:   levelVar,
		metrics:    collector,
		socket:     socket,
		openTap:    openTap,
		deleteTap:  deleteTap,
		table:      newInterfaceTable(),
		remotes:    newRemoteMap(),
		reload:     make(chan struct{}, 1),
	}
}

// Run loads the initial configuration, then alternates between running
// one "generation" of forwarding goroutines and waiting for either ctx
// cancellation or a successful SIGHUP reload. It returns when ctx is
// cancelled.
func (rt *Runtime) Run(ctx context.Context) error {
	cfg, err := config.Load(rt.configPath)
	if err != nil {
		return fmt.Errorf("runtime: initial configuration load: %w", err)
	}
	rt.currentCfg.Store(cfg)
	rt.levelVar.Set(cfg.Level().SlogLevel())

	sigHUP := make(chan os.Signal, 1)
	signal.Notify(sigHUP, syscall.SIGHUP)
	defer signal.Stop(sigHUP)

	go rt.watchSIGHUP(ctx, sigHUP)

	for {
		cfg := rt.currentCfg.Load()

		if err := rt.reconcile(cfg); err != nil {
			return fmt.Errorf("runtime: reconcile: %w", err)
		}
		rt.metrics.SetLinksConfigured(len(cfg.Links))

		genCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			rt.runGeneration(genCtx, cfg)
			close(done)
		}()

		select {
		case <-ctx.Done():
			cancel()
			<-done
			return ctx.Err()
		case <-rt.reload:
			rt.logger.Info("reloading forwarding generation")
			cancel()
			<-done
		}
	}
}

// watchSIGHUP reloads the configuration file on every SIGHUP. A failed
// reload is logged and otherwise ignored: the previous configuration,
// and the generation running it, remain in effect untouched.
func (rt *Runtime) watchSIGHUP(ctx context.Context, sig <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sig:
			rt.logger.Info("received SIGHUP, reloading configuration")

			cfg, err := config.Load(rt.configPath)
			if err != nil {
				rt.logger.Warn("failed to reload configuration, keeping current settings",
					slog.String("error", err.Error()))
				rt.metrics.RecordReload(false)
				continue
			}

			oldLevel := rt.levelVar.Level()
			newLevel := cfg.Level().SlogLevel()
			rt.levelVar.Set(newLevel)
			rt.metrics.RecordReload(true)

			rt.logger.Info("configuration reloaded",
				slog.String("old_log_level", oldLevel.String()),
				slog.String("new_log_level", newLevel.String()))

			rt.currentCfg.Store(cfg)

			select {
			case rt.reload <- struct{}{}:
			default:
			}
		}
	}
}
