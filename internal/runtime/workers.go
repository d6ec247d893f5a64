package runtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/menhera-org/etherip-rs/internal/config"
	"github.com/menhera-org/etherip-rs/internal/etherip"
	"github.com/menhera-org/etherip-rs/internal/metrics"
)

// dnsRefreshInterval is how often dynamic (hostname) remotes are
// re-resolved.
const dnsRefreshInterval = 10 * time.Second

// runGeneration spawns one reader goroutine per currently-registered
// link, the single EtherIP socket reader, and the DNS refresher, then
// blocks until ctx is cancelled and every goroutine has returned.
func (rt *Runtime) runGeneration(ctx context.Context, cfg *config.Config) {
	var wg sync.WaitGroup

	for _, name := range rt.table.names() {
		state, ok := rt.table.get(name)
		if !ok {
			continue
		}
		wg.Add(1)
		go func(state *InterfaceState) {
			defer wg.Done()
			rt.tapReaderLoop(ctx, state)
		}(state)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		rt.socketReaderLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		rt.dnsRefresherLoop(ctx, cfg)
	}()

	wg.Wait()
}

// watchCancel force-expires a read deadline the instant ctx is
// cancelled, unblocking whichever reader goroutine is parked in Read or
// RecvFrom. This is the idiomatic Go substitute for the original
// implementation's `select! { _ = kill_receiver.recv() => ..., _ =
// read_loop() => ... }` race: Go has no primitive for abandoning an
// in-flight blocking syscall other than forcing it to return.
func watchCancel(ctx context.Context, setDeadline func(time.Time) error) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = setDeadline(time.Now())
		case <-done:
		}
	}()
	return func() { close(done) }
}

// tapReaderLoop reads Ethernet frames from one link's TAP device,
// encapsulates them, and sends them to the link's currently resolved
// remote address.
func (rt *Runtime) tapReaderLoop(ctx context.Context, state *InterfaceState) {
	stop := watchCancel(ctx, state.tap.SetReadDeadline)
	defer stop()

	builder := etherip.NewBuilder()
	name := state.Name()

	for {
		if ctx.Err() != nil {
			return
		}

		n, err := state.tap.Read(builder.EthernetBuf())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			rt.logger.Warn("failed to read from TAP interface",
				slog.String("link", name), slog.String("error", err.Error()))
			continue
		}
		builder.SetEthernetLen(n)

		remote, ok := state.RemoteAddr()
		if !ok {
			rt.logger.Debug("dropping frame for a link with no resolved remote address",
				slog.String("link", name))
			rt.metrics.RecordDropped(name, metrics.DropResolveFailure)
			continue
		}

		datagram, ok := builder.Emit()
		if !ok {
			rt.logger.Debug("dropping an out-of-range Ethernet frame",
				slog.String("link", name), slog.Int("len", n))
			rt.metrics.RecordDropped(name, frameSizeDropReason(n))
			continue
		}

		if _, err := rt.socket.SendTo(datagram, remote); err != nil {
			if ctx.Err() != nil {
				return
			}
			// Outbound failures are transient: drop the frame silently.
			continue
		}
		rt.metrics.RecordSent(name, n)
	}
}

// socketReaderLoop reads EtherIP datagrams from the shared raw socket,
// decapsulates them, and writes the resulting Ethernet frame to whichever
// link's TAP device the sender's address currently maps to.
func (rt *Runtime) socketReaderLoop(ctx context.Context) {
	stop := watchCancel(ctx, rt.socket.SetReadDeadline)
	defer stop()

	parser := etherip.NewParser()

	for {
		if ctx.Err() != nil {
			return
		}

		n, src, err := rt.socket.RecvFrom(parser.RecvBuf())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			rt.logger.Warn("failed to receive from EtherIP socket", slog.String("error", err.Error()))
			continue
		}
		parser.SetRecvLen(n)

		frame, ok := parser.Parse()
		if !ok {
			rt.logger.Debug("received a datagram with an invalid EtherIP header",
				slog.String("src", src.String()))
			rt.metrics.RecordDropped("", metrics.DropInvalidHeader)
			continue
		}

		state, ok := rt.remotes.Get(src)
		if !ok {
			rt.logger.Debug("received a datagram from an unrecognized source address",
				slog.String("src", src.String()))
			rt.metrics.RecordDropped("", metrics.DropUnknownSource)
			continue
		}

		if _, err := state.tap.Write(frame); err != nil {
			rt.logger.Warn("failed to write frame to TAP interface",
				slog.String("link", state.Name()), slog.String("error", err.Error()))
			continue
		}
		rt.metrics.RecordReceived(state.Name(), len(frame))
	}
}

// dnsRefresherLoop periodically re-resolves every link's configured
// remote (a no-op for links with a literal address), updating the
// interface's cached remote and the reverse RemoteMap whenever it
// changes, inserting the new mapping before removing the old one so an
// in-flight datagram stays routable under its prior address until the new
// one is live.
func (rt *Runtime) dnsRefresherLoop(ctx context.Context, cfg *config.Config) {
	remotes := make(map[string]*config.RemoteAddr, len(cfg.Links))
	for name, link := range cfg.Links {
		ra, err := config.NewRemoteAddr(link)
		if err != nil {
			rt.logger.Error("invalid link remote, excluding from DNS refresh",
				slog.String("link", name), slog.String("error", err.Error()))
			continue
		}
		remotes[name] = ra
	}

	rt.refreshRemotes(ctx, remotes)

	ticker := time.NewTicker(dnsRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rt.refreshRemotes(ctx, remotes)
		}
	}
}

func (rt *Runtime) refreshRemotes(ctx context.Context, remotes map[string]*config.RemoteAddr) {
	for name, ra := range remotes {
		state, ok := rt.table.get(name)
		if !ok {
			continue
		}

		addr, err := ra.Resolve(ctx)
		if err != nil {
			rt.logger.Warn("failed to resolve remote address",
				slog.String("link", name), slog.String("error", err.Error()))
			continue
		}

		old, hadOld := state.RemoteAddr()
		if hadOld && old == addr {
			continue
		}

		state.SetRemoteAddr(addr)
		rt.remotes.insert(addr, state)
		if hadOld {
			rt.remotes.remove(old)
		}
	}
}

// frameSizeDropReason classifies why builder.Emit rejected a frame of
// Ethernet payload length n.
func frameSizeDropReason(n int) metrics.DropReason {
	if n < etherip.EthernetMinFrameSize {
		return metrics.DropUndersize
	}
	return metrics.DropOversize
}
