package runtime

import (
	"fmt"
	"log/slog"

	"github.com/menhera-org/etherip-rs/internal/config"
)

// reconcile diffs cfg.Links against the live interface table: links
// present in cfg but absent from the table get a TAP interface opened
// and registered; links present in the table but absent from cfg have
// their TAP interface closed, their persistent bit cleared, and any
// remote-address mapping removed. Additions are applied before removals
// so a link renamed across a reload never has a moment with zero
// interfaces for that name.
func (rt *Runtime) reconcile(cfg *config.Config) error {
	for name := range cfg.Links {
		if _, ok := rt.table.get(name); ok {
			continue
		}

		dev, err := rt.openTap(name)
		if err != nil {
			return fmt.Errorf("open tap %q: %w", name, err)
		}

		rt.table.set(name, newInterfaceState(name, dev))
		rt.logger.Info("interface added", slog.String("link", name))
	}

	for _, name := range rt.table.names() {
		if _, ok := cfg.Links[name]; ok {
			continue
		}

		state, ok := rt.table.get(name)
		if ok {
			if err := state.tap.Close(); err != nil {
				rt.logger.Warn("failed to close tap device",
					slog.String("link", name), slog.String("error", err.Error()))
			}
			if addr, had := state.RemoteAddr(); had {
				rt.remotes.remove(addr)
			}
		}
		rt.table.delete(name)

		if err := rt.deleteTap(name); err != nil {
			return fmt.Errorf("delete tap %q: %w", name, err)
		}
		rt.logger.Info("interface removed", slog.String("link", name))
	}

	return nil
}
