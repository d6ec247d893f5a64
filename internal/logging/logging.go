// Package logging builds the daemon's structured logger: a dynamically
// adjustable slog.LevelVar feeding a syslog (LOG_DAEMON) handler, so a
// SIGHUP-triggered config reload can change verbosity without recreating
// the logger.
//
// The sink is syslog per this daemon's external-interface contract
// (facility LOG_DAEMON, identifier "etheripd").
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"log/syslog"
)

// Identifier is the syslog tag this daemon logs under.
const Identifier = "etheripd"

// New builds an *slog.Logger backed by syslog(3) with facility
// LOG_DAEMON, and returns the LevelVar so callers (the reload loop) can
// adjust verbosity in place.
func New() (*slog.Logger, *slog.LevelVar, error) {
	levelVar := &slog.LevelVar{}
	levelVar.Set(slog.LevelInfo)

	writer, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, Identifier)
	if err != nil {
		return nil, nil, fmt.Errorf("logging: connect to syslog: %w", err)
	}

	handler := &syslogHandler{
		writer: writer,
		level:  levelVar,
		attrs:  nil,
		group:  "",
	}

	return slog.New(handler), levelVar, nil
}

// syslogHandler is a minimal slog.Handler that formats records as
// "key=value" pairs and routes them to the matching syslog priority.
type syslogHandler struct {
	writer *syslog.Writer
	level  *slog.LevelVar
	attrs  []slog.Attr
	group  string
}

func (h *syslogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *syslogHandler) Handle(_ context.Context, r slog.Record) error {
	msg := r.Message
	for _, a := range h.attrs {
		msg += " " + formatAttr(h.group, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		msg += " " + formatAttr(h.group, a)
		return true
	})

	switch {
	case r.Level >= slog.LevelError:
		return h.writer.Err(msg)
	case r.Level >= slog.LevelWarn:
		return h.writer.Warning(msg)
	case r.Level >= slog.LevelInfo:
		return h.writer.Info(msg)
	default:
		return h.writer.Debug(msg)
	}
}

func (h *syslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &syslogHandler{writer: h.writer, level: h.level, attrs: merged, group: h.group}
}

func (h *syslogHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &syslogHandler{writer: h.writer, level: h.level, attrs: h.attrs, group: group}
}

func formatAttr(group string, a slog.Attr) string {
	key := a.Key
	if group != "" {
		key = group + "." + key
	}
	return fmt.Sprintf("%s=%v", key, a.Value.Any())
}
