// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a custom slog handler that mirrors WARN and
// ERROR records into the Local Store event log for later inspection.
package logging

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/olegiv/wordbook-go/internal/store"
)

// EventLogHandler is a slog.Handler that wraps another handler and also
// writes WARN and ERROR level logs to the Local Store events table.
type EventLogHandler struct {
	inner  slog.Handler
	local  *store.Local
	level  slog.Level
	source string
}

// NewEventLogHandler creates a handler that forwards WARN and above to the
// event log in addition to the wrapped handler.
func NewEventLogHandler(inner slog.Handler, local *store.Local) *EventLogHandler {
	return &EventLogHandler{
		inner: inner,
		local: local,
		level: slog.LevelWarn,
	}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level {
		h.writeToEventLog(ctx, r)
	}

	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EventLogHandler{
		inner:  h.inner.WithAttrs(attrs),
		local:  h.local,
		level:  h.level,
		source: h.source,
	}
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	return &EventLogHandler{
		inner:  h.inner.WithGroup(name),
		local:  h.local,
		level:  h.level,
		source: name,
	}
}

// writeToEventLog persists a log record. Failures here are swallowed: the
// event log must never take the process down with it.
func (h *EventLogHandler) writeToEventLog(ctx context.Context, r slog.Record) {
	attrs := make(map[string]any)
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Resolve().Any()
		return true
	})

	var data string
	if len(attrs) > 0 {
		if b, err := json.Marshal(attrs); err == nil {
			data = string(b)
		}
	}

	source := h.source
	if src, ok := attrs["source"].(string); ok && source == "" {
		source = src
	}

	_ = h.local.InsertEvent(ctx, r.Level.String(), source, r.Message, data)
}
