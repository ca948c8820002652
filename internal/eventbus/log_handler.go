package eventbus

import (
	"context"
	"log/slog"
)

// LogHandler records every mutation event to a structured logger
// (SPEC_FULL §4.8, §4.10). It is the default handler wired at startup.
type LogHandler struct {
	log *slog.Logger
}

// NewLogHandler returns a handler that logs every event type.
func NewLogHandler(log *slog.Logger) *LogHandler {
	return &LogHandler{log: log}
}

func (h *LogHandler) ID() string { return "log" }

func (h *LogHandler) Handles() []EventType {
	return []EventType{
		EventNodeCreated, EventNodeMerged, EventNodeConflict,
		EventEdgeCreated, EventEdgeMerged, EventIncidentCreated,
		EventNodeTombstoneApplied, EventEdgeTombstoneApplied,
	}
}

func (h *LogHandler) Priority() int { return 0 }

func (h *LogHandler) Handle(_ context.Context, event *Event, _ *Result) error {
	h.log.Info("mutation event", "type", event.Type, "incident_id", event.IncidentID, "node_id", event.NodeID)
	return nil
}
