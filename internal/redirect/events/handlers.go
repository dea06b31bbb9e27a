package events

import (
	"context"

	"go.uber.org/zap"
)

// LoggingHandler writes one structured log line per event.
type LoggingHandler struct {
	log       *zap.Logger
	eventName string
}

// NewLoggingHandler creates a logging handler for one event name.
func NewLoggingHandler(logger *zap.Logger, eventName string) *LoggingHandler {
	return &LoggingHandler{
		log:       logger,
		eventName: eventName,
	}
}

func (h *LoggingHandler) HandlerName() string {
	return "logging_handler_" + h.eventName
}

func (h *LoggingHandler) EventName() string {
	return h.eventName
}

func (h *LoggingHandler) Handle(_ context.Context, e *PipelineEvent) error {
	fields := []zap.Field{
		zap.String("event_id", e.EventID),
		zap.String("click_id", e.ClickID),
		zap.String("link_id", e.LinkID),
		zap.String("stage", e.Stage),
	}

	if e.Name == ClickBlocked {
		h.log.Warn("[Event] click blocked", append(fields, zap.String("reason", e.Reason))...)
		return nil
	}

	h.log.Info("[Event] "+e.Name, fields...)
	return nil
}

// RegisterHandlers registers logging handlers for every pipeline event.
func RegisterHandlers(router *Router, logger *zap.Logger) {
	for _, name := range []string{ClickGenesis, ClickValidated, ClickRouted, ClickBlocked} {
		router.AddHandler(NewLoggingHandler(logger, name))
	}
}
