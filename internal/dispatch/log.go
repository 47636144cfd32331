package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"firestige.xyz/vlanswitch/internal/core"
)

// LogSink writes one structured log line per command. It never fails.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log sink; nil uses slog.Default at call time.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func (s *LogSink) InstallRule(ctx context.Context, rule core.InstallRule) error {
	attrs := []any{
		core.LabelSwitch, rule.Switch,
		"priority", rule.Priority,
		"actions", formatActions(rule.Actions),
	}
	if rule.Match.InPort != nil {
		attrs = append(attrs, core.LabelInPort, *rule.Match.InPort)
	}
	if rule.Match.EthDst != nil {
		attrs = append(attrs, core.LabelDstMAC, rule.Match.EthDst.String())
	}
	if rule.BufferID.Buffered() {
		attrs = append(attrs, core.LabelBufferID, uint32(rule.BufferID))
	}
	s.log().InfoContext(ctx, "install rule", attrs...)
	return nil
}

func (s *LogSink) Emit(ctx context.Context, emit core.Emit) error {
	attrs := []any{
		core.LabelSwitch, emit.Switch,
		core.LabelInPort, emit.InPort,
		"actions", formatActions(emit.Actions),
	}
	if emit.BufferID.Buffered() {
		attrs = append(attrs, core.LabelBufferID, uint32(emit.BufferID))
	} else {
		attrs = append(attrs, "payload_len", len(emit.Payload))
	}
	s.log().InfoContext(ctx, "emit packet", attrs...)
	return nil
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Close() error { return nil }

// formatActions renders actions as "output:2,output:FLOOD". An empty list
// renders as "drop".
func formatActions(actions []core.Action) string {
	if len(actions) == 0 {
		return "drop"
	}
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = "output:" + a.Port.String()
	}
	return strings.Join(parts, ",")
}
