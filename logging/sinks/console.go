package sinks

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fed135/mine-land/logging"
)

// Console renders events through a logrus logger so structured gameplay and
// security events share one stream with the plain process log.
type Console struct {
	logger *logrus.Logger
}

// NewConsole wraps the provided logrus logger. A nil logger falls back to the
// logrus standard logger.
func NewConsole(logger *logrus.Logger, cfg logging.ConsoleConfig) *Console {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.UseColor {
		if formatter, ok := logger.Formatter.(*logrus.TextFormatter); ok {
			formatter.ForceColors = true
		}
	}
	return &Console{logger: logger}
}

func (s *Console) Write(event logging.Event) error {
	if s == nil || s.logger == nil {
		return nil
	}
	fields := logrus.Fields{
		"tick":     event.Tick,
		"category": event.Category,
	}
	if actor := formatEntity(event.Actor); actor != "" {
		fields["actor"] = actor
	}
	if targets := formatTargets(event.Targets); targets != "" {
		fields["targets"] = targets
	}
	if event.Payload != nil {
		fields["payload"] = event.Payload
	}
	for k, v := range event.Extra {
		if _, exists := fields[k]; !exists {
			fields[k] = v
		}
	}
	s.logger.WithFields(fields).Log(consoleLevel(event.Severity), string(event.Type))
	return nil
}

func (s *Console) Close(context.Context) error {
	return nil
}

func consoleLevel(sev logging.Severity) logrus.Level {
	switch sev {
	case logging.SeverityDebug:
		return logrus.DebugLevel
	case logging.SeverityWarn:
		return logrus.WarnLevel
	case logging.SeverityError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func formatEntity(ref logging.EntityRef) string {
	switch {
	case ref.ID == "" && ref.Kind == "":
		return ""
	case ref.ID == "":
		return string(ref.Kind)
	case ref.Kind == "":
		return ref.ID
	default:
		return fmt.Sprintf("%s:%s", ref.Kind, ref.ID)
	}
}

func formatTargets(targets []logging.EntityRef) string {
	if len(targets) == 0 {
		return ""
	}
	parts := make([]string, 0, len(targets))
	for _, target := range targets {
		parts = append(parts, formatEntity(target))
	}
	return strings.Join(parts, ",")
}
