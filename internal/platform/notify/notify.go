// Package notify delivers role-targeted operational alerts raised by domain
// services (low stock, prescription ready, and similar events). Delivery is
// fire-and-forget: a failed or absent sink never blocks the mutation that
// raised the event.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Event codes raised by the pharmacy domain.
const (
	CodeInventoryLow          = "INVENTORY_LOW"
	CodePrescriptionDispensed = "PRESCRIPTION_DISPENSED"
)

// Notifier delivers a message to every user holding the given role.
type Notifier interface {
	NotifyRole(ctx context.Context, role, code, message string, data map[string]interface{})
}

// LogNotifier writes notifications to the structured log. It is the default
// sink; real deployments can swap in a push/websocket implementation.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyRole(_ context.Context, role, code, message string, data map[string]interface{}) {
	n.logger.Info().
		Str("role", role).
		Str("code", code).
		Fields(data).
		Msg(message)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) NotifyRole(context.Context, string, string, string, map[string]interface{}) {}
