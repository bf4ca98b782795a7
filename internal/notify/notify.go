// Package notify abstracts the messaging collaborator used for trade
// notifications (fills, selections, daily bookkeeping).
package notify

import (
	"go.uber.org/zap"

	"github.com/silverfox-lab/silverfox-trading/internal/logger"
	"github.com/silverfox-lab/silverfox-trading/internal/types"
)

// Notifier delivers human-facing strategy notifications.
type Notifier interface {
	// Notify sends a message. Side tags the message with the order
	// direction it relates to; empty for bookkeeping messages.
	Notify(message string, side types.Side)
}

// LogNotifier writes notifications through the structured logger. It is the
// default when no messaging channel is configured.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(message string, side types.Side) {
	n.log.Info("Notification",
		zap.String("message", message),
		zap.String("side", string(side)),
	)
}

// Verify LogNotifier implements the Notifier interface.
var _ Notifier = (*LogNotifier)(nil)
