package gateway

import (
	"context"
	"fmt"

	"github.com/inboxagents/mail-gateway/internal/core"
	"go.uber.org/zap"
)

// deliverCommand is the terminal command behind the security wrapper for one
// agent family. The gateway relays the message itself; this command only
// acknowledges that the route accepted it.
type deliverCommand struct {
	route  core.Route
	logger *zap.Logger
}

func (c *deliverCommand) Process(_ context.Context, email *core.EmailData, _ *core.VisibilityContext) (*core.HandlerResult, error) {
	c.logger.Debug("Delivering message to agent route",
		zap.String("route", string(c.route)),
		zap.String("message_id", email.MessageID))

	return &core.HandlerResult{
		Success: true,
		Message: fmt.Sprintf("accepted for %s agent", c.route),
		Data: map[string]any{
			"route": string(c.route),
		},
	}, nil
}
