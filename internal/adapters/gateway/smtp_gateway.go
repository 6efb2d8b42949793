package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/inboxagents/mail-gateway/internal/config"
	"github.com/inboxagents/mail-gateway/internal/core"
	"go.uber.org/zap"
)

// Gateway implements the SMTP content-filter hop. It accepts inbound mail,
// classifies the recipients, runs the matched agent's policy chain and either
// relays the stamped message upstream, holds it for review, or rejects it.
type Gateway struct {
	cfg      config.ServerConfig
	router   *core.Router
	security *core.SecurityLayer
	logger   *zap.Logger
	server   *smtp.Server
	handlers map[core.Route]core.Command
}

// NewGateway creates a new SMTP gateway. Each agent family gets its own
// security-wrapped delivery command so policy configuration stays per-route.
func NewGateway(
	cfg config.ServerConfig,
	router *core.Router,
	security *core.SecurityLayer,
	logger *zap.Logger,
) *Gateway {
	g := &Gateway{
		cfg:      cfg,
		router:   router,
		security: security,
		logger:   logger,
		handlers: make(map[core.Route]core.Command),
	}

	for _, route := range []core.Route{core.RouteIntelligence, core.RouteTask, core.RouteLoadBalancer} {
		g.handlers[route] = security.SecureCommand(string(route), &deliverCommand{route: route, logger: logger})
	}

	return g
}

// Start starts the SMTP gateway service
func (g *Gateway) Start() error {
	g.server = smtp.NewServer(&smtpBackend{gateway: g})

	g.server.Addr = g.cfg.ListenAddress
	g.server.Domain = g.cfg.Hostname
	if g.server.Domain == "" {
		g.server.Domain = "localhost"
	}
	g.server.ReadTimeout = 30 * time.Second
	g.server.WriteTimeout = 30 * time.Second
	g.server.MaxMessageBytes = 30 * 1024 * 1024 // 30MB
	g.server.MaxRecipients = 50
	g.server.AllowInsecureAuth = true

	g.logger.Info("SMTP gateway starting", zap.String("address", g.cfg.ListenAddress))

	go func() {
		if err := g.server.ListenAndServe(); err != nil {
			if err != smtp.ErrServerClosed {
				g.logger.Error("SMTP server error", zap.Error(err))
			}
		}
	}()

	return nil
}

// Stop stops the SMTP gateway service
func (g *Gateway) Stop() error {
	if g.server != nil {
		return g.server.Close()
	}
	return nil
}

// ProcessMessage routes and validates a single parsed message. This is used
// for direct calls outside an SMTP session.
func (g *Gateway) ProcessMessage(ctx context.Context, email *core.EmailData) (core.RouteDecision, *core.HandlerResult, error) {
	decision := g.router.DetermineRouteByRecipient(email)
	if decision.Route == core.RouteNone {
		return decision, nil, nil
	}

	vctx := core.NewVisibilityContext(email, decision.MatchedAddress)
	result, err := g.handlers[decision.Route].Process(ctx, email, vctx)
	return decision, result, err
}

// sendUpstream relays the processed message to the upstream MTA using go-smtp.
func (g *Gateway) sendUpstream(sender string, recipients []string, emailData []byte) error {
	upstreamAddr := fmt.Sprintf("%s:%d", g.cfg.UpstreamAddress, g.cfg.UpstreamPort)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", upstreamAddr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to upstream: %w", err)
	}

	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			g.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
		} else {
			recipientOK = true
		}
	}
	if !recipientOK {
		return fmt.Errorf("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err = wc.Write(emailData); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send email data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		g.logger.Warn("QUIT command failed", zap.Error(err))
	}

	return nil
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	gateway *Gateway
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{
		gateway:    b.gateway,
		recipients: make([]string, 0),
	}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	gateway    *Gateway
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = make([]string, 0)
}

// AuthPlain handles PLAIN authentication (not needed for the gateway)
func (s *smtpSession) AuthPlain(_ []byte) error {
	return smtp.ErrAuthUnsupported
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data handles the email data
func (s *smtpSession) Data(r io.Reader) error {
	g := s.gateway

	rawData, err := io.ReadAll(r)
	if err != nil {
		g.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	email, err := ParseMessage(rawData, s.sender, s.recipients)
	if err != nil {
		g.logger.Error("Failed to parse email message", zap.Error(err))
		return &smtp.SMTPError{
			Code:         554,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Malformed message",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	decision, result, err := g.ProcessMessage(ctx, email)
	if err != nil {
		// The delivery commands never fail; if one ever does, pass the
		// message through rather than bounce legitimate mail.
		g.logger.Error("Failed to process message",
			zap.Error(err),
			zap.String("sender", email.From))
		result = &core.HandlerResult{Success: true, Message: "processing error, passed through"}
	}

	if decision.Route == core.RouteNone {
		// Not agent mail. Relay unchanged so the gateway never eats
		// regular traffic.
		g.logger.Debug("No recognized agent recipient, relaying unchanged",
			zap.String("sender", email.From))
		return s.relay(rawData)
	}

	blocked := result != nil && !result.Success
	quarantine := false
	if blocked {
		if q, ok := result.Data["quarantine"].(bool); ok {
			quarantine = q
		}
	}

	if blocked && !quarantine {
		g.logger.Info("Rejecting message",
			zap.String("sender", email.From),
			zap.String("route", string(decision.Route)),
			zap.String("reason", result.Message))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 7, 1},
			Message:      result.Message,
		}
	}

	if quarantine {
		// Accepted at the SMTP layer but held: the sender learns nothing,
		// the message never reaches the agent.
		g.logger.Info("Quarantined message held",
			zap.String("sender", email.From),
			zap.String("route", string(decision.Route)),
			zap.String("message_id", email.MessageID))
		return nil
	}

	return s.relay(s.stampHeaders(rawData, decision))
}

// stampHeaders prepends the gateway's routing headers to the raw message.
func (s *smtpSession) stampHeaders(rawData []byte, decision core.RouteDecision) []byte {
	g := s.gateway

	var stamped bytes.Buffer
	fmt.Fprintf(&stamped, "%s: %s\r\n", g.cfg.RouteHeader, decision.Route)
	if decision.TenantToken != "" {
		fmt.Fprintf(&stamped, "%s: %s\r\n", g.cfg.TenantHeader, decision.TenantToken)
	}
	fmt.Fprintf(&stamped, "%s: allowed\r\n", g.cfg.ResultHeader)
	stamped.Write(rawData)
	return stamped.Bytes()
}

// relay forwards the message to the upstream MTA when forwarding is enabled.
func (s *smtpSession) relay(emailData []byte) error {
	g := s.gateway

	if !g.cfg.UpstreamEnabled {
		g.logger.Warn("Upstream forwarding disabled, message accepted but not relayed")
		return nil
	}

	if err := g.sendUpstream(s.sender, s.recipients, emailData); err != nil {
		g.logger.Error("Failed to relay message upstream",
			zap.Error(err),
			zap.String("sender", s.sender))
		return err
	}
	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
