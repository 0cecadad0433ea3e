package api

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/activity"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/bot"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/logging"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/metrics"
	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/webhookutils"
)

// Webhook outcomes besides the turn status.
const (
	outcomeIgnored      = "ignored"
	outcomeUnauthorized = "unauthorized"
	outcomeMalformed    = "malformed"
	outcomeUnknownBot   = "unknown_bot"
)

// handleWebhook authenticates a Talk delivery and runs the turn. The signature is checked
// against the raw body before anything is decoded. Once an event is accepted the response
// is always 200; delivery problems surface inside the conversation.
func (s *Server) handleWebhook(c echo.Context) error {
	b, ok := s.lookupBot(c.Param("bot"))
	if !ok {
		metrics.WebhooksTotal.WithLabelValues("unknown", outcomeUnknownBot).Inc()
		log.Warn().Str("bot", c.Param("bot")).Msg("Webhook for unknown bot")
		return c.JSON(http.StatusNotFound, map[string]string{"error": "unknown bot"})
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues(b.Name(), outcomeMalformed).Inc()
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}

	nonce, signature := webhookutils.TalkSignature(c.Request().Header)
	if !webhookutils.Verify(b.Identity.Secret, nonce, body, signature) {
		metrics.WebhooksTotal.WithLabelValues(b.Name(), outcomeUnauthorized).Inc()
		log.Warn().Str("bot", b.Name()).Str("remote_ip", c.RealIP()).Msg("Invalid webhook signature")
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
	}

	ev, err := activity.Parse(body)
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues(b.Name(), outcomeMalformed).Inc()
		log.Warn().Err(err).Str("bot", b.Name()).Msg("Malformed webhook body")
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
	}

	if reason := ev.IgnoreReason(); reason != "" {
		metrics.WebhooksTotal.WithLabelValues(b.Name(), outcomeIgnored).Inc()
		log.Debug().Str("bot", b.Name()).Str("reason", reason).Str("type", ev.Type).Msg("Ignoring webhook event")
		return c.JSON(http.StatusOK, map[string]string{"status": outcomeIgnored})
	}

	// A turn may outlive the delivery request; Talk does not wait for the reply.
	ctx, requestID := logging.WithRequest(context.WithoutCancel(c.Request().Context()), map[string]string{
		"bot":        b.Name(),
		"token":      ev.Token(),
		"message_id": ev.MessageID(),
	})
	c.Response().Header().Set(echo.HeaderXRequestID, requestID)

	res := s.orchestrator.Handle(ctx, b, ev)
	metrics.WebhooksTotal.WithLabelValues(b.Name(), res.Status).Inc()
	return c.JSON(http.StatusOK, map[string]string{"status": res.Status})
}

func (s *Server) lookupBot(name string) (*bot.Bot, bool) {
	registry := s.orchestrator.Registry()
	if name == "" {
		return registry.Default()
	}
	return registry.Get(name)
}
