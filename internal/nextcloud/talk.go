package nextcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/OpenAEC-Foundation/nextcloud-talk-erp-next-bot/internal/webhookutils"
)

type botMessage struct {
	Message string `json:"message"`
	ReplyTo int    `json:"replyTo,omitempty"`
}

// SendMessage posts message into the conversation as the bot. replyTo of 0 sends a plain
// message. The request is signed with a fresh nonce over the message text.
func (c *Client) SendMessage(ctx context.Context, token, message string, replyTo int) error {
	nonce, err := webhookutils.NewNonce()
	if err != nil {
		return err
	}
	body, err := json.Marshal(botMessage{Message: message, ReplyTo: replyTo})
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	_, err = c.do(ctx, call{
		op:          "send_message",
		method:      http.MethodPost,
		url:         fmt.Sprintf("%s/ocs/v2.php/apps/spreed/api/v1/bot/%s/message", c.baseURL, url.PathEscape(token)),
		body:        body,
		contentType: "application/json",
		headers: map[string]string{
			webhookutils.HeaderOCSRequest:   "true",
			webhookutils.HeaderBotRandom:    nonce,
			webhookutils.HeaderBotSignature: webhookutils.Sign(c.secret, nonce, message),
		},
		accept: []int{http.StatusCreated},
	})
	if err != nil {
		return err
	}
	log.Debug().Str("token", token).Int("length", len(message)).Msg("Message delivered")
	return nil
}

// DeleteConversation removes the room for every participant.
func (c *Client) DeleteConversation(ctx context.Context, token string) error {
	_, err := c.do(ctx, call{
		op:        "delete_conversation",
		method:    http.MethodDelete,
		url:       fmt.Sprintf("%s/ocs/v2.php/apps/spreed/api/v4/room/%s", c.baseURL, url.PathEscape(token)),
		headers:   ocsHeaders,
		basicAuth: true,
		accept:    []int{http.StatusOK, http.StatusNoContent},
	})
	return err
}
