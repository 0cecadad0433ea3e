package nextcloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type Board struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type Stack struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	BoardID int    `json:"boardId"`
	Order   int    `json:"order"`
}

type Card struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	StackID     int    `json:"stackId"`
}

func (c *Client) deckURL(format string, args ...any) string {
	return c.baseURL + "/index.php/apps/deck/api/v1.0" + fmt.Sprintf(format, args...)
}

// CardURL returns the browser URL of a card.
func (c *Client) CardURL(boardID, cardID int) string {
	return fmt.Sprintf("%s/apps/deck/#/board/%d/card/%d", c.baseURL, boardID, cardID)
}

// ListBoards returns the Deck boards visible to the bot account.
func (c *Client) ListBoards(ctx context.Context) ([]Board, error) {
	resp, err := c.do(ctx, call{
		op:         "list_boards",
		method:     http.MethodGet,
		url:        c.deckURL("/boards"),
		headers:    ocsHeaders,
		basicAuth:  true,
		accept:     []int{http.StatusOK},
		idempotent: true,
	})
	if err != nil {
		return nil, err
	}
	var boards []Board
	if err := json.Unmarshal(resp.body, &boards); err != nil {
		return nil, fmt.Errorf("failed to decode boards: %w", err)
	}
	return boards, nil
}

// ListStacks returns the columns of a board.
func (c *Client) ListStacks(ctx context.Context, boardID int) ([]Stack, error) {
	resp, err := c.do(ctx, call{
		op:         "list_stacks",
		method:     http.MethodGet,
		url:        c.deckURL("/boards/%d/stacks", boardID),
		headers:    ocsHeaders,
		basicAuth:  true,
		accept:     []int{http.StatusOK},
		idempotent: true,
	})
	if err != nil {
		return nil, err
	}
	var stacks []Stack
	if err := json.Unmarshal(resp.body, &stacks); err != nil {
		return nil, fmt.Errorf("failed to decode stacks: %w", err)
	}
	return stacks, nil
}

// CreateCard adds a plain card at the bottom of a stack.
func (c *Client) CreateCard(ctx context.Context, boardID, stackID int, title, description string) (*Card, error) {
	payload := map[string]any{
		"title": title,
		"type":  "plain",
		"order": 999,
	}
	if description != "" {
		payload["description"] = description
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, call{
		op:          "create_card",
		method:      http.MethodPost,
		url:         c.deckURL("/boards/%d/stacks/%d/cards", boardID, stackID),
		body:        body,
		contentType: "application/json",
		headers:     ocsHeaders,
		basicAuth:   true,
		accept:      []int{http.StatusOK, http.StatusCreated},
	})
	if err != nil {
		return nil, err
	}
	var card Card
	if err := json.Unmarshal(resp.body, &card); err != nil {
		return nil, fmt.Errorf("failed to decode card: %w", err)
	}
	return &card, nil
}

// MoveCardToStack moves a card from its current stack to the top of another one.
func (c *Client) MoveCardToStack(ctx context.Context, boardID, fromStackID, cardID, toStackID int) error {
	body, err := json.Marshal(map[string]int{"stackId": toStackID, "order": 0})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, call{
		op:          "move_card",
		method:      http.MethodPut,
		url:         c.deckURL("/boards/%d/stacks/%d/cards/%d/reorder", boardID, fromStackID, cardID),
		body:        body,
		contentType: "application/json",
		headers:     ocsHeaders,
		basicAuth:   true,
		accept:      []int{http.StatusOK},
	})
	return err
}

// CommentOnCard posts a comment on a card through the OCS API.
func (c *Client) CommentOnCard(ctx context.Context, cardID int, message string) error {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return err
	}
	_, err = c.do(ctx, call{
		op:          "comment_card",
		method:      http.MethodPost,
		url:         fmt.Sprintf("%s/ocs/v2.php/apps/deck/api/v1.0/cards/%d/comments", c.baseURL, cardID),
		body:        body,
		contentType: "application/json",
		headers:     ocsHeaders,
		basicAuth:   true,
		accept:      []int{http.StatusOK, http.StatusCreated},
	})
	return err
}
