package platform

import (
	"context"
	"fmt"
	"strconv"

	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// maxMessagePages bounds ListMessages so a misbehaving cursor cannot loop forever.
const maxMessagePages = 50

// CreateThread creates an empty conversation thread.
func (c *Client) CreateThread(ctx context.Context) (*Thread, error) {
	var thread Thread
	if err := c.post(ctx, "threads", nil, &thread); err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	c.logger.Debug("Created thread", zap.String("id", thread.ID))
	return &thread, nil
}

// DeleteThread deletes a thread and its messages.
func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	if err := c.delete(ctx, join("threads", threadID)); err != nil {
		return fmt.Errorf("failed to delete thread %s: %w", threadID, err)
	}
	return nil
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID string, params CreateMessageParams) (*Message, error) {
	if params.Role == "" {
		params.Role = RoleUser
	}
	var msg Message
	if err := c.post(ctx, join("threads", threadID, "messages"), params, &msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return &msg, nil
}

// ListMessages returns the thread's messages, newest first. When since is
// non-zero, paging stops after the first page that reaches a message created
// before since (unix seconds), so a run's output is read without walking the
// whole history.
func (c *Client) ListMessages(ctx context.Context, threadID string, since int64) ([]Message, error) {
	var (
		all   []Message
		after string
	)
	for page := 0; page < maxMessagePages; page++ {
		opts := []option.RequestOption{
			option.WithQuery("order", "desc"),
			option.WithQuery("limit", strconv.Itoa(100)),
		}
		if after != "" {
			opts = append(opts, option.WithQuery("after", after))
		}

		var list MessageList
		if err := c.get(ctx, join("threads", threadID, "messages"), &list, opts...); err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		all = append(all, list.Data...)

		if !list.HasMore || list.LastID == "" || reachedBefore(list.Data, since) {
			return all, nil
		}
		after = list.LastID
	}
	return all, fmt.Errorf("failed to list messages: more than %d pages", maxMessagePages)
}

func reachedBefore(page []Message, since int64) bool {
	if since == 0 || len(page) == 0 {
		return false
	}
	last := page[len(page)-1].CreatedAt
	return last != 0 && last < since
}
