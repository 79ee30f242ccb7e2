package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutClient bounds every call to the wrapped client. An expired deadline
// is reported as an ordinary call failure.
type TimeoutClient struct {
	next    LLM
	timeout time.Duration
}

func NewTimeout(next LLM, timeout time.Duration) *TimeoutClient {
	return &TimeoutClient{next: next, timeout: timeout}
}

func (c *TimeoutClient) Complete(ctx context.Context, messages []Message, opts ...Option) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.next.Complete(ctx, messages, opts...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("llm call exceeded %s: %w", c.timeout, err)
		}
		return "", err
	}
	return out, nil
}

var _ LLM = (*TimeoutClient)(nil)
