package redisx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kirinyoku/stagekit/internal/domain"
)

// QuotationMsg is the payload fanned out on every quotation change.
type QuotationMsg struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Quotation domain.Quotation `json:"quotation"`
	TsUnix    int64            `json:"ts_unix"`
}

type QuotationPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewQuotationPubSub(rdb *redis.Client) *QuotationPubSub {
	return &QuotationPubSub{
		rdb:     rdb,
		channel: ChannelQuotations(),
	}
}

func (p *QuotationPubSub) PublishQuotation(ctx context.Context, sessionID string, q domain.Quotation) error {
	const op = "redisx.QuotationPubSub.PublishQuotation"

	b, err := json.Marshal(QuotationMsg{
		Type:      "quotation_changed",
		SessionID: sessionID,
		Quotation: q,
		TsUnix:    time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	if err := p.rdb.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	return nil
}

// Subscribe blocks, calling handler for every well-formed message, until
// ctx is cancelled.
func (p *QuotationPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, msg QuotationMsg)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var msg QuotationMsg
			if err := json.Unmarshal([]byte(m.Payload), &msg); err == nil &&
				msg.SessionID != "" {
				handler(ctx, msg)
			}
		}
	}
}
