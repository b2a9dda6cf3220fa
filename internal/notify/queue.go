package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/userhub/apiserver/config"
	"github.com/userhub/apiserver/internal/mq"
	"github.com/userhub/apiserver/types"
)

// QueueNotifier publishes email jobs to a message queue; a delivery
// worker consumes and sends them out of band. Publishing failures are
// surfaced to the caller but never roll back committed state.
type QueueNotifier struct {
	queue   *mq.MQ
	channel string
	appHost string
	product string
	company string
}

// NewQueueNotifier constructs a notifier publishing to the configured channel.
func NewQueueNotifier(queue *mq.MQ, cfg config.NotifierConfig) *QueueNotifier {
	return &QueueNotifier{
		queue:   queue,
		channel: cfg.Channel,
		appHost: cfg.AppHost,
		product: cfg.Product,
		company: cfg.Company,
	}
}

func (n *QueueNotifier) Send(ctx context.Context, kind Kind, account types.Account) error {
	email, err := BuildEmail(kind, account, n.appHost, n.product, n.company)
	if err != nil {
		return err
	}

	data, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("failed to encode email job: %w", err)
	}

	attrs := map[string]string{"kind": string(kind)}
	if _, err := n.queue.Publish(ctx, n.channel, data, attrs); err != nil {
		return fmt.Errorf("failed to publish email job: %w", err)
	}
	return nil
}
