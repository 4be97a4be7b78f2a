package messaging

import (
	"context"
	"encoding/json"
	"time"

	"example.com/backstage/services/gamebot/config"
	"example.com/backstage/services/gamebot/internal/models"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
)

// Sender is the subset of *azservicebus.Sender used for publishing
type Sender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
	Close(ctx context.Context) error
}

// LifecyclePublisher sends lifecycle records to an Azure Service Bus queue
type LifecyclePublisher struct {
	client    *azservicebus.Client
	sender    Sender
	queueName string
	enabled   bool
}

// NewLifecyclePublisher connects to Service Bus; without a connection string it is a no-op
func NewLifecyclePublisher(cfg config.AzureConfig) (*LifecyclePublisher, error) {
	if cfg.QueueConnStr == "" {
		return &LifecyclePublisher{enabled: false}, nil
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		_ = client.Close(context.Background())
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &LifecyclePublisher{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
		enabled:   true,
	}, nil
}

// NewLifecyclePublisherWithSender wraps an existing sender
func NewLifecyclePublisherWithSender(sender Sender, queueName string) *LifecyclePublisher {
	return &LifecyclePublisher{
		sender:    sender,
		queueName: queueName,
		enabled:   true,
	}
}

// Publish sends the record as a JSON message
func (p *LifecyclePublisher) Publish(ctx context.Context, record models.Lifecycle) error {
	if !p.enabled {
		return nil
	}

	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "failed to marshal lifecycle record")
	}

	messageID := record.ID.String()
	contentType := "application/json"
	subject := string(record.Type)
	msg := &azservicebus.Message{
		Body:        data,
		MessageID:   &messageID,
		ContentType: &contentType,
		Subject:     &subject,
		ApplicationProperties: map[string]interface{}{
			"source":   "gamebot",
			"event_id": record.EventID,
			"time":     record.Timestamp.UTC().Format(time.RFC3339),
		},
	}

	if err := p.sender.SendMessage(ctx, msg, nil); err != nil {
		return errors.Wrapf(err, "failed to send lifecycle record to %s", p.queueName)
	}
	return nil
}

// Close closes the sender and the client
func (p *LifecyclePublisher) Close() error {
	if !p.enabled {
		return nil
	}

	if p.sender != nil {
		if err := p.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if p.client != nil {
		return p.client.Close(context.Background())
	}
	return nil
}
