package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/invitely/invitely/internal/export"
)

// Job types carried on the export topic.
const (
	JobTypeExportRender = "export_render"
	JobTypeSweep        = "export_sweep"
)

// JobMessage is the payload of an export topic message.
type JobMessage struct {
	JobType  string `json:"job_type"`
	ExportID string `json:"export_id,omitempty"`
}

// PubSubDispatcher publishes export jobs for a separate worker process.
type PubSubDispatcher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    zerolog.Logger
}

// NewPubSubDispatcher creates a dispatcher publishing to topic.
func NewPubSubDispatcher(ctx context.Context, projectID, topic string, logger zerolog.Logger) (*PubSubDispatcher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubDispatcher{
		client:    client,
		publisher: client.Publisher(topic),
		logger:    logger.With().Str("component", "pubsub_dispatcher").Str("topic", topic).Logger(),
	}, nil
}

// Dispatch publishes the job and waits for the server to accept it.
func (d *PubSubDispatcher) Dispatch(ctx context.Context, id string) error {
	data, err := json.Marshal(JobMessage{JobType: JobTypeExportRender, ExportID: id})
	if err != nil {
		return err
	}

	serverID, err := d.publisher.Publish(ctx, &pubsub.Message{Data: data}).Get(ctx)
	if err != nil {
		return fmt.Errorf("publishing export %s: %w", id, err)
	}

	d.logger.Debug().Str("export_id", id).Str("message_id", serverID).Msg("export published")
	return nil
}

// Close flushes pending publishes and closes the client.
func (d *PubSubDispatcher) Close() error {
	d.publisher.Stop()
	return d.client.Close()
}

// PubSubHandler handles Pub/Sub messages for the worker.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	processor        Processor
	sweep            *SweepJob
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Processor        Processor

	// Sweep handles export_sweep messages. Optional.
	Sweep *SweepJob

	// MaxOutstanding bounds concurrently handled messages.
	// Default: 10
	MaxOutstanding int
	Logger         zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	if cfg.MaxOutstanding <= 0 {
		cfg.MaxOutstanding = 10
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = cfg.MaxOutstanding
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		processor:        cfg.Processor,
		sweep:            cfg.Sweep,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing Pub/Sub messages.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.handle(ctx, msg.ID, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// handle reports whether the message should be acknowledged.
func (h *PubSubHandler) handle(ctx context.Context, messageID string, data []byte) bool {
	return handleMessage(ctx, h.logger.With().Str("message_id", messageID).Logger(), h.processor, h.sweep, data)
}

func handleMessage(ctx context.Context, logger zerolog.Logger, processor Processor, sweep *SweepJob, data []byte) bool {
	start := time.Now()

	var msg JobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		// Redelivery cannot fix a malformed payload.
		logger.Error().Err(err).Msg("failed to parse message")
		return true
	}

	var err error
	switch msg.JobType {
	case JobTypeExportRender:
		if msg.ExportID == "" {
			logger.Warn().Msg("export message without export_id")
			return true
		}
		err = processor.Process(ctx, msg.ExportID)
	case JobTypeSweep:
		if sweep == nil {
			logger.Warn().Msg("sweep requested but not configured")
			return true
		}
		err = sweep.Run(ctx).Err
	default:
		logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return true
	}

	if err != nil {
		logger.Error().Err(err).Str("job_type", msg.JobType).Str("export_id", msg.ExportID).Msg("job failed")
		return false
	}

	logger.Info().
		Str("job_type", msg.JobType).
		Str("export_id", msg.ExportID).
		Dur("duration", time.Since(start)).
		Msg("job completed successfully")
	return true
}

// Ensure PubSubDispatcher implements export.Dispatcher.
var _ export.Dispatcher = (*PubSubDispatcher)(nil)
