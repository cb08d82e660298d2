package notify

import "context"

// TopicIngestCompleted carries one pipeline report per finished ingestion run.
const TopicIngestCompleted = "venues.ingest.completed"

// Publisher sends JSON-encodable payloads to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
	Close() error
}

// NoopPublisher is a Publisher that does nothing (used when NATS is not configured).
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, payload any) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}
