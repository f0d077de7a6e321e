package port

import "context"

// StatusPublisher announces job state changes, including the final result table.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}

// ProgressPublisher emits best-effort scan progress. Losing a message is acceptable.
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, msg []byte) error
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}
