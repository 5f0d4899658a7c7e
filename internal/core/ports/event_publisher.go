package ports

import (
	"context"

	"github.com/ssoserver/user-directory/internal/core/domain"
)

// EventPublisher accepts lifecycle events for asynchronous delivery.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.UserEvent) error
}

// EventSink delivers a single event to an external system.
type EventSink interface {
	Name() string
	Handle(ctx context.Context, event domain.UserEvent) error
}
