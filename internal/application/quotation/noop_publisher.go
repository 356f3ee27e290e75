package quotation

import "context"

type NoopPublisher struct{}

func (NoopPublisher) PublishEvent(ctx context.Context, eventName string, payload any) error {
	return nil
}
