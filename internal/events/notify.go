package events

import (
	"context"
	"log/slog"
	"time"
)

// Notifier はPublisherへの送信をベストエフォートで行う。
// 送信エラーはログに記録し、呼び出し元には返さない。
type Notifier struct {
	publisher Publisher
	now       func() time.Time
}

// NewNotifier はNotifierを生成する。publisherがnilの場合はイベントを破棄する。
func NewNotifier(publisher Publisher) *Notifier {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Notifier{publisher: publisher, now: time.Now}
}

// Notify はOccurredAtを補完してイベントを送信する。
func (n *Notifier) Notify(ctx context.Context, event Event) {
	if n == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = n.now().UTC()
	}
	if err := n.publisher.Publish(ctx, event); err != nil {
		slog.Warn("failed to publish event",
			slog.String("type", event.Type),
			slog.String("error", err.Error()),
		)
	}
}
