package notification

import (
	"context"
	"log/slog"
)

// Transport delivers one message to one recipient address. Implementations
// wrap whatever actually carries the message (SMTP relay, chat webhook);
// delivery mechanics are outside this package.
type Transport interface {
	Send(ctx context.Context, recipientAddress, subject, body string) error
}

// LogTransport writes deliveries to the logger instead of sending them.
// Used for development and as the default when no relay is configured.
type LogTransport struct {
	logger *slog.Logger
}

// NewLogTransport creates a transport that logs instead of delivering.
func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logger.With("module", "log_transport")}
}

func (t *LogTransport) Send(ctx context.Context, recipientAddress, subject, _ string) error {
	t.logger.InfoContext(ctx, "Delivering notification", "recipient", recipientAddress, "subject", subject)

	return nil
}
