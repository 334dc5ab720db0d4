// Package cmd provides common initialization for the exitflow binaries.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/mbellotti/exitflow/pkg/channels/gochannel"
	"github.com/mbellotti/exitflow/pkg/channels/kafka"
	"github.com/mbellotti/exitflow/pkg/eventbus"
)

// NewEventBus creates the lifecycle event bus for the given provider:
// "kafka" for the brokered channel, anything else for the in-process
// gochannel transport.
func NewEventBus(provider, kafkaBrokers string, logger *slog.Logger) eventbus.EventBus {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, kafkaBrokers, "exitflow")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	default:
		pub, sub, err := gochannel.CreateChannel(watermillLogger)
		if err != nil {
			panic(fmt.Errorf("failed to create gochannel pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	}
}
