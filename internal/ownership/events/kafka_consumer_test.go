package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestConsumer_StartWithoutHandler(t *testing.T) {
	core, recorded := observer.New(zap.ErrorLevel)
	consumer := &Consumer{
		logger: zap.New(core).Named("kafka_consumer"),
	}

	// Without a registered handler Start must refuse to run rather than
	// dereference a nil handler on the first fetched message.
	consumer.Start(context.Background())

	assert.Equal(t, 1, recorded.FilterMessage("No handler registered, consumer not started").Len())
}

func TestConsumer_RegisterHandler(t *testing.T) {
	consumer := &Consumer{
		logger: zap.NewNop(),
	}

	consumer.RegisterHandler(func(context.Context, Event) error { return nil })

	assert.NotNil(t, consumer.handler)
}
