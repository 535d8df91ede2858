// Package messaging maps event types onto the configured Kafka topics.
package messaging

import (
	"fmt"

	"github.com/banking-transfer-saga/internal/config"
	"github.com/banking-transfer-saga/internal/domain/shared"
)

// Router resolves the topic an event type travels on and back.
type Router struct {
	byType  map[shared.EventType]string
	byTopic map[string]shared.EventType
}

func NewRouter(topics config.TopicConfig) *Router {
	byType := map[shared.EventType]string{
		shared.EventTransferRequested: topics.TransferRequested,
		shared.EventDebitCommand:      topics.DebitAccount,
		shared.EventCreditCommand:     topics.CreditAccount,
		shared.EventCompensateCommand: topics.RevertDebit,
		shared.EventDebited:           topics.AccountDebited,
		shared.EventDebitFailed:       topics.DebitFailed,
		shared.EventCredited:          topics.AccountCredited,
		shared.EventCreditFailed:      topics.CreditFailed,
		shared.EventTransferFailed:    topics.TransferFailed,
	}

	byTopic := make(map[string]shared.EventType, len(byType))
	for typ, topic := range byType {
		byTopic[topic] = typ
	}

	return &Router{byType: byType, byTopic: byTopic}
}

// Topic returns the topic evt type is published on.
func (r *Router) Topic(typ shared.EventType) (string, error) {
	topic, ok := r.byType[typ]
	if !ok || topic == "" {
		return "", fmt.Errorf("no topic configured for event type %q", typ)
	}
	return topic, nil
}

// EventType returns the event type a topic carries.
func (r *Router) EventType(topic string) (shared.EventType, bool) {
	typ, ok := r.byTopic[topic]
	return typ, ok
}
