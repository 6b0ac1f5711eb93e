package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisherFactory func(topic string) publisher

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// pubSubPublishers resolves topic publishers from the shared client. A topic
// the client cannot serve yields nil, which the relay dead-letters.
func pubSubPublishers(client pubSubClient) publisherFactory {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return topicPublisher{p}
	}
}

type topicPublisher struct {
	p *gcppubsub.Publisher
}

func (t topicPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	res := t.p.Publish(ctx, msg)
	if res == nil {
		return nil
	}
	return topicResult{res}
}

type topicResult struct {
	r *gcppubsub.PublishResult
}

func (t topicResult) Get(ctx context.Context) (string, error) {
	if t.r == nil {
		return "", errors.New("publish result is nil")
	}
	return t.r.Get(ctx)
}
