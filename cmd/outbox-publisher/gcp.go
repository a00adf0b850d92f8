package main

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Resume(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// publisherCache keeps one ordered publisher per topic. A paused ordering
// key can only be resumed on the publisher that paused it.
type publisherCache struct {
	client pubSubClient
	byName map[string]*gcppubsub.Publisher
}

func newPublisherCache(client pubSubClient) *publisherCache {
	return &publisherCache{client: client, byName: map[string]*gcppubsub.Publisher{}}
}

func (c *publisherCache) get(topic string) publisher {
	p, ok := c.byName[topic]
	if !ok {
		p = c.client.Publisher(topic)
		if p == nil {
			return nil
		}
		p.EnableMessageOrdering = true
		c.byName[topic] = p
	}
	return orderedPublisher{p: p}
}

// stop flushes and stops every cached publisher.
func (c *publisherCache) stop() {
	for topic, p := range c.byName {
		p.Stop()
		delete(c.byName, topic)
	}
}

type orderedPublisher struct {
	p *gcppubsub.Publisher
}

func (o orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	res := o.p.Publish(ctx, msg)
	if res == nil {
		return nil
	}
	return publishResultFunc(res.Get)
}

func (o orderedPublisher) Resume(key string) {
	o.p.ResumePublish(key)
}

type publishResultFunc func(context.Context) (string, error)

func (f publishResultFunc) Get(ctx context.Context) (string, error) {
	if f == nil {
		return "", errNilPublishResult
	}
	return f(ctx)
}
