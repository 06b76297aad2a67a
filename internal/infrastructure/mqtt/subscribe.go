package mqtt

import (
	"fmt"
	"sync"
)

// Subscribe registers handler for topic, which may use + and # wildcards.
// The subscription is tracked and restored after every reconnect.
//
// Example:
//
//	err := client.Subscribe(mqtt.Topics{}.AllCommands(), 1, handler.HandleMessage)
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subs.add(subscription{topic: topic, qos: qos, handler: handler})
	if err := wait(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		c.subs.remove(topic)
		return err
	}
	return nil
}

// Unsubscribe stops delivery for a topic previously passed to Subscribe.
// Messages already in flight may still arrive.
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subs.remove(topic)
	return wait(c.client.Unsubscribe(topic), ErrUnsubscribeFailed)
}

// SubscriptionCount returns the number of tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	return c.subs.len()
}

// HasSubscription reports whether topic, compared literally, is tracked.
func (c *Client) HasSubscription(topic string) bool {
	return c.subs.has(topic)
}

type subscription struct {
	topic   string
	qos     byte
	handler MessageHandler
}

// subscriptionSet tracks subscriptions by topic. The zero value is ready
// to use.
type subscriptionSet struct {
	mu     sync.RWMutex
	byName map[string]subscription
}

func (s *subscriptionSet) add(sub subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byName == nil {
		s.byName = make(map[string]subscription)
	}
	s.byName[sub.topic] = sub
}

func (s *subscriptionSet) remove(topic string) {
	s.mu.Lock()
	delete(s.byName, topic)
	s.mu.Unlock()
}

func (s *subscriptionSet) has(topic string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byName[topic]
	return ok
}

func (s *subscriptionSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}

func (s *subscriptionSet) snapshot() []subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := make([]subscription, 0, len(s.byName))
	for _, sub := range s.byName {
		subs = append(subs, sub)
	}
	return subs
}
