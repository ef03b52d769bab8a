package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/nerrad567/rfbridge/internal/infrastructure/mqtt"
)

// Broker is the part of mqtt.Client the store needs.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// MQTTStore publishes states under the state prefix and answers reads from
// whatever the broker has sent back, so retained values survive restarts.
type MQTTStore struct {
	broker Broker
	topics mqtt.Topics
	qos    byte
	retain bool
	logger Logger

	mu    sync.RWMutex
	cache map[string]string
}

// NewMQTTStore creates a store. Call Start to load retained states.
func NewMQTTStore(broker Broker, topics mqtt.Topics, qos byte, retain bool, logger Logger) *MQTTStore {
	return &MQTTStore{
		broker: broker,
		topics: topics,
		qos:    qos,
		retain: retain,
		logger: orNoop(logger),
		cache:  make(map[string]string),
	}
}

// Start subscribes to parent and subdevice state topics. Retained messages
// arrive asynchronously after the subscription completes.
func (s *MQTTStore) Start(_ context.Context) error {
	for _, filter := range s.topics.StateFilters() {
		if err := s.broker.Subscribe(filter, s.qos, s.handleState); err != nil {
			return fmt.Errorf("subscribing to %s: %w", filter, err)
		}
	}
	return nil
}

func (s *MQTTStore) handleState(topic string, payload []byte) error {
	path, ok := s.topics.PathFromState(topic)
	if !ok {
		return nil
	}
	s.logger.Debug("retained state received", "path", path, "state", string(payload))

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(payload) == 0 {
		delete(s.cache, path)
		return nil
	}
	s.cache[path] = string(payload)
	return nil
}

// Get returns the last state seen on the broker for path.
func (s *MQTTStore) Get(_ context.Context, path string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.cache[path]
	return state, ok, nil
}

// Set publishes state to <state_prefix>/<path>.
func (s *MQTTStore) Set(_ context.Context, path, state string) error {
	if err := s.broker.Publish(s.topics.State(path), []byte(state), s.qos, s.retain); err != nil {
		return fmt.Errorf("publishing state %s: %w", path, err)
	}
	s.mu.Lock()
	s.cache[path] = state
	s.mu.Unlock()
	return nil
}
