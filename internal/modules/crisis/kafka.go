package crisis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/finvoice/riskengine/internal/domain"
	"github.com/rs/zerolog"
)

// KafkaFeed keeps the registry in sync with a crisis topic. Each message is
// a JSON crisis event; resolved=true removes it.
type KafkaFeed struct {
	*StaticFeed
	group  sarama.ConsumerGroup
	topic  string
	ready  chan bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    zerolog.Logger
}

// NewKafkaFeed joins groupID on brokers. Consumption starts with Start.
func NewKafkaFeed(brokers []string, groupID, topic string, ttl time.Duration, log zerolog.Logger) (*KafkaFeed, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetNewest
	config.Version = sarama.V2_8_0_0

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	return newKafkaFeed(group, topic, ttl, log), nil
}

func newKafkaFeed(group sarama.ConsumerGroup, topic string, ttl time.Duration, log zerolog.Logger) *KafkaFeed {
	return &KafkaFeed{
		StaticFeed: NewStaticFeed(ttl, log),
		group:      group,
		topic:      topic,
		ready:      make(chan bool),
		log:        log.With().Str("component", "crisis_kafka").Str("topic", topic).Logger(),
	}
}

// Start consumes in the background until Close. It returns once the first
// session is set up, or when ctx ends; ctx only bounds that wait and the
// consume loop keeps running after it expires.
func (k *KafkaFeed) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(context.Background())
	k.cancel = cancel
	ready := k.ready

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		for {
			handler := &consumerGroupHandler{feed: k, ready: ready}
			if err := k.group.Consume(loopCtx, []string{k.topic}, handler); err != nil {
				k.log.Error().Err(err).Msg("Consumer group error")
			}
			if loopCtx.Err() != nil {
				return
			}
			ready = make(chan bool)
		}
	}()

	select {
	case <-k.ready:
		k.log.Info().Msg("Crisis feed consumer ready")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops consuming and leaves the group.
func (k *KafkaFeed) Close() error {
	if k.cancel != nil {
		k.cancel()
	}
	k.wg.Wait()
	return k.group.Close()
}

// handleMessage applies one crisis message to the registry.
func (k *KafkaFeed) handleMessage(msg *sarama.ConsumerMessage) error {
	var e domain.CrisisEvent
	if err := json.Unmarshal(msg.Value, &e); err != nil {
		return fmt.Errorf("malformed crisis event at offset %d: %w", msg.Offset, err)
	}
	if e.ID == "" && len(msg.Key) > 0 {
		e.ID = string(msg.Key)
	}

	if e.Resolved {
		if e.ID == "" {
			return fmt.Errorf("resolution without event id at offset %d", msg.Offset)
		}
		k.Resolve(e.ID)
		return nil
	}

	_, err := k.Publish(e)
	return err
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	feed  *KafkaFeed
	ready chan bool
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			if err := h.feed.handleMessage(message); err != nil {
				h.feed.log.Warn().Err(err).Int32("partition", message.Partition).Msg("Skipping crisis message")
			}
			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}
