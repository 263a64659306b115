package crisis

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKafkaFeed() *KafkaFeed {
	return newKafkaFeed(nil, "crisis-events", 0, zerolog.Nop())
}

func TestHandleMessage_PublishesAndResolves(t *testing.T) {
	feed := newTestKafkaFeed()

	err := feed.handleMessage(&sarama.ConsumerMessage{
		Key:   []byte("evt-1"),
		Value: []byte(`{"category":"geopolitical","description":"Border conflict","severity":7.5}`),
	})
	require.NoError(t, err)

	events, err := feed.ListActiveEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "evt-1", events[0].ID)
	assert.Equal(t, 7.5, events[0].Severity)

	err = feed.handleMessage(&sarama.ConsumerMessage{Value: []byte(`{"id":"evt-1","resolved":true}`)})
	require.NoError(t, err)
	assert.Zero(t, feed.Count())
}

func TestHandleMessage_Malformed(t *testing.T) {
	feed := newTestKafkaFeed()

	assert.Error(t, feed.handleMessage(&sarama.ConsumerMessage{Value: []byte(`{not json`)}))
	assert.Error(t, feed.handleMessage(&sarama.ConsumerMessage{Value: []byte(`{"resolved":true}`)}))
	assert.Zero(t, feed.Count())
}

type fakeSession struct {
	ctx    context.Context
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32                                        { return nil }
func (s *fakeSession) MemberID() string                                                  { return "member" }
func (s *fakeSession) GenerationID() int32                                               { return 1 }
func (s *fakeSession) MarkOffset(topic string, partition int32, offset int64, m string)  {}
func (s *fakeSession) Commit()                                                           {}
func (s *fakeSession) ResetOffset(topic string, partition int32, offset int64, m string) {}
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.marked = append(s.marked, msg.Offset)
}
func (s *fakeSession) Context() context.Context { return s.ctx }

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Topic() string                            { return "crisis-events" }
func (c *fakeClaim) Partition() int32                         { return 0 }
func (c *fakeClaim) InitialOffset() int64                     { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumeClaim_MarksEveryMessage(t *testing.T) {
	feed := newTestKafkaFeed()
	handler := &consumerGroupHandler{feed: feed, ready: make(chan bool)}
	require.NoError(t, handler.Setup(nil))

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"id":"a","category":"economic","severity":6}`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 2, Value: []byte(`garbage`)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 3, Value: []byte(`{"id":"b","category":"market_volatility","severity":4}`)}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, handler.ConsumeClaim(session, claim))

	assert.Equal(t, []int64{1, 2, 3}, session.marked)
	assert.Equal(t, 2, feed.Count())
}

// fakeGroup runs one session per Consume call over a shared message channel.
type fakeGroup struct {
	messages chan *sarama.ConsumerMessage
	consumed chan struct{}
}

func newFakeGroup() *fakeGroup {
	return &fakeGroup{
		messages: make(chan *sarama.ConsumerMessage, 4),
		consumed: make(chan struct{}, 4),
	}
}

func (g *fakeGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	session := &fakeSession{ctx: ctx}
	if err := handler.Setup(session); err != nil {
		return err
	}
	err := handler.ConsumeClaim(session, &fakeClaim{messages: g.messages})
	g.consumed <- struct{}{}
	return err
}

func (g *fakeGroup) Errors() <-chan error                 { return nil }
func (g *fakeGroup) Close() error                         { return nil }
func (g *fakeGroup) Pause(partitions map[string][]int32)  {}
func (g *fakeGroup) Resume(partitions map[string][]int32) {}
func (g *fakeGroup) PauseAll()                            {}
func (g *fakeGroup) ResumeAll()                           {}

func TestKafkaFeed_KeepsConsumingAfterStartContextEnds(t *testing.T) {
	group := newFakeGroup()
	feed := newKafkaFeed(group, "crisis-events", 0, zerolog.Nop())

	startCtx, startCancel := context.WithTimeout(context.Background(), 5*time.Second)
	require.NoError(t, feed.Start(startCtx))
	startCancel()

	group.messages <- &sarama.ConsumerMessage{Offset: 1, Value: []byte(`{"id":"evt-9","category":"geopolitical","severity":8}`)}

	assert.Eventually(t, func() bool { return feed.Count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, group.consumed, "session ended after the start context was cancelled")

	require.NoError(t, feed.Close())
	assert.Len(t, group.consumed, 1)
}

func TestKafkaFeed_StartTimesOutWithoutSession(t *testing.T) {
	feed := newKafkaFeed(blockingGroup{newFakeGroup()}, "crisis-events", 0, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, feed.Start(ctx), context.DeadlineExceeded)
	require.NoError(t, feed.Close())
}

// blockingGroup never sets up a session.
type blockingGroup struct{ *fakeGroup }

func (blockingGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	<-ctx.Done()
	return nil
}
