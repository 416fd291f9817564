package position

import (
	"context"
	"cycle-nav-service/internal/domain"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	msgs chan kafkago.Message
	err  error

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	select {
	case <-ctx.Done():
		return kafkago.Message{}, ctx.Err()
	case m, ok := <-f.msgs:
		if !ok {
			return kafkago.Message{}, f.err
		}
		return m, nil
	}
}

func (f *fakeReader) CommitMessages(ctx context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func fixMessage(t *testing.T, offset int64, fix FixMessage) kafkago.Message {
	t.Helper()
	b, err := json.Marshal(fix)
	require.NoError(t, err)
	return kafkago.Message{Offset: offset, Key: []byte(fix.DeviceID), Value: b}
}

func newFakeSource(r *fakeReader) *KafkaSource {
	return &KafkaSource{
		deviceID:  "bike-1",
		newReader: func() messageReader { return r },
		log:       zap.NewNop(),
	}
}

func receive(t *testing.T, ch <-chan domain.Position) domain.Position {
	t.Helper()
	select {
	case p, ok := <-ch:
		require.True(t, ok, "channel closed")
		return p
	case <-time.After(time.Second):
		t.Fatal("no fix received")
		return domain.Position{}
	}
}

func TestKafkaSourceFiltersAndDecodes(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafkago.Message, 4)}
	speed := 4.5
	ts := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	r.msgs <- fixMessage(t, 1, FixMessage{DeviceID: "bike-2", Lat: 1, Lon: 1})
	r.msgs <- kafkago.Message{Offset: 2, Value: []byte("{broken")}
	r.msgs <- fixMessage(t, 3, FixMessage{DeviceID: "bike-1", Lat: 48.1, Lon: 11.5, Speed: &speed, Timestamp: ts})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fixes, err := newFakeSource(r).Subscribe(ctx)
	require.NoError(t, err)

	p := receive(t, fixes)
	assert.Equal(t, 48.1, p.Lat)
	assert.Equal(t, 11.5, p.Lon)
	require.NotNil(t, p.Speed)
	assert.Equal(t, 4.5, *p.Speed)
	assert.Nil(t, p.Heading)
	assert.True(t, ts.Equal(p.Timestamp))

	r.mu.Lock()
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
	r.mu.Unlock()
}

func TestKafkaSourceCancelClosesReader(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafkago.Message)}
	ctx, cancel := context.WithCancel(context.Background())

	fixes, err := newFakeSource(r).Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-fixes:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.True(t, r.closed)
}

func TestKafkaSourceFetchErrorEndsStream(t *testing.T) {
	r := &fakeReader{msgs: make(chan kafkago.Message), err: errors.New("broker gone")}
	close(r.msgs)

	fixes, err := newFakeSource(r).Subscribe(context.Background())
	require.NoError(t, err)

	select {
	case _, ok := <-fixes:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestNewKafkaSourceValidates(t *testing.T) {
	_, err := NewKafkaSource(KafkaConfig{Topic: "t"}, "bike-1", zap.NewNop())
	assert.Error(t, err)
	_, err = NewKafkaSource(KafkaConfig{Brokers: []string{"localhost:9092"}}, "bike-1", zap.NewNop())
	assert.Error(t, err)
	_, err = NewKafkaSource(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, "", zap.NewNop())
	assert.Error(t, err)
}

func TestFactory(t *testing.T) {
	f := &Factory{
		DefaultKind:    KindReplay,
		Kafka:          KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "device.positions", GroupID: "nav"},
		ReplayInterval: func() time.Duration { return time.Second },
		Log:            zap.NewNop(),
	}

	_, err := f.New("", nil, "")
	assert.ErrorIs(t, err, domain.ErrNoRoute)

	src, err := f.New(KindKafka, nil, "bike-1")
	require.NoError(t, err)
	assert.IsType(t, &KafkaSource{}, src)

	_, err = f.New(KindKafka, nil, "")
	assert.ErrorIs(t, err, domain.ErrPositionUnavailable)

	_, err = f.New("carrier-pigeon", nil, "")
	assert.ErrorIs(t, err, domain.ErrUnsupportedPositionSource)
}
