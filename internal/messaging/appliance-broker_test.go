package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fisaks/voldisp/internal/voldisp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	topic   string
	qos     QoS
	retain  bool
	payload []byte
}

type fakeBroker struct {
	mu         sync.Mutex
	connected  bool
	publishes  []published
	handlers   map[string]MessageHandler
	onConnect  map[string]OnConnectPublisher
	publishErr error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		connected: true,
		handlers:  make(map[string]MessageHandler),
		onConnect: make(map[string]OnConnectPublisher),
	}
}

func (f *fakeBroker) Connect(ctx context.Context) error { return nil }
func (f *fakeBroker) Close(ctx context.Context) error   { return nil }
func (f *fakeBroker) IsConnected() bool                 { return f.connected }
func (f *fakeBroker) Topic(parts ...string) string {
	topic := "voldisp"
	for _, p := range parts {
		topic += "/" + p
	}
	return topic
}

func (f *fakeBroker) Publish(ctx context.Context, topic string, qos QoS, retain bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.publishes = append(f.publishes, published{topic, qos, retain, payload})
	return nil
}

func (f *fakeBroker) PublishJSON(ctx context.Context, topic string, qos QoS, retain bool, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.Publish(ctx, topic, qos, retain, data)
}

func (f *fakeBroker) Subscribe(ctx context.Context, topic string, qos QoS, handler MessageHandler) (Subscription, error) {
	f.handlers[topic] = handler
	return nil, nil
}

func (f *fakeBroker) AddOnConnectPublisher(id string, fn OnConnectPublisher) { f.onConnect[id] = fn }

func (f *fakeBroker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.publishes)
}

type recordingSubscriber struct {
	commands []voldisp.IncomingCommand
	err      error
}

func (r *recordingSubscriber) OnCommand(ctx context.Context, cmd voldisp.IncomingCommand) error {
	r.commands = append(r.commands, cmd)
	return r.err
}

func newTestApplianceBroker(now *time.Time) (*applianceBroker, *fakeBroker) {
	fb := newFakeBroker()
	info := func() (PublishRequest, error) {
		return PublishRequest{Topic: "info", Qos: AtLeastOnce, Retain: true, Payload: map[string]string{"name": "voldisp"}}, nil
	}
	return newApplianceBroker(fb, info, time.Minute, func() time.Time { return *now }), fb
}

func TestPublishStatusDedupesAndHeartbeats(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b, fb := newTestApplianceBroker(&now)
	ctx := context.Background()

	status := voldisp.StatusMessage{Timestamp: now, State: "normal", Mode: "speaker", Volume: 20, Known: true}
	require.NoError(t, b.PublishStatus(ctx, status))
	require.Equal(t, 1, fb.count())
	assert.Equal(t, "voldisp/status", fb.publishes[0].topic)
	assert.Equal(t, AsyncNoWait, fb.publishes[0].qos)
	assert.True(t, fb.publishes[0].retain)

	now = now.Add(30 * time.Second)
	status.Timestamp = now
	require.NoError(t, b.PublishStatus(ctx, status))
	assert.Equal(t, 1, fb.count(), "unchanged status within heartbeat is skipped")

	now = now.Add(31 * time.Second)
	require.NoError(t, b.PublishStatus(ctx, status))
	assert.Equal(t, 2, fb.count(), "heartbeat due")

	status.Muted = true
	require.NoError(t, b.PublishStatus(ctx, status))
	assert.Equal(t, 3, fb.count())

	var got voldisp.StatusMessage
	require.NoError(t, json.Unmarshal(fb.publishes[2].payload, &got))
	assert.True(t, got.Muted)
	assert.Equal(t, 20, got.Volume)
}

func TestPublishStatusSkippedWhileDisconnected(t *testing.T) {
	now := time.Now()
	b, fb := newTestApplianceBroker(&now)
	fb.connected = false
	require.NoError(t, b.PublishStatus(context.Background(), voldisp.StatusMessage{State: "normal"}))
	assert.Equal(t, 0, fb.count())
}

func TestPublishStatusFailureIsRetried(t *testing.T) {
	now := time.Now()
	b, fb := newTestApplianceBroker(&now)
	fb.publishErr = errors.New("boom")
	status := voldisp.StatusMessage{State: "normal"}
	assert.Error(t, b.PublishStatus(context.Background(), status))

	fb.publishErr = nil
	require.NoError(t, b.PublishStatus(context.Background(), status))
	assert.Equal(t, 1, fb.count())
}

func TestOnConnectPublishers(t *testing.T) {
	now := time.Now()
	b, fb := newTestApplianceBroker(&now)
	require.NoError(t, b.PublishStatus(context.Background(), voldisp.StatusMessage{State: "normal"}))

	req, err := fb.onConnect["info"]()
	require.NoError(t, err)
	assert.Equal(t, "voldisp/info", req.Topic)
	assert.True(t, req.Retain)

	req, err = fb.onConnect["online"]()
	require.NoError(t, err)
	assert.Equal(t, "voldisp/online", req.Topic)
	assert.Equal(t, []byte("true"), req.PayloadBytes)

	// reconnect forgets what was sent so the next status goes out
	require.NoError(t, b.PublishStatus(context.Background(), voldisp.StatusMessage{State: "normal"}))
	assert.Equal(t, 2, fb.count())
}

func TestCommandSubscriber(t *testing.T) {
	now := time.Now()
	b, fb := newTestApplianceBroker(&now)
	sub := &recordingSubscriber{}
	ctx := context.Background()
	require.NoError(t, b.StartCommandSubscriber(ctx, sub))

	handler, ok := fb.handlers["voldisp/cmd"]
	require.True(t, ok)

	handler(ctx, "voldisp/cmd", []byte(`{"id":"1","action":"reinit"}`))
	handler(ctx, "voldisp/cmd", []byte(" wake \n"))
	handler(ctx, "voldisp/cmd", []byte(`{"action":`))

	require.Len(t, sub.commands, 2)
	assert.Equal(t, voldisp.IncomingCommand{ID: "1", Action: "reinit"}, sub.commands[0])
	assert.Equal(t, "wake", sub.commands[1].Action)
}
