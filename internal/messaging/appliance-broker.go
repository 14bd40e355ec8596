package messaging

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/fisaks/voldisp/internal/logging"
	"github.com/fisaks/voldisp/internal/state"
	"github.com/fisaks/voldisp/internal/voldisp"
)

const statusKey = "status"

type ApplianceBroker interface {
	Broker
	voldisp.StatusPublisher
	StartCommandSubscriber(ctx context.Context, subscriber voldisp.CommandSubscriber) error
}

type applianceBroker struct {
	Broker
	subscriber        voldisp.CommandSubscriber
	statusState       state.StatusStore
	heartbeatInterval time.Duration
	now               func() time.Time
}

// NewApplianceBroker publishes the appliance info and the online flag on every
// connect. Topics returned by info are relative to the topic prefix.
func NewApplianceBroker(cfg BrokerConfig, info OnConnectPublisher, heartbeatInterval time.Duration) ApplianceBroker {
	return newApplianceBroker(NewMsgBroker(cfg), info, heartbeatInterval, time.Now)
}

func newApplianceBroker(broker Broker, info OnConnectPublisher, heartbeatInterval time.Duration, now func() time.Time) *applianceBroker {
	b := &applianceBroker{
		Broker:            broker,
		statusState:       state.NewStatusStoreWithClock(now),
		heartbeatInterval: heartbeatInterval,
		now:               now,
	}
	if info != nil {
		b.AddOnConnectPublisher("info", func() (PublishRequest, error) {
			req, err := info()
			req.Topic = b.Topic(req.Topic)
			return req, err
		})
	}
	b.AddOnConnectPublisher("online", b.onlinePublish)
	return b
}

func (b *applianceBroker) onlinePublish() (PublishRequest, error) {
	// status published before a reconnect may have been dropped
	b.statusState.Clear()
	return PublishRequest{
		Topic:        b.Topic("online"),
		Qos:          AtLeastOnce,
		Retain:       true,
		PayloadBytes: []byte("true"),
	}, nil
}

func (b *applianceBroker) StartCommandSubscriber(ctx context.Context, subscriber voldisp.CommandSubscriber) error {
	b.subscriber = subscriber
	_, err := b.Subscribe(ctx, b.Topic("cmd"), AtLeastOnce, b.OnMessage)
	return err
}

func (b *applianceBroker) PublishStatus(ctx context.Context, status voldisp.StatusMessage) error {
	if !b.IsConnected() {
		return nil
	}
	isChanged := b.statusState.HasChanged(statusKey, status)
	needsHeartbeat := false
	if !isChanged {
		_, lastSent, hasPrev := b.statusState.GetLast(statusKey)
		if b.heartbeatInterval > 0 {
			needsHeartbeat = !hasPrev || b.now().Sub(lastSent) > b.heartbeatInterval
		}
	}
	if isChanged || needsHeartbeat {
		logging.Debug("Publishing status", "state", status.State, "mode", status.Mode, "volume", status.Volume, "muted", status.Muted)
		err := b.PublishJSON(ctx, b.Topic("status"), AsyncNoWait, true, status)
		if err == nil {
			b.statusState.Update(statusKey, status)
		}
		return err
	}
	return nil
}

// OnMessage accepts {"action":"reinit"} or a bare action word.
func (b *applianceBroker) OnMessage(ctx context.Context, topic string, payload []byte) {
	logging.Debug("Received cmd message", "topic", topic)
	if b.subscriber == nil {
		return
	}
	var cmd voldisp.IncomingCommand
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			logging.Warn("cmd json", "error", err)
			return
		}
	} else {
		cmd.Action = trimmed
	}
	if err := b.subscriber.OnCommand(ctx, cmd); err != nil {
		logging.Warn("cmd handling", "error", err, "action", cmd.Action)
	}
}
