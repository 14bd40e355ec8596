// Package mqtt holds the small paho helpers shared by the command line tools.
// The appliance itself goes through messaging.MsgBroker.
package mqtt

// cSpell:ignore mqtt
import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Connect dials brokerURL with a unique client id derived from name.
func Connect(brokerURL, name string, timeout time.Duration, configure ...func(*mqtt.ClientOptions)) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().AddBroker(brokerURL)
	opts.SetClientID(fmt.Sprintf("%s-%d", name, time.Now().UnixNano()))
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(timeout)
	for _, fn := range configure {
		fn(opts)
	}
	c := mqtt.NewClient(opts)
	tok := c.Connect()
	if !tok.WaitTimeout(timeout) {
		return nil, fmt.Errorf("mqtt connect %s: timeout after %v", brokerURL, timeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", brokerURL, err)
	}
	return c, nil
}

func PublishJSON(client mqtt.Client, topic string, qos byte, retained bool, v any, timeout time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	token := client.Publish(topic, qos, retained, data)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("publish %s: timeout after %v", topic, timeout)
	}
	return token.Error()
}

// Subscribe waits for the SUBACK.
func Subscribe(client mqtt.Client, topic string, qos byte, handler mqtt.MessageHandler, timeout time.Duration) error {
	token := client.Subscribe(topic, qos, handler)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("subscribe %s: timeout after %v", topic, timeout)
	}
	return token.Error()
}
