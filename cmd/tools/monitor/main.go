package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/fisaks/voldisp/internal/catalog"
	"github.com/fisaks/voldisp/internal/mqtt"
	"github.com/fisaks/voldisp/internal/voldisp"
)

func formatStatus(payload []byte) (string, error) {
	var s voldisp.StatusMessage
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", err
	}
	speaker := "?"
	if s.Known {
		speaker = fmt.Sprintf("vol=%d", s.Volume)
		if s.Muted {
			speaker += " muted"
		}
	}
	line := fmt.Sprintf("%s state=%s mode=%s %s brightness=%d errors=%d",
		s.Timestamp.Local().Format(time.TimeOnly), s.State, s.Mode, speaker, s.Brightness, s.ErrorCount)
	if s.LastError != "" {
		line += " lastError=" + s.LastError
	}
	return line, nil
}

func formatInfo(payload []byte) (string, error) {
	var info catalog.ApplianceInfoMessage
	if err := json.Unmarshal(payload, &info); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s speaker=%s display=%dx%d headless=%t commands=%s",
		info.Name, info.Version, info.Speaker.Addr, info.Display.Width, info.Display.Height,
		info.Display.Headless, strings.Join(info.Commands, ",")), nil
}

func formatMessage(topic string, payload []byte) string {
	var (
		line string
		err  error
	)
	switch {
	case strings.HasSuffix(topic, "/status"):
		line, err = formatStatus(payload)
	case strings.HasSuffix(topic, "/info"):
		line, err = formatInfo(payload)
	default:
		line = string(payload)
	}
	if err != nil {
		return fmt.Sprintf("%s %s (error: %v)", topic, string(payload), err)
	}
	return fmt.Sprintf("%s %s", topic, line)
}

func main() {
	var broker, topic string
	flag.StringVar(&broker, "broker", "tcp://localhost:1883", "MQTT broker address")
	flag.StringVar(&topic, "topic", "voldisp/#", "MQTT topic filter")
	flag.Parse()

	client, err := mqtt.Connect(broker, "voldisp-monitor", 10*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Connected to MQTT broker %s, subscribing to %s...\n", broker, topic)

	err = mqtt.Subscribe(client, topic, 0, func(_ paho.Client, msg paho.Message) {
		fmt.Println(formatMessage(msg.Topic(), msg.Payload()))
	}, 5*time.Second)
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	fmt.Println("\nShutting down...")
	client.Disconnect(200)
}
