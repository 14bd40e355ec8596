package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fisaks/voldisp/internal/mqtt"
	"github.com/fisaks/voldisp/internal/voldisp"
)

var actions = []string{"reinit", "refresh", "wake"}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
  volctl ACTION [flags]

Actions:
  reinit     reconnect WiFi and resync the clock
  refresh    redraw the current screen
  wake       restore full brightness

Optional flags:
  --broker   (string)   MQTT broker address (default: tcp://localhost:1883)
  --prefix   (string)   Topic prefix of the appliance (default: voldisp)
  --id       (string)   Command id echoed in the appliance logs

`)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Missing action (e.g. reinit)\n")
		usage()
		os.Exit(2)
	}

	action := strings.ToLower(os.Args[1])
	known := false
	for _, a := range actions {
		if a == action {
			known = true
		}
	}
	if !known {
		fmt.Fprintf(os.Stderr, "Unknown action: %s\n", action)
		usage()
		os.Exit(2)
	}

	flags := flag.NewFlagSet(action, flag.ExitOnError)
	broker := flags.String("broker", "tcp://localhost:1883", "MQTT broker address")
	prefix := flags.String("prefix", "voldisp", "topic prefix")
	id := flags.String("id", "", "command id")
	timeout := flags.Duration("timeout", 5*time.Second, "connect and publish timeout")
	flags.Usage = usage
	if err := flags.Parse(os.Args[2:]); err != nil {
		os.Exit(2)
	}

	client, err := mqtt.Connect(*broker, "volctl", *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer client.Disconnect(250)

	topic := strings.Trim(*prefix, "/") + "/cmd"
	cmd := voldisp.IncomingCommand{ID: *id, Action: action}
	if err := mqtt.PublishJSON(client, topic, 1, false, cmd, *timeout); err != nil {
		fmt.Fprintf(os.Stderr, "MQTT publish error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Published %s to %s\n", action, topic)
}
