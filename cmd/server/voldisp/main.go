package main

// cSpell:ignore mqtt voldisp periph
import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fisaks/voldisp/internal/catalog"
	"github.com/fisaks/voldisp/internal/clock"
	"github.com/fisaks/voldisp/internal/config"
	"github.com/fisaks/voldisp/internal/device"
	"github.com/fisaks/voldisp/internal/display"
	"github.com/fisaks/voldisp/internal/logging"
	"github.com/fisaks/voldisp/internal/messaging"
	"github.com/fisaks/voldisp/internal/ntp"
	"github.com/fisaks/voldisp/internal/poller"
	"github.com/fisaks/voldisp/internal/soap"
	"golang.org/x/sync/errgroup"
	"periph.io/x/host/v3"
)

var version = "dev"

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	configPath := flag.String("config", getenv("VOLDISP_CONFIG_PATH", config.DefaultConfigPath), "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal("Config error", "error", err)
	}
	logging.Init(cfg.Log)
	defer logging.Close()

	logging.Info("Loaded config",
		"path", cfg.ConfigPath,
		"speaker", cfg.Speaker.Addr(),
		"headless", cfg.Display.Headless,
		"mqtt", cfg.MQTT.Enabled,
		"version", version,
	)

	if !cfg.Display.Headless || cfg.Button.Enabled {
		if _, err := host.Init(); err != nil {
			if !cfg.Display.Headless {
				logging.Fatal("periph host init failed", "error", err)
			}
			logging.Warn("periph host init failed, button disabled", "error", err)
			cfg.Button.Enabled = false
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.NewSystem()

	panel, err := display.Open(cfg.Display)
	if err != nil {
		logging.Fatal("Display init failed", "error", err)
	}
	defer panel.Close()
	renderer := display.NewRenderer(panel, cfg.Display.Width, cfg.Display.Height, cfg.Time)
	brightness := display.NewBrightness(panel, clk, cfg.Display)
	if err := brightness.Init(); err != nil {
		logging.Fatal("Display brightness init failed", "error", err)
	}

	wd := device.WatchdogFromConfig(cfg.Watchdog)
	defer wd.Close()

	g, ctx := errgroup.WithContext(ctx)

	deps := poller.Deps{
		Speaker:    soap.NewClient(cfg.Speaker, nil),
		Renderer:   renderer,
		Brightness: brightness,
		Watchdog:   wd,
		Link:       device.NewLink(cfg.Network),
		Syncer:     ntp.NewSyncer(cfg.Time.NTPServer, cfg.Time.Timeout, clk),
		Clock:      clk,
	}

	if cfg.Button.Enabled {
		button, err := device.OpenButton(cfg.Button.Pin)
		if err != nil {
			logging.Warn("Button unavailable", "pin", cfg.Button.Pin, "error", err)
		} else {
			deps.Button = button
			if button.EdgeDriven() {
				g.Go(func() error { return button.Watch(ctx) })
			}
		}
	}

	var broker messaging.ApplianceBroker
	if cfg.MQTT.Enabled {
		cat := catalog.NewApplianceCatalog(cfg, version, []string{poller.ActionReinit, poller.ActionRefresh, poller.ActionWake})
		broker = messaging.NewApplianceBroker(messaging.BrokerConfig{
			BrokerURL:        cfg.MQTT.BrokerURL,
			ClientName:       cfg.MQTT.ClientName,
			TopicPrefix:      cfg.MQTT.TopicPrefix,
			ConnectTimeout:   cfg.MQTT.ConnectTimeout,
			PublishTimeout:   cfg.MQTT.PublishTimeout,
			SubscribeTimeout: cfg.MQTT.SubscribeTimeout,
		}, cat.OnConnectPublish, cfg.MQTT.HeartbeatInterval)
		deps.Status = broker
	}

	speakerPoller, err := poller.NewSpeakerPoller(cfg, deps)
	if err != nil {
		logging.Fatal("poller init", "error", err)
	}

	if broker != nil {
		// a timed out connect keeps retrying in the background
		connectCtx, cancel := context.WithTimeout(ctx, cfg.MQTT.ConnectTimeout)
		if err := broker.Connect(connectCtx); err != nil {
			logging.Warn("MQTT connect", "broker", cfg.MQTT.BrokerURL, "error", err)
		}
		cancel()
		if err := broker.StartCommandSubscriber(ctx, speakerPoller); err != nil {
			logging.Warn("Command subscription failed", "error", err)
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = broker.Close(closeCtx)
		}()
	}

	g.Go(func() error { return speakerPoller.StartPoller(ctx) })

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		// exits without the magic close so the watchdog resets the board
		logging.Fatal("Appliance stopped", "error", err)
	}
	logging.Info("bye")
}
