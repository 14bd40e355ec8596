package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fisaks/voldisp/internal/logging"
	"golang.org/x/sync/errgroup"
)

func main() {
	soapAddr := flag.String("soap", ":1400", "listen address of the simulated speaker")
	restAddr := flag.String("rest", ":8080", "listen address of the control REST API")
	path := flag.String("path", "/MediaRenderer/RenderingControl/Control", "RenderingControl control path")
	service := flag.String("service", "urn:schemas-upnp-org:service:RenderingControl:1", "service type")
	volume := flag.Int("volume", 40, "initial raw volume")
	flag.Parse()

	logging.Init(logging.Options{Format: "text", Level: os.Getenv("LOG_LEVEL")})

	speaker := &Speaker{Volume: *volume}

	soapMux := http.NewServeMux()
	soapMux.HandleFunc("POST "+*path, SOAPHandler(speaker, *service))

	servers := []*http.Server{
		{Addr: *soapAddr, Handler: soapMux, ReadHeaderTimeout: 5 * time.Second},
		{Addr: *restAddr, Handler: RestMux(speaker), ReadHeaderTimeout: 5 * time.Second},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		g.Go(func() error {
			logging.Info("Speaker simulator listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logging.Fatal("Speaker simulator failed", "error", err)
	}
}
