// Command multirigd runs the multirig control plane standalone, wiring
// a fixed configuration for local testing. A full deployment is
// expected to drive multirig.Core from an external HTTP/config layer
// instead of this binary.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	multirig "github.com/rcludwick/multirig"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("MULTIRIG_LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}
	entry := logrus.NewEntry(log)

	core := multirig.New(entry)
	if err := core.Apply(multirig.DefaultConfig()); err != nil {
		log.WithField("err", err).Fatal("applying initial configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := core.Start(ctx); err != nil {
		log.WithField("err", err).Fatal("starting multirig")
	}

	log.Info("multirig listening")
	<-ctx.Done()

	log.Info("shutting down")
	if err := core.Stop(); err != nil {
		log.WithField("err", err).Warn("errors during shutdown")
	}
}
