package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/amberpower/controller/pkg/mqtt"
	"github.com/koding/multiconfig"
	"github.com/sirupsen/logrus"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := &mqtt.Config{}
	err := multiconfig.New().Load(cfg)
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
	logrus.SetLevel(lvl)

	wg := &sync.WaitGroup{}
	_, err = mqtt.Start(ctx, wg, cfg)
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}

	<-ctx.Done()
	wg.Wait()
}
