package mqtt

import (
	"context"
	"os"
	"sync"
	"time"

	mqttv2 "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/sirupsen/logrus"
)

// Config for the embedded broker that republishes the scheduler state.
type Config struct {
	Listen      string `default:":1883"`
	Topic       string `default:"powerscheduler/state"`
	StateFile   string `default:"system_state.json"`
	PollSeconds int    `default:"10"`

	LogLevel string `default:"info"`
}

// Start runs an embedded MQTT broker and republishes the saved scheduler
// state on the configured topic whenever the state file changes. The
// message is retained so late subscribers get the latest state
// immediately.
func Start(ctx context.Context, wg *sync.WaitGroup, cfg *Config) (*mqttv2.Server, error) {
	server := mqttv2.New(&mqttv2.Options{
		InlineClient: true,
	})

	// Allow all connections.
	_ = server.AddHook(new(auth.AllowHook), nil)

	tcp := listeners.NewTCP(listeners.Config{ID: "t1", Address: cfg.Listen})
	err := server.AddListener(tcp)
	if err != nil {
		return server, err
	}

	err = server.Serve()
	if err != nil {
		return server, err
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		publishOnChange(ctx, server, cfg)
	}()

	go func() {
		<-ctx.Done()
		server.Close()
	}()
	return server, nil
}

// publishOnChange polls the state file mtime and republishes the content
// when it advances. The scheduler rewrites the file on every invocation,
// so polling at a fraction of the invocation interval is enough.
func publishOnChange(ctx context.Context, server *mqttv2.Server, cfg *Config) {
	interval := time.Duration(cfg.PollSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastMod time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(cfg.StateFile)
			if err != nil {
				logrus.Debugf("state file %s not available yet: %v", cfg.StateFile, err)
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}

			b, err := os.ReadFile(cfg.StateFile)
			if err != nil {
				logrus.Warnf("error reading state file %s: %v", cfg.StateFile, err)
				continue
			}
			if err := server.Publish(cfg.Topic, b, true, 0); err != nil {
				logrus.Errorf("error publishing state to %s: %v", cfg.Topic, err)
				continue
			}
			lastMod = info.ModTime()
			logrus.Debugf("published %d bytes of scheduler state to %s", len(b), cfg.Topic)
		}
	}
}
