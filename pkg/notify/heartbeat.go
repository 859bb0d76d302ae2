package notify

import (
	"fmt"
	"net/http"
	"time"

	"github.com/amberpower/controller/pkg/config"
	"github.com/sirupsen/logrus"
)

// Heartbeat pings the monitoring URL. Used only for observability, never
// for control flow.
type Heartbeat struct {
	cfg        *config.Heartbeat
	httpClient *http.Client
}

func NewHeartbeat(cfg *config.Heartbeat) *Heartbeat {
	return &Heartbeat{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

// Ping reports success to the monitoring service, or failure when isFail
// is set. Returns whether the monitoring endpoint was reachable.
func (h *Heartbeat) Ping(isFail bool) bool {
	if h.cfg.WebsiteURL == "" {
		return false
	}

	url := h.cfg.WebsiteURL
	if isFail {
		url += "/fail"
	}

	resp, err := h.httpClient.Get(url)
	if err != nil {
		logrus.Warnf("error pinging heartbeat %s: %v", url, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		logrus.Warn(fmt.Sprintf("heartbeat %s returned status %d", url, resp.StatusCode))
		return false
	}
	logrus.Debugf("heartbeat sent to %s", url)
	return true
}
