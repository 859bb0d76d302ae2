package price

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/amberpower/controller/pkg/config"
	"github.com/amberpower/controller/pkg/cycle"
	"github.com/sirupsen/logrus"
)

// Client fetches the Amber price forecast for the active site.
type Client struct {
	cfg        *config.Amber
	httpClient *http.Client
	now        func() time.Time
}

func NewClient(cfg *config.Amber) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		now: time.Now,
	}
}

type amberSite struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type amberPrice struct {
	Type        string    `json:"type"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	PerKwh      float64   `json:"perKwh"`
	ChannelType string    `json:"channelType"`
}

// SiteID returns the id of the active Amber site. Transport failures are
// degraded (the caller falls back to mock prices); having no active site
// at all is fatal.
func (c *Client) SiteID() (string, error) {
	var sites []amberSite
	err := c.get(c.cfg.BaseURL+"/sites", &sites)
	if err != nil {
		return "", cycle.Degraded(fmt.Errorf("error fetching site id: %w", err))
	}

	for _, site := range sites {
		if site.Status == "active" {
			return site.ID, nil
		}
	}
	return "", cycle.Fatalf("no active Amber sites found")
}

// FetchToday returns the ordered price slots for the remainder of today
// in the configured channel, with slot times converted to local time.
func (c *Client) FetchToday(siteID string) ([]*Slot, error) {
	logrus.Info("downloading Amber prices for the next 24 hours")

	url := fmt.Sprintf("%s/sites/%s/prices/current?next=47&previous=0&resolution=30", c.cfg.BaseURL, siteID)
	var prices []amberPrice
	err := c.get(url, &prices)
	if err != nil {
		return nil, cycle.Degraded(fmt.Errorf("error fetching prices: %w", err))
	}

	now := c.now()
	slots := make([]*Slot, 0, len(prices))
	for _, entry := range prices {
		if entry.ChannelType != c.cfg.Channel {
			continue
		}
		start := entry.StartTime.In(now.Location())
		if start.Year() != now.Year() || start.YearDay() != now.YearDay() {
			continue
		}
		slots = append(slots, &Slot{
			Slot:      len(slots),
			StartTime: start,
			EndTime:   entry.EndTime.In(now.Location()),
			Price:     entry.PerKwh,
		})
	}

	if len(slots) == 0 {
		return nil, cycle.Fatalf("no Amber prices found for the %s channel", c.cfg.Channel)
	}
	logrus.Debugf("%d prices fetched successfully", len(slots))
	return slots, nil
}

func (c *Client) get(url string, out any) error {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Load fetches today's prices, falling back to synthetic flat prices at
// averagePrice when the feed is unreachable or not configured. The
// returned error is only non-nil for fatal conditions.
func Load(cfg *config.CliConfig, averagePrice float64) (*PriceData, error) {
	client := NewClient(&cfg.Amber)
	slots, err := fetchLive(cfg, client)
	if err != nil {
		if cycle.IsFatal(err) {
			return nil, err
		}
		logrus.Warnf("using mock electricity prices: %v", err)
		slots = nil
	}

	if len(slots) == 0 {
		return New(GenerateMock(client.now(), averagePrice), false), nil
	}

	dumpSlots(cfg.Files.LatestPriceData, slots)
	return New(slots, true), nil
}

func fetchLive(cfg *config.CliConfig, client *Client) ([]*Slot, error) {
	if cfg.Amber.APIKey == "" {
		return nil, cycle.Degradedf("Amber API not configured")
	}

	siteID, err := client.SiteID()
	if err != nil {
		return nil, err
	}
	return client.FetchToday(siteID)
}

// dumpSlots keeps a copy of the latest fetched prices for debugging.
func dumpSlots(path string, slots []*Slot) {
	if path == "" {
		return
	}
	b, err := json.MarshalIndent(slots, "", "    ")
	if err == nil {
		err = os.WriteFile(path, b, 0644)
	}
	if err != nil {
		logrus.Warnf("error saving latest price data to %s: %v", path, err)
	}
}
