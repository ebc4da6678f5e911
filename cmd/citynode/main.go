// citynode runs one simulated city against a regiond server: it creates or
// joins a region, then sync cycles push its snapshot and pull the region
// back, logging trade statistics as they arrive.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/citiesregional/regiond/internal/cloudsync"
	"github.com/citiesregional/regiond/internal/effects"
	"github.com/citiesregional/regiond/internal/region"
	"github.com/citiesregional/regiond/internal/regionsync"
	"github.com/citiesregional/regiond/internal/snapshot"
	"github.com/citiesregional/regiond/pkg/messaging"
)

func main() {
	baseURL := getEnv("REGIOND_URL", "http://localhost:8080")
	regionName := getEnv("REGION_NAME", "New Region")
	regionCode := os.Getenv("REGION_CODE")
	cityName := getEnv("CITY_NAME", "Cityville")
	natsURL := os.Getenv("NATS_URL")

	interval := regionsync.DefaultSyncInterval
	if raw := os.Getenv("SYNC_INTERVAL_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil {
			log.Fatalf("invalid SYNC_INTERVAL_SECONDS: %v", err)
		}
		interval = time.Duration(secs) * time.Second
	}

	var msgClient *messaging.Client
	if natsURL != "" {
		var err error
		msgClient, err = messaging.NewClient(messaging.Config{
			URL:  natsURL,
			Name: "citynode-" + cityName,
		})
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		defer msgClient.Close()
	}

	transport := cloudsync.New(cloudsync.Config{BaseURL: baseURL}, msgClient)
	defer transport.Close()

	source := snapshot.NewSimulatedSource(time.Now().UnixNano())
	collector := snapshot.NewCollector(source, uuid.NewString(), cityName)
	collector.PlayerName = getEnv("PLAYER_NAME", "player")

	manager := regionsync.NewManager(
		regionsync.Config{SyncInterval: interval},
		transport,
		collector,
		effects.NewRegistry(),
		regionsync.Observers{
			OnConnectionStatusChanged: func(s regionsync.ConnectionStatus) {
				log.Printf("connection status: %s", s)
			},
			OnRegionUpdated: func(r *region.Region) {
				log.Printf("region %s: %d cities, %d connections, population %d",
					r.RegionName, len(r.Cities), len(r.Connections), r.TotalPopulation())
			},
			OnRegionalEvent: func(evt region.Event) {
				log.Printf("regional event [%s] %s", evt.Type, evt.Title)
			},
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		r   *region.Region
		err error
	)
	if regionCode != "" {
		r, err = manager.JoinRegion(ctx, regionCode)
	} else {
		r, err = manager.CreateRegion(ctx, regionName, region.DefaultMaxCities)
	}
	if err != nil {
		log.Fatalf("failed to enter region: %v", err)
	}
	log.Printf("city %s is in region %s (code %s)", cityName, r.RegionName, r.RegionCode)

	report := time.NewTicker(interval)
	defer report.Stop()
	for {
		select {
		case <-ctx.Done():
			leaveCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := manager.LeaveRegion(leaveCtx); err != nil {
				log.Printf("failed to leave region cleanly: %v", err)
			}
			cancel()
			return
		case <-report.C:
			stats := manager.Statistics()
			if stats == nil {
				continue
			}
			log.Printf("trades: %d flows, volume %.0f, value %.0f",
				stats.TradeCount, stats.TotalTradeVolume, stats.TotalTradeValue)
			for _, entry := range manager.Leaderboard() {
				log.Printf("  #%d %s pop=%d gdp=%.0f", entry.Rank, entry.CityName, entry.Population, entry.GDP)
			}
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
