package main

import (
	"context"
	"time"

	"github.com/rural-care-hub/rural-care-hub/cmd/sync-client/store"
	"github.com/rural-care-hub/rural-care-hub/internal"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"
)

const backoffSlot = 1 * time.Second
const backoffMax = 2 * time.Minute

var buildtime string

func main() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	_ = logger.New(logLevel)
	zap.S().Infof("This is sync-client build date: %s", buildtime)

	serverURL, err := env.GetAsString("SYNC_SERVER_URL", true, "")
	if err != nil {
		zap.S().Fatalf("Failed to get SYNC_SERVER_URL from env: %s", err)
	}
	customer, err := env.GetAsString("CUSTOMER_NAME", true, "")
	if err != nil {
		zap.S().Fatalf("Failed to get CUSTOMER_NAME from env: %s", err)
	}
	password, err := env.GetAsString("CUSTOMER_PASSWORD", true, "")
	if err != nil {
		zap.S().Fatalf("Failed to get CUSTOMER_PASSWORD from env: %s", err)
	}
	queuePath, err := env.GetAsString("SYNC_QUEUE_PATH", false, "/data/sync-client/queue")
	if err != nil {
		zap.S().Fatalf("Failed to get SYNC_QUEUE_PATH from env: %s", err)
	}
	intervalSec, err := env.GetAsInt("SYNC_INTERVAL_SEC", false, 60)
	if err != nil {
		zap.S().Fatalf("Failed to get SYNC_INTERVAL_SEC from env: %s", err)
	}
	batchSize, err := env.GetAsInt("SYNC_BATCH_SIZE", false, 50)
	if err != nil {
		zap.S().Fatalf("Failed to get SYNC_BATCH_SIZE from env: %s", err)
	}

	st, err := store.Open(queuePath)
	if err != nil {
		zap.S().Fatalf("Failed to open local queue at %s: %s", queuePath, err)
	}

	gs := internal.NewGracefulShutdown(func() error {
		return st.Close()
	})

	client := NewSyncClient(serverURL, customer, password, batchSize, st)
	zap.S().Infof("Sync client started (server=%s, interval=%ds, queue=%s)", serverURL, intervalSec, queuePath)

	runPushLoop(client, st, time.Duration(intervalSec)*time.Second, gs)
	gs.Wait()
}

// runPushLoop pushes the local queue on every tick. Connectivity out here is
// intermittent by assumption, so consecutive failures back off exponentially
// instead of hammering a link that just came back up.
func runPushLoop(client *SyncClient, st *store.Store, interval time.Duration, gs internal.GracefulShutdownHandler) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var failures int64
	for !gs.ShuttingDown() {
		<-ticker.C
		if gs.ShuttingDown() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), interval)
		report, err := client.PushOnce(ctx)
		cancel()
		if err != nil {
			failures++
			zap.S().Warnf("Push failed (attempt %d, %d records queued): %s", failures, st.Length(), err)
			internal.SleepBackedOff(failures, backoffSlot, backoffMax)
			continue
		}
		failures = 0
		if report.Processed > 0 {
			zap.S().Infof("Server processed %d items: %d successful, %d failed", report.Processed, report.Successful, report.Failed)
		}
	}
}
