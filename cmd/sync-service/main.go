package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/dispatcher"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/postgresql"
	"github.com/rural-care-hub/rural-care-hub/internal"
	"github.com/united-manufacturing-hub/umh-utils/env"
	"github.com/united-manufacturing-hub/umh-utils/logger"
	"go.uber.org/zap"
)

var buildtime string

func main() {
	InitLogging()
	zap.S().Infof("This is sync-service build date: %s", buildtime)

	InitPrometheus()
	pg := postgresql.GetOrInit()
	InitHealthCheck()

	batchSize, err := env.GetAsInt("SYNC_BATCH_SIZE", false, 50)
	if err != nil {
		zap.S().Fatalf("Failed to get SYNC_BATCH_SIZE from env: %s", err)
	}
	maxRetries, err := env.GetAsInt("SYNC_MAX_RETRIES", false, 5)
	if err != nil {
		zap.S().Fatalf("Failed to get SYNC_MAX_RETRIES from env: %s", err)
	}
	orphanTimeoutSec, err := env.GetAsInt("SYNC_ORPHAN_TIMEOUT_SEC", false, 300)
	if err != nil {
		zap.S().Fatalf("Failed to get SYNC_ORPHAN_TIMEOUT_SEC from env: %s", err)
	}
	version, err := env.GetAsString("API_VERSION", false, "1")
	if err != nil {
		zap.S().Fatalf("Failed to get API_VERSION from env: %s", err)
	}

	registry := dispatcher.DefaultRegistry(pg)
	dsp := dispatcher.New(pg, registry, batchSize, maxRetries, time.Duration(orphanTimeoutSec)*time.Second)

	SetupRestAPI(loadAccounts(), version, dsp, pg, maxRetries)
	zap.S().Infof("Sync service ready (batchSize=%d, maxRetries=%d, orphanTimeout=%ds)", batchSize, maxRetries, orphanTimeoutSec)

	gs := internal.NewGracefulShutdown(func() error {
		pg.Db.Close()
		return nil
	})
	gs.Wait()
}

// loadAccounts reads the basic-auth customer accounts from the environment,
// CUSTOMER_NAME_1/CUSTOMER_PASSWORD_1 .. CUSTOMER_NAME_100/...
func loadAccounts() gin.Accounts {
	accounts := gin.Accounts{}

	zap.S().Debugf("Loading accounts from environment..")
	for i := 1; i <= 100; i++ {
		tempUser, _ := env.GetAsString("CUSTOMER_NAME_"+strconv.Itoa(i), false, "")    //nolint:errcheck
		tempPassword, _ := env.GetAsString("CUSTOMER_PASSWORD_"+strconv.Itoa(i), false, "") //nolint:errcheck
		if tempUser != "" && tempPassword != "" {
			zap.S().Infof("Added account for %s", tempUser)
			accounts[tempUser] = tempPassword
		}
	}
	if len(accounts) == 0 {
		zap.S().Warnf("No customer accounts configured")
	}
	return accounts
}

func InitLogging() {
	logLevel, _ := env.GetAsString("LOGGING_LEVEL", false, "PRODUCTION") //nolint:errcheck
	_ = logger.New(logLevel)
}

func InitPrometheus() {
	metricsPath := "/metrics"
	metricsPort := ":2112"
	zap.S().Debugf("Setting up metrics %s %v", metricsPath, metricsPort)

	http.Handle(metricsPath, promhttp.Handler())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe(metricsPort, nil)
		if err != nil {
			zap.S().Errorf("Error starting metrics: %s", err)
		}
	}()
}

func InitHealthCheck() {
	zap.S().Debugf("Setting up healthcheck")

	health := healthcheck.NewHandler()
	health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(1000000))
	health.AddReadinessCheck("database", postgresql.GetHealthCheck())
	health.AddLivenessCheck("database", postgresql.GetHealthCheck())
	go func() {
		/* #nosec G114 */
		err := http.ListenAndServe("0.0.0.0:8086", health)
		if err != nil {
			zap.S().Errorf("Error starting healthcheck: %s", err)
		}
	}()
}
