package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/dispatcher"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/helpers"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/postgresql"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
	"go.uber.org/zap"
)

var syncDispatcher *dispatcher.Dispatcher
var pgConn *postgresql.Connection
var cfgMaxRetries int

// SetupRestAPI initializes the REST API and starts listening.
func SetupRestAPI(accounts gin.Accounts, version string, dsp *dispatcher.Dispatcher, pg *postgresql.Connection, maxRetries int) {
	router := setupRouter(accounts, version, dsp, pg, maxRetries)
	go func() {
		err := router.Run(":80")
		if err != nil {
			zap.S().Fatalf("Failed to run REST API: %s", err)
		}
	}()
}

func setupRouter(accounts gin.Accounts, version string, dsp *dispatcher.Dispatcher, pg *postgresql.Connection, maxRetries int) *gin.Engine {
	syncDispatcher = dsp
	pgConn = pg
	cfgMaxRetries = maxRetries

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Combined access and error log to stdout, RFC3339 with UTC time format.
	router.Use(ginzap.Ginzap(zap.L(), time.RFC3339, true))
	// Logs all panics to the error log, with stack.
	router.Use(ginzap.RecoveryWithZap(zap.L(), true))
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Healthcheck
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "online")
	})

	apiString := fmt.Sprintf("/api/v%s", version)

	v1 := router.Group(apiString, gin.BasicAuth(accounts))
	{
		// Each handler re-checks that the authenticated user matches
		// :customer, so one valid account cannot touch another queue.
		v1.POST("/:customer/sync", triggerSyncHandler)
		v1.GET("/:customer/sync/status", getSyncStatusHandler)
		v1.POST("/:customer/sync/queue", submitQueueHandler)
	}

	return router
}

type customerRequest struct {
	Customer string `uri:"customer" binding:"required"`
}

// triggerSyncHandler runs one dispatcher pass over the caller's queue and
// returns the per-item outcomes. Safe to call again while another pass is
// still running; the claim update keeps the batches disjoint.
func triggerSyncHandler(c *gin.Context) {
	var request customerRequest
	err := c.BindUri(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}
	if err = helpers.CheckIfUserIsAllowed(c, request.Customer); err != nil {
		return
	}

	report, err := syncDispatcher.Run(request.Customer)
	if err != nil {
		helpers.HandleInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func getSyncStatusHandler(c *gin.Context) {
	var request customerRequest
	err := c.BindUri(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}
	if err = helpers.CheckIfUserIsAllowed(c, request.Customer); err != nil {
		return
	}

	status, err := pgConn.GetQueueStatus(request.Customer, cfgMaxRetries)
	if err != nil {
		helpers.HandleInternalServerError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// submitQueueHandler accepts a batch of locally queued mutations from an
// offline client. Items are validated one by one; a bad record is rejected
// without dragging down the rest of the batch.
func submitQueueHandler(c *gin.Context) {
	var request customerRequest
	err := c.BindUri(&request)
	if err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}
	if err = helpers.CheckIfUserIsAllowed(c, request.Customer); err != nil {
		return
	}

	var body shared.SubmitRequest
	if err = c.ShouldBindJSON(&body); err != nil {
		helpers.HandleInvalidInputError(c, err)
		return
	}

	report := shared.SubmitReport{
		Accepted: []shared.SubmitAccepted{},
		Rejected: []shared.SubmitRejected{},
	}
	for _, rec := range body.Items {
		if err := validateSubmitRecord(&rec); err != nil {
			report.Rejected = append(report.Rejected, shared.SubmitRejected{LocalID: rec.LocalID, Error: err.Error()})
			continue
		}
		id, err := pgConn.EnqueueItem(request.Customer, rec.Action, rec.EntityType, rec.EntityID, rec.Payload)
		if err != nil {
			report.Rejected = append(report.Rejected, shared.SubmitRejected{LocalID: rec.LocalID, Error: err.Error()})
			continue
		}
		report.Accepted = append(report.Accepted, shared.SubmitAccepted{LocalID: rec.LocalID, ID: id})
	}
	c.JSON(http.StatusOK, report)
}

func validateSubmitRecord(rec *shared.SubmitRecord) error {
	if rec.Action != shared.ActionCreate && (rec.EntityID == nil || *rec.EntityID == "") {
		return fmt.Errorf("%s %s requires an entityId", rec.Action, rec.EntityType)
	}
	return shared.ValidatePayload(rec.EntityType, rec.Action, rec.Payload)
}
