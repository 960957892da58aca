package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-client/store"
	"github.com/rural-care-hub/rural-care-hub/cmd/sync-service/shared"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// SyncClient pushes the local queue to the sync service and triggers a
// dispatcher pass once the records are handed over.
type SyncClient struct {
	serverURL  string
	customer   string
	password   string
	batchSize  int
	httpClient *http.Client
	store      *store.Store
}

func NewSyncClient(serverURL string, customer string, password string, batchSize int, st *store.Store) *SyncClient {
	return &SyncClient{
		serverURL:  serverURL,
		customer:   customer,
		password:   password,
		batchSize:  batchSize,
		httpClient: &http.Client{Timeout: requestTimeout},
		store:      st,
	}
}

// PushOnce submits one batch of pending local records, clears the confirmed
// ones from the local store and triggers a sync pass on the server. Local
// records stay queued on any transport failure; they are only removed after
// the server confirmed it accepted them.
func (sc *SyncClient) PushOnce(ctx context.Context) (*shared.SyncReport, error) {
	records, err := sc.store.ListPending(sc.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read local queue: %w", err)
	}

	if len(records) > 0 {
		submit := shared.SubmitRequest{Items: make([]shared.SubmitRecord, 0, len(records))}
		for _, rec := range records {
			submit.Items = append(submit.Items, shared.SubmitRecord{
				LocalID:    rec.LocalID,
				Action:     rec.Action,
				EntityType: rec.EntityType,
				EntityID:   rec.EntityID,
				Payload:    rec.Payload,
				Timestamp:  rec.Timestamp,
			})
		}

		var submitReport shared.SubmitReport
		err = sc.post(ctx, "/sync/queue", &submit, &submitReport)
		if err != nil {
			return nil, fmt.Errorf("batch submit failed: %w", err)
		}

		confirmed := make(map[string]bool, len(submitReport.Accepted))
		for _, acc := range submitReport.Accepted {
			confirmed[acc.LocalID] = true
		}
		removed, err := sc.store.RemoveConfirmed(confirmed)
		if err != nil {
			return nil, fmt.Errorf("failed to clear confirmed records: %w", err)
		}
		zap.S().Infof("Submitted %d records, %d accepted, %d rejected, %d cleared locally",
			len(records), len(submitReport.Accepted), len(submitReport.Rejected), removed)
		for _, rej := range submitReport.Rejected {
			zap.S().Warnf("Record %s rejected by server: %s", rej.LocalID, rej.Error)
		}
	}

	var report shared.SyncReport
	err = sc.post(ctx, "/sync", nil, &report)
	if err != nil {
		return nil, fmt.Errorf("sync trigger failed: %w", err)
	}
	return &report, nil
}

func (sc *SyncClient) post(ctx context.Context, path string, body any, out any) error {
	url := fmt.Sprintf("%s/api/v1/%s%s", sc.serverURL, sc.customer, path)

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return err
	}
	req.SetBasicAuth(sc.customer, sc.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := sc.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096)) //nolint:errcheck
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(raw))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
