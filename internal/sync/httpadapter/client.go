// Package httpadapter implements the sync adapter contract over a JSON HTTP
// API. It is one backend among possibly several; the orchestrator neither
// knows nor cares about the wire format here.
package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jmreid/daybook/internal/models"
	daysync "github.com/jmreid/daybook/internal/sync"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
)

// Client talks to a daybook sync server.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

var _ daysync.Adapter = (*Client)(nil)

// New creates a sync client for the given server.
func New(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Wire types ---

type wireRecord struct {
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Payload    json.RawMessage `json:"payload"`
}

type pushRequest struct {
	DeviceID string       `json:"device_id"`
	Records  []wireRecord `json:"records"`
}

type pushRejection struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Reason     string `json:"reason"`
}

type pushResponse struct {
	Accepted int             `json:"accepted"`
	Rejected []pushRejection `json:"rejected,omitempty"`
}

type pullRequest struct {
	DeviceID    string   `json:"device_id"`
	Collections []string `json:"collections"`
}

type pullResponse struct {
	Records []wireRecord `json:"records"`
}

// Push uploads the owner's records.
func (c *Client) Push(ctx context.Context, ownerID string, batch daysync.Batch) (daysync.PushResult, error) {
	var result daysync.PushResult

	req := pushRequest{DeviceID: c.DeviceID}
	for col, records := range batch {
		for _, rec := range records {
			payload, err := json.Marshal(rec)
			if err != nil {
				return result, fmt.Errorf("encode %s %s: %w", col, rec.RecordID(), err)
			}
			req.Records = append(req.Records, wireRecord{
				Collection: string(col),
				ID:         rec.RecordID(),
				Payload:    payload,
			})
		}
	}
	if len(req.Records) == 0 {
		return result, nil
	}

	var resp pushResponse
	path := fmt.Sprintf("/v1/sync/%s/push", url.PathEscape(ownerID))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return result, err
	}

	result.RecordsSent = resp.Accepted
	for _, rej := range resp.Rejected {
		result.Errors = append(result.Errors, daysync.RecordError{
			Collection: models.Collection(rej.Collection),
			RecordID:   rej.ID,
			Err:        errors.New(rej.Reason),
		})
	}
	return result, nil
}

// Pull downloads the owner's records for the given collections and decodes
// them into concrete record types. Records that fail to decode become
// per-record errors rather than failing the whole pull.
func (c *Client) Pull(ctx context.Context, ownerID string, collections []models.Collection) (daysync.PullResult, error) {
	result := daysync.PullResult{Records: daysync.Batch{}}

	req := pullRequest{DeviceID: c.DeviceID}
	for _, col := range collections {
		req.Collections = append(req.Collections, string(col))
	}

	var resp pullResponse
	path := fmt.Sprintf("/v1/sync/%s/pull", url.PathEscape(ownerID))
	if err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return result, err
	}

	for _, wr := range resp.Records {
		col := models.Collection(wr.Collection)
		rec, ok := models.NewRecord(col)
		if !ok {
			result.Errors = append(result.Errors, daysync.RecordError{
				Collection: col, RecordID: wr.ID,
				Err: fmt.Errorf("unknown collection %q", wr.Collection),
			})
			continue
		}
		if err := json.Unmarshal(wr.Payload, rec); err != nil {
			result.Errors = append(result.Errors, daysync.RecordError{
				Collection: col, RecordID: wr.ID,
				Err: fmt.Errorf("decode payload: %w", err),
			})
			continue
		}
		result.Records[col] = append(result.Records[col], rec)
	}
	return result, nil
}

// doJSON posts a JSON body and decodes a JSON response, mapping common HTTP
// statuses onto sentinel errors.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("X-Device-ID", c.DeviceID)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
