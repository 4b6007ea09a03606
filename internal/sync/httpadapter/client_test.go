package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmreid/daybook/internal/models"
	daysync "github.com/jmreid/daybook/internal/sync"
)

func testNote(id, title string) *models.Note {
	return &models.Note{
		ID: id, OwnerID: "u1", Title: title,
		Versioned: models.Versioned{Version: 1, UpdatedAt: time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)},
	}
}

func TestPushSendsRecordsAndAuth(t *testing.T) {
	var gotPath, gotAuth, gotDevice string
	var gotReq pushRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotDevice = r.Header.Get("X-Device-ID")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(pushResponse{
			Accepted: 1,
			Rejected: []pushRejection{{Collection: "notes", ID: "n2", Reason: "stale version"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-key", "device-7")
	res, err := c.Push(context.Background(), "u1", daysync.Batch{
		models.CollectionNotes: {testNote("n1", "ok"), testNote("n2", "stale")},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1/sync/u1/push", gotPath)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "device-7", gotDevice)
	assert.Equal(t, "device-7", gotReq.DeviceID)
	require.Len(t, gotReq.Records, 2)
	assert.Equal(t, "notes", gotReq.Records[0].Collection)

	assert.Equal(t, 1, res.RecordsSent)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "n2", res.Errors[0].RecordID)
	assert.EqualError(t, res.Errors[0].Err, "stale version")
}

func TestPushEmptyBatchSkipsNetwork(t *testing.T) {
	c := New("http://127.0.0.1:1", "k", "d") // nothing listens here
	res, err := c.Push(context.Background(), "u1", daysync.Batch{})
	require.NoError(t, err)
	assert.Zero(t, res.RecordsSent)
}

func TestPullDecodesRecords(t *testing.T) {
	note := testNote("n1", "from server")
	payload, err := json.Marshal(note)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sync/u1/pull", r.URL.Path)
		var req pullRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"notes"}, req.Collections)
		json.NewEncoder(w).Encode(pullResponse{Records: []wireRecord{
			{Collection: "notes", ID: "n1", Payload: payload},
			{Collection: "gizmos", ID: "g1", Payload: []byte(`{}`)},
			{Collection: "notes", ID: "n2", Payload: []byte(`{broken`)},
		}})
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "d")
	res, err := c.Pull(context.Background(), "u1", []models.Collection{models.CollectionNotes})
	require.NoError(t, err)

	require.Len(t, res.Records[models.CollectionNotes], 1)
	got := res.Records[models.CollectionNotes][0].(*models.Note)
	assert.Equal(t, "from server", got.Title)
	assert.EqualValues(t, 1, got.Version)

	// Unknown collection and bad payload surface per record, not as a
	// whole-pull failure.
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "g1", res.Errors[0].RecordID)
	assert.Equal(t, "n2", res.Errors[1].RecordID)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrForbidden},
		{http.StatusNotFound, ErrNotFound},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		c := New(srv.URL, "k", "d")
		_, err := c.Pull(context.Background(), "u1", []models.Collection{models.CollectionNotes})
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
		srv.Close()
	}
}

func TestServerErrorIncludesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "replica rebuilding", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(srv.URL, "k", "d")
	_, err := c.Pull(context.Background(), "u1", []models.Collection{models.CollectionNotes})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "replica rebuilding")
}

func TestContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := New(srv.URL, "k", "d")
	_, err := c.Pull(ctx, "u1", []models.Collection{models.CollectionNotes})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
