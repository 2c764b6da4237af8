package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/coachdesk/coachdesk/internal/app"
	"github.com/coachdesk/coachdesk/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		AppEnv:                  "development",
		StorageDriver:           "memory",
		MaxTransferableSessions: 4,
		RenewalReminderLeadDays: 7,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	container, err := app.NewContainer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(container.Close)

	ts := httptest.NewServer(New(container, logger).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func createSubscription(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, body := doJSON(t, ts, http.MethodPost, "/subscriptions", map[string]any{
		"customer_id":       uuid.New().String(),
		"plan_id":           "pt-8",
		"start_date":        "2025-01-01",
		"recurring_billing": true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, ok := body["SubscriptionID"].(string)
	require.True(t, ok, "missing subscription id in %v", body)
	return id
}

func TestServer_CreateAndGet(t *testing.T) {
	ts := newTestServer(t)
	id := createSubscription(t, ts)

	resp, body := doJSON(t, ts, http.MethodGet, "/subscriptions/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "active", body["state"])
	assert.Equal(t, "pt-8", body["plan_id"])
	assert.Equal(t, float64(8), body["available_sessions"])
}

func TestServer_Create_Validation(t *testing.T) {
	ts := newTestServer(t)

	t.Run("bad date", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPost, "/subscriptions", map[string]any{
			"customer_id": uuid.New().String(),
			"plan_id":     "pt-8",
			"start_date":  "January 1st",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown plan", func(t *testing.T) {
		resp, _ := doJSON(t, ts, http.MethodPost, "/subscriptions", map[string]any{
			"customer_id": uuid.New().String(),
			"plan_id":     "platinum",
			"start_date":  "2025-01-01",
		})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestServer_FreezeLifecycle(t *testing.T) {
	ts := newTestServer(t)
	id := createSubscription(t, ts)

	freeze := map[string]any{
		"start":       "2025-01-10",
		"end":         "2025-01-20",
		"reason":      "vacation",
		"auto_resume": true,
	}
	resp, body := doJSON(t, ts, http.MethodPost, "/subscriptions/"+id+"/freeze", freeze)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(10), body["FrozenDays"])

	// A second freeze conflicts.
	resp, _ = doJSON(t, ts, http.MethodPost, "/subscriptions/"+id+"/freeze", freeze)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, ts, http.MethodPost, "/subscriptions/"+id+"/unfreeze", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "active", body["State"])
}

func TestServer_SessionOperations(t *testing.T) {
	ts := newTestServer(t)
	id := createSubscription(t, ts)

	resp, body := doJSON(t, ts, http.MethodPost, "/subscriptions/"+id+"/sessions/usage", map[string]any{"count": 3})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(5), body["Available"])

	resp, body = doJSON(t, ts, http.MethodPost, "/subscriptions/"+id+"/sessions/bonus", map[string]any{
		"count":  2,
		"reason": "referral",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(7), body["Available"])

	resp, _ = doJSON(t, ts, http.MethodPost, "/subscriptions/"+id+"/sessions/usage", map[string]any{"count": 50})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = doJSON(t, ts, http.MethodPost, "/subscriptions/"+id+"/sessions/transfer", map[string]any{
		"destination_period": "2025-02",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// All available capped at the configured maximum of 4.
	assert.Equal(t, float64(4), body["Sessions"])
}

func TestServer_Discounts(t *testing.T) {
	ts := newTestServer(t)
	id := createSubscription(t, ts)

	resp, body := doJSON(t, ts, http.MethodPost, "/subscriptions/"+id+"/discount", map[string]any{
		"type":       "percentage",
		"value":      20,
		"reason":     "loyalty",
		"valid_from": "2025-01-01",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(192), body["Price"])

	resp, _ = doJSON(t, ts, http.MethodPost, "/subscriptions/"+id+"/discount", map[string]any{
		"type":       "percentage",
		"value":      150,
		"valid_from": "2025-01-01",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = doJSON(t, ts, http.MethodDelete, "/subscriptions/"+id+"/discount", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(240), body["Price"])

	resp, _ = doJSON(t, ts, http.MethodDelete, "/subscriptions/"+id+"/discount", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_HistoryAndEngagement(t *testing.T) {
	ts := newTestServer(t)
	id := createSubscription(t, ts)

	_, _ = doJSON(t, ts, http.MethodPost, "/subscriptions/"+id+"/sessions/usage", map[string]any{"count": 1})

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/subscriptions/"+id+"/history", nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	assert.GreaterOrEqual(t, len(entries), 2)

	engResp, engBody := doJSON(t, ts, http.MethodGet, "/subscriptions/"+id+"/engagement?today=2025-01-05", nil)
	require.Equal(t, http.StatusOK, engResp.StatusCode)
	metric, ok := engBody["metric"].(map[string]any)
	require.True(t, ok, "missing metric in %v", engBody)
	assert.NotEmpty(t, metric["risk_level"])
}

func TestServer_NotFound(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := doJSON(t, ts, http.MethodGet, "/subscriptions/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, ts, http.MethodGet, "/subscriptions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_Groups(t *testing.T) {
	ts := newTestServer(t)

	resp, body := doJSON(t, ts, http.MethodPost, "/groups", map[string]any{
		"owner_customer_id": uuid.New().String(),
		"plan_id":           "pt-8",
		"start_date":        "2025-01-01",
		"discount_type":     "percentage",
		"discount_value":    10,
		"min_members":       2,
		"members": []map[string]any{
			{"customer_id": uuid.New().String(), "name": "Sam"},
			{"customer_id": uuid.New().String(), "name": "Alex"},
			{"customer_id": uuid.New().String(), "name": "Kim"},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	groupID, ok := body["GroupSubscriptionID"].(string)
	require.True(t, ok, "missing group id in %v", body)
	require.Len(t, body["MemberSubscriptionIDs"], 3)

	// Three pt-8 members at 240 each, 10 percent off.
	pricing, ok := body["Pricing"].(map[string]any)
	require.True(t, ok, "missing pricing in %v", body)
	assert.Equal(t, float64(720), pricing["Total"])
	assert.Equal(t, float64(648), pricing["DiscountedTotal"])
	assert.Equal(t, float64(216), pricing["PerMember"])

	resp, body = doJSON(t, ts, http.MethodGet, "/subscriptions/"+groupID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(648), body["price"], "parent carries the discounted group total")

	resp, body = doJSON(t, ts, http.MethodPost, fmt.Sprintf("/groups/%s/members", groupID), map[string]any{
		"customer_id": uuid.New().String(),
		"name":        "Robin",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(4), body["MemberCount"])
	pricing, ok = body["Pricing"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(864), pricing["DiscountedTotal"])
	memberSubID, ok := body["MemberSubscriptionID"].(string)
	require.True(t, ok)

	resp, body = doJSON(t, ts, http.MethodGet, "/subscriptions/"+memberSubID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(216), body["price"], "new member pays the pro-rata share")

	resp, body = doJSON(t, ts, http.MethodGet, "/subscriptions/"+groupID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(864), body["price"])
}
