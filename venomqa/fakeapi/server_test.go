package fakeapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doJSON(t *testing.T, srv *Server, method, path, sessionID string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set("X-VenomQA-Session", sessionID)
		req.Header.Set("X-VenomQA-Mode", "exploration")
	}
	rec := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		json.Unmarshal(rec.Body.Bytes(), &decoded)
	}
	return rec, decoded
}

func TestDoubleRefundViolatesWithBugEnabled(t *testing.T) {
	srv := New(Bugs{OverRefund: true})

	_, begin := doJSON(t, srv, http.MethodPost, "/venomqa/begin", "", map[string]string{"session_id": "s1"})
	assert.Equal(t, "began", begin["status"])

	_, order := doJSON(t, srv, http.MethodPost, "/orders", "s1", map[string]int{"amount": 100})
	orderID := order["id"].(string)

	doJSON(t, srv, http.MethodPost, "/orders/"+orderID+"/refund", "s1", nil)
	_, refunded := doJSON(t, srv, http.MethodPost, "/orders/"+orderID+"/refund", "s1", nil)

	assert.EqualValues(t, 200, refunded["refunded"])
	assert.Greater(t, refunded["refunded"].(float64), order["amount"].(float64))
}

func TestDoubleRefundHoldsWithoutBug(t *testing.T) {
	srv := New(Bugs{})

	doJSON(t, srv, http.MethodPost, "/venomqa/begin", "", map[string]string{"session_id": "s1"})
	_, order := doJSON(t, srv, http.MethodPost, "/orders", "s1", map[string]int{"amount": 100})
	orderID := order["id"].(string)

	doJSON(t, srv, http.MethodPost, "/orders/"+orderID+"/refund", "s1", nil)
	_, refunded := doJSON(t, srv, http.MethodPost, "/orders/"+orderID+"/refund", "s1", nil)

	assert.LessOrEqual(t, refunded["refunded"].(float64), order["amount"].(float64))
}

func TestCheckpointRollbackDiscardsOrder(t *testing.T) {
	srv := New(Bugs{})
	doJSON(t, srv, http.MethodPost, "/venomqa/begin", "", map[string]string{"session_id": "s1"})

	_, cp := doJSON(t, srv, http.MethodPost, "/venomqa/checkpoint", "", map[string]string{"session_id": "s1"})
	checkpointID := cp["checkpoint_id"].(string)

	_, order := doJSON(t, srv, http.MethodPost, "/orders", "s1", map[string]int{"amount": 50})
	orderID := order["id"].(string)

	rec, _ := doJSON(t, srv, http.MethodGet, "/orders/"+orderID, "s1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	doJSON(t, srv, http.MethodPost, "/venomqa/rollback", "", map[string]string{"session_id": "s1", "checkpoint_id": checkpointID})

	rec, _ = doJSON(t, srv, http.MethodGet, "/orders/"+orderID, "s1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRollbackToOuterDiscardsInner(t *testing.T) {
	srv := New(Bugs{})
	doJSON(t, srv, http.MethodPost, "/venomqa/begin", "", map[string]string{"session_id": "s1"})

	_, outer := doJSON(t, srv, http.MethodPost, "/venomqa/checkpoint", "", map[string]string{"session_id": "s1"})
	outerID := outer["checkpoint_id"].(string)

	_, inner := doJSON(t, srv, http.MethodPost, "/venomqa/checkpoint", "", map[string]string{"session_id": "s1"})
	innerID := inner["checkpoint_id"].(string)

	rec, _ := doJSON(t, srv, http.MethodPost, "/venomqa/rollback", "", map[string]string{"session_id": "s1", "checkpoint_id": outerID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodPost, "/venomqa/rollback", "", map[string]string{"session_id": "s1", "checkpoint_id": innerID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletedItemReturns404WithoutBug(t *testing.T) {
	srv := New(Bugs{})
	doJSON(t, srv, http.MethodPost, "/venomqa/begin", "", map[string]string{"session_id": "s1"})

	_, item := doJSON(t, srv, http.MethodPost, "/items", "s1", map[string]string{"body": "x"})
	itemID := item["id"].(string)

	rec, _ := doJSON(t, srv, http.MethodDelete, "/items/"+itemID, "s1", nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodGet, "/items/"+itemID, "s1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletedItemStaysReadableWithBug(t *testing.T) {
	srv := New(Bugs{StaleReadsOnDelete: true})
	doJSON(t, srv, http.MethodPost, "/venomqa/begin", "", map[string]string{"session_id": "s1"})

	_, item := doJSON(t, srv, http.MethodPost, "/items", "s1", map[string]string{"body": "x"})
	itemID := item["id"].(string)

	doJSON(t, srv, http.MethodDelete, "/items/"+itemID, "s1", nil)

	rec, _ := doJSON(t, srv, http.MethodGet, "/items/"+itemID, "s1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPollStatusIsANoOp(t *testing.T) {
	srv := New(Bugs{})
	doJSON(t, srv, http.MethodPost, "/venomqa/begin", "", map[string]string{"session_id": "s1"})

	_, first := doJSON(t, srv, http.MethodGet, "/status", "s1", nil)
	_, second := doJSON(t, srv, http.MethodGet, "/status", "s1", nil)
	assert.EqualValues(t, 1, first["calls"])
	assert.EqualValues(t, 2, second["calls"])
}

func TestDataPlaneRequestWithoutSessionIsRejected(t *testing.T) {
	srv := New(Bugs{})
	rec, _ := doJSON(t, srv, http.MethodGet, "/status", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
