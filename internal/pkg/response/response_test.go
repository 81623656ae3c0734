package response

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]string{"balance": "1.00"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.True(t, decode(t, rec).Success)
}

func TestRetryableErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	BadGateway(rec, "provider down")
	resp := decode(t, rec)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotNil(t, resp.Error)
	assert.True(t, resp.Error.Retryable)

	rec = httptest.NewRecorder()
	Conflict(rec, "already processed")
	resp = decode(t, rec)
	assert.False(t, resp.Error.Retryable)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
}

func TestNewMeta(t *testing.T) {
	m := NewMeta(45, 2, 20, 3)
	assert.True(t, m.HasNext)
	assert.True(t, m.HasPrev)

	m = NewMeta(5, 1, 20, 1)
	assert.False(t, m.HasNext)
	assert.False(t, m.HasPrev)
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Amount string `json:"amount"`
	}

	require.NoError(t, DecodeJSON(io.NopCloser(strings.NewReader(`{"amount":"10.50"}`)), &v))
	assert.Equal(t, "10.50", v.Amount)

	assert.ErrorIs(t, DecodeJSON(io.NopCloser(strings.NewReader("")), &v), ErrEmptyBody)
	assert.Error(t, DecodeJSON(io.NopCloser(strings.NewReader(`{"amount":"1"}{"amount":"2"}`)), &v))
	assert.Error(t, DecodeJSON(io.NopCloser(strings.NewReader(`{"amount":`)), &v))
}

func TestValidationErrorDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	ValidationError(rec, map[string]string{"amount": "must be positive"})

	resp := decode(t, rec)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "must be positive", resp.Error.Details["amount"])
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
