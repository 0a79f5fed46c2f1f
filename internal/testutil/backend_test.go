package testutil

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendServesCannedResponses(t *testing.T) {
	b := NewBackend(t)
	b.SetJSON("products", `{"products":[]}`)

	resp, err := http.Get(b.BaseURL() + "/products")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"products":[]}`, string(body))
	assert.Equal(t, 1, b.Calls("/products"))

	resp, err = http.Get(b.BaseURL() + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestBackendRecordsStatusUpdates(t *testing.T) {
	b := NewBackend(t)

	req, err := http.NewRequest(http.MethodPut, b.BaseURL()+"/orders/42/status",
		strings.NewReader(`{"status":"confirmed","payment_verified":true}`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []StatusUpdate{{OrderID: "42", Status: "confirmed", PaymentVerified: true}}, b.StatusUpdates())
}
