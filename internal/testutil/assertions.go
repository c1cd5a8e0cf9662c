package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/dom/calcutta-auction/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertJSONResponse decodes JSON response into v and verifies success
func AssertJSONResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	err = json.Unmarshal(body, v)
	require.NoError(t, err, "failed to unmarshal response: %s", string(body))
}

// AssertErrorResponse verifies error response with expected status and message
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	// Error responses are plain text in this API
	assert.Contains(t, string(body), expectedMessage, "error message mismatch")
}

// AssertDecimalEqual compares decimals by value, so 100 and 100.00 match
func AssertDecimalEqual(t *testing.T, expected, actual decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	if !expected.Equal(actual) {
		assert.Fail(t, fmt.Sprintf("expected %s, got %s", expected, actual), msgAndArgs...)
	}
}

// AssertSessionState verifies the phase and item pointer of a session
func AssertSessionState(t *testing.T, session *domain.AuctionSession, status domain.SessionStatus, bidding domain.BiddingStatus, index int) {
	t.Helper()
	assert.Equal(t, status, session.Status, "unexpected session status")
	assert.Equal(t, bidding, session.BiddingStatus, "unexpected bidding status")
	assert.Equal(t, index, session.CurrentItemIndex, "unexpected item index")
}
