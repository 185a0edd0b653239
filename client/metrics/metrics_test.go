package metrics_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamwoolhether/httpsession/client"
	"github.com/adamwoolhether/httpsession/client/metrics"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		name string
		resp *client.Response
		want string
	}{
		{"ok", &client.Response{StatusCode: http.StatusOK}, metrics.OutcomeSuccess},
		{"status", &client.Response{StatusCode: http.StatusForbidden}, metrics.OutcomeStatus},
		{"redirect", &client.Response{StatusCode: http.StatusFound}, metrics.OutcomeStatus},
		{"timeout", &client.Response{StatusCode: http.StatusRequestTimeout, Err: fmt.Errorf("%w: slow", client.ErrTimeout)}, metrics.OutcomeTimeout},
		{"canceled", &client.Response{StatusCode: http.StatusRequestTimeout, Err: fmt.Errorf("%w: stop", client.ErrCanceled)}, metrics.OutcomeCanceled},
		{"transport", &client.Response{Err: fmt.Errorf("%w: reset", client.ErrTransport)}, metrics.OutcomeTransport},
		{"filesystem", &client.Response{Err: fmt.Errorf("%w: exists", client.ErrFilesystem)}, metrics.OutcomeFilesystem},
		{"other", &client.Response{StatusCode: http.StatusOK, Err: errors.New("checksum")}, metrics.OutcomeOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, metrics.Outcome(tt.resp))
		})
	}
}

func TestCollector_Observe(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()

	m, err := metrics.New(reg, "test")
	require.NoError(t, err)

	m.Observe(nil, &client.Response{RequestMethod: http.MethodGet, StatusCode: 200, Elapsed: 10 * time.Millisecond})
	m.Observe(nil, &client.Response{RequestMethod: http.MethodGet, StatusCode: 200, Elapsed: 20 * time.Millisecond})
	m.Observe(nil, &client.Response{RequestMethod: http.MethodPost, StatusCode: 403})
	m.Observe(nil, &client.Response{Err: client.ErrTransport})

	count, err := testutil.GatherAndCount(reg, "test_http_client_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "expected one series per label set")

	count, err = testutil.GatherAndCount(reg, "test_http_client_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := metrics.New(reg, "dup")
	require.NoError(t, err)

	_, err = metrics.New(reg, "dup")
	var are prometheus.AlreadyRegisteredError
	assert.ErrorAs(t, err, &are)
}
