package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/mocks"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dev/bravebird/tracker-check/pkg/browser"
	"dev/bravebird/tracker-check/pkg/checker"
	"dev/bravebird/tracker-check/pkg/models"
	"dev/bravebird/tracker-check/pkg/temporal/workflows"
)

var testResources = map[string][]string{
	"example.com": {"jquery.js", "analytics.js", "chartbeat.js"},
	"pixel.com":   {"fbevents.js"},
}

func stubChecker() *checker.Checker {
	return checker.New(browser.LoaderFunc(func(ctx context.Context, domain string) ([]string, error) {
		if domain == "down.example" {
			return nil, errors.New("net::ERR_NAME_NOT_RESOLVED")
		}
		return testResources[domain], nil
	}))
}

type fakeValue struct {
	out workflows.CheckOutput
}

func (v fakeValue) HasValue() bool { return true }

func (v fakeValue) Get(valuePtr interface{}) error {
	p, ok := valuePtr.(*workflows.CheckOutput)
	if !ok {
		return errors.New("unexpected value type")
	}
	*p = v.out
	return nil
}

type fakeTemporal struct {
	started []workflows.CheckInput
	options []client.StartWorkflowOptions
	outputs map[string]workflows.CheckOutput
}

func (f *fakeTemporal) ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error) {
	f.options = append(f.options, options)
	f.started = append(f.started, args[0].(workflows.CheckInput))

	run := &mocks.WorkflowRun{}
	run.On("GetID").Return(options.ID)
	run.On("GetRunID").Return("run-1")
	return run, nil
}

func (f *fakeTemporal) QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error) {
	out, ok := f.outputs[workflowID]
	if !ok || queryType != workflows.ProgressQuery {
		return nil, errors.New("workflow not found")
	}
	return fakeValue{out: out}, nil
}

func newTestServer(t *testing.T, tc WorkflowClient) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewHandlers(stubChecker(), tc, nil).Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestListTrackers(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/trackers")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 3)
	assert.Equal(t, "Google Analytics", got[0]["name"])
	assert.Equal(t, "fbevents.js", got[2]["pattern"])
}

func TestCheckDomain(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/check/example.com")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got models.CheckResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.NotEmpty(t, got.ID)
	require.NotNil(t, got.Result)
	assert.Equal(t, "example.com", got.Result.URL)
	assert.Equal(t, []models.Detection{
		{Name: "Google Analytics", Present: true},
		{Name: "Chartbeat", Present: true},
		{Name: "Facebook Pixel", Present: false},
	}, got.Result.Detected)
}

func TestCheckDomainErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		path string
		want int
	}{
		{path: "/api/check/down.example", want: http.StatusBadGateway},
		{path: "/api/check/%20", want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.want, resp.StatusCode)
			var got models.CheckResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Nil(t, got.Result)
			assert.NotEmpty(t, got.Error)
		})
	}
}

func dialStream(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/check/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readAll(conn *websocket.Conn) []models.CheckResponse {
	var msgs []models.CheckResponse
	for {
		var msg models.CheckResponse
		if err := conn.ReadJSON(&msg); err != nil {
			return msgs
		}
		msgs = append(msgs, msg)
	}
}

func TestStreamChecks(t *testing.T) {
	srv := newTestServer(t, nil)
	conn := dialStream(t, srv)

	require.NoError(t, conn.WriteJSON(models.StreamRequest{Domains: []string{"example.com", "pixel.com"}}))

	msgs := readAll(conn)
	require.Len(t, msgs, 2)
	assert.Equal(t, "example.com", msgs[0].Result.URL)
	assert.Equal(t, "pixel.com", msgs[1].Result.URL)
	pixel, _ := msgs[1].Result.Has("Facebook Pixel")
	assert.True(t, pixel)
	assert.NotEqual(t, msgs[0].ID, msgs[1].ID)
}

func TestStreamChecksStopsAtFailure(t *testing.T) {
	srv := newTestServer(t, nil)
	conn := dialStream(t, srv)

	require.NoError(t, conn.WriteJSON(models.StreamRequest{Domains: []string{"example.com", "down.example", "pixel.com"}}))

	msgs := readAll(conn)
	require.Len(t, msgs, 2)
	assert.NotNil(t, msgs[0].Result)
	assert.Nil(t, msgs[1].Result)
	assert.Contains(t, msgs[1].Error, "ERR_NAME_NOT_RESOLVED")
}

func TestStartCheck(t *testing.T) {
	tc := &fakeTemporal{}
	srv := newTestServer(t, tc)

	body := bytes.NewBufferString(`{"domains":["example.com"," ","pixel.com"]}`)
	resp, err := http.Post(srv.URL+"/api/checks", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.True(t, strings.HasPrefix(got["id"], "tracker-check-"))
	assert.Equal(t, "run-1", got["run_id"])

	require.Len(t, tc.started, 1)
	assert.Equal(t, []string{"example.com", "pixel.com"}, tc.started[0].Domains)
	assert.Equal(t, got["id"], tc.started[0].CheckID)
	assert.Equal(t, workflows.TaskQueue, tc.options[0].TaskQueue)
}

func TestStartCheckRejectsEmpty(t *testing.T) {
	tc := &fakeTemporal{}
	srv := newTestServer(t, tc)

	resp, err := http.Post(srv.URL+"/api/checks", "application/json", bytes.NewBufferString(`{"domains":[]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, tc.started)
}

func TestGetCheck(t *testing.T) {
	tc := &fakeTemporal{outputs: map[string]workflows.CheckOutput{
		"tracker-check-1": {
			CheckID: "tracker-check-1",
			Results: []models.Result{{
				URL:      "example.com",
				Detected: []models.Detection{{Name: "Chartbeat", Present: true}},
			}},
		},
	}}
	srv := newTestServer(t, tc)

	resp, err := http.Get(srv.URL + "/api/checks/tracker-check-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out workflows.CheckOutput
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "example.com", out.Results[0].URL)

	missing, err := http.Get(srv.URL + "/api/checks/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestWorkflowEndpointsWithoutTemporal(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/api/checks", "application/json", bytes.NewBufferString(`{"domains":["a.com"]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/checks/x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestStreamChecksInvalidRequest(t *testing.T) {
	srv := newTestServer(t, nil)
	conn := dialStream(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("example.com")))

	msgs := readAll(conn)
	require.Len(t, msgs, 1)
	assert.Nil(t, msgs[0].Result)
	assert.Contains(t, msgs[0].Error, "invalid request")
}

func TestStreamChecksLogsFailedWrites(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	srv := httptest.NewServer(NewHandlers(stubChecker(), nil, zap.New(core)).Router())
	t.Cleanup(srv.Close)
	conn := dialStream(t, srv)

	// Closing before sending a request leaves the server nothing to write to.
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	readAll(conn)

	assert.Eventually(t, func() bool {
		return logs.FilterMessage("Failed to report invalid stream request").Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
