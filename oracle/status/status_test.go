package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"

	"github.com/GPTx-global/rngoracle/oracle/health"
	"github.com/GPTx-global/rngoracle/oracle/types"
)

type StatusTestSuite struct {
	suite.Suite

	tracker *Tracker
	checker *health.HealthChecker
	server  *httptest.Server
}

func TestStatusTestSuite(t *testing.T) {
	suite.Run(t, new(StatusTestSuite))
}

func (suite *StatusTestSuite) SetupTest() {
	suite.tracker = NewTracker()
	suite.checker = health.NewHealthChecker(time.Minute)
	s := NewServer("127.0.0.1:0", []string{"https://dash.example"}, suite.tracker, suite.checker)
	suite.server = httptest.NewServer(s.Handler([]string{"https://dash.example"}))
}

func (suite *StatusTestSuite) TearDownTest() {
	suite.server.Close()
}

func (suite *StatusTestSuite) get(path string, header map[string]string) (*http.Response, []byte) {
	req, err := http.NewRequest(http.MethodGet, suite.server.URL+path, nil)
	suite.Require().NoError(err)
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	defer resp.Body.Close()

	var raw json.RawMessage
	if resp.Header.Get("Content-Type") == "application/json" {
		suite.Require().NoError(json.NewDecoder(resp.Body).Decode(&raw))
	}

	return resp, raw
}

func (suite *StatusTestSuite) TestTracker_FollowsLifecycle() {
	suite.Equal("unstarted", suite.tracker.Snapshot().State)

	suite.tracker.StageConfirmed(types.StageRecord{Stage: types.StageMint, TxHash: "T1", Unit: "U1"})
	suite.Equal("minted", suite.tracker.Snapshot().State)
	suite.Equal("U1", suite.tracker.Snapshot().Unit)

	suite.tracker.StageConfirmed(types.StageRecord{Stage: types.StageInit, TxHash: "T2"})
	suite.tracker.StageConfirmed(types.StageRecord{Stage: types.StageRegister, TxHash: "T3", Unit: "U1"})

	snap := suite.tracker.Snapshot()
	suite.Equal("registered", snap.State)
	suite.True(snap.Registered)
	suite.Equal("T3", snap.Head)

	// a loop init must not move the state backwards
	suite.tracker.StageConfirmed(types.StageRecord{Stage: types.StageInit, TxHash: "T4"})
	suite.tracker.StageConfirmed(types.StageRecord{Stage: types.StageUpdate, TxHash: "T5"})
	suite.tracker.StageFailed(types.StageQuery, errors.New("query stage failed: offline"))

	snap = suite.tracker.Snapshot()
	suite.Equal("registered", snap.State)
	suite.Equal("T5", snap.Head)
	suite.Equal(1, snap.Updates)
	suite.Equal("query stage failed: offline", snap.LastError)

	suite.tracker.StageConfirmed(types.StageRecord{Stage: types.StageQuery, TxHash: "T5", Detail: "42"})
	snap = suite.tracker.Snapshot()
	suite.Equal("42", snap.LastOutput)
	suite.Empty(snap.LastError)
}

func (suite *StatusTestSuite) TestTracker_UnconfirmedMint() {
	stageErr := types.NewStageError(types.StageMint, types.PhaseBootstrap, types.ErrConfirmationTimeout).
		WithSubmission(types.StageRecord{TxHash: "T1", Unit: "U1"})
	suite.tracker.StageFailed(types.StageMint, stageErr)

	snap := suite.tracker.Snapshot()
	suite.Equal("unstarted", snap.State)
	suite.Equal("U1", snap.Unit)
	suite.Equal("T1", snap.PendingTx)

	suite.tracker.StageConfirmed(types.StageRecord{Stage: types.StageMint, TxHash: "T1", Unit: "U1"})
	suite.Empty(suite.tracker.Snapshot().PendingTx)
}

func (suite *StatusTestSuite) TestStatusEndpoint() {
	suite.tracker.StageConfirmed(types.StageRecord{Stage: types.StageMint, TxHash: "T1", Unit: "U1"})

	resp, raw := suite.get("/status", nil)
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal("minted", gjson.GetBytes(raw, "state").String())
	suite.Equal("U1", gjson.GetBytes(raw, "unit").String())
}

func (suite *StatusTestSuite) TestHealthEndpoint() {
	failing := true
	suite.checker.AddCheck(health.NewFuncCheck("executor", func(context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	}))

	suite.checker.RunChecks(context.Background())
	resp, raw := suite.get("/health", nil)
	suite.Equal(http.StatusServiceUnavailable, resp.StatusCode)
	suite.False(gjson.GetBytes(raw, "healthy").Bool())
	suite.Equal("down", gjson.GetBytes(raw, "checks.executor.last_error").String())

	failing = false
	suite.checker.RunChecks(context.Background())
	resp, raw = suite.get("/health", nil)
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.True(gjson.GetBytes(raw, "healthy").Bool())
}

func (suite *StatusTestSuite) TestMetricsEndpoint() {
	resp, _ := suite.get("/metrics", nil)
	suite.Equal(http.StatusOK, resp.StatusCode)
}

func (suite *StatusTestSuite) TestCORS() {
	resp, _ := suite.get("/status", map[string]string{"Origin": "https://dash.example"})
	suite.Equal("https://dash.example", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, _ = suite.get("/status", map[string]string{"Origin": "https://evil.example"})
	suite.Empty(resp.Header.Get("Access-Control-Allow-Origin"))
}

func (suite *StatusTestSuite) TestUnknownRoute() {
	resp, _ := suite.get("/nope", nil)
	suite.Equal(http.StatusNotFound, resp.StatusCode)
}
