package confirm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GPTx-global/rngoracle/oracle/log"
	"github.com/GPTx-global/rngoracle/oracle/retry"
	"github.com/GPTx-global/rngoracle/oracle/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockChecker struct {
	mock.Mock
}

func (m *mockChecker) Status(ctx context.Context, tx types.TxHash) (Status, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(Status), args.Error(1)
}

type ConfirmTestSuite struct {
	suite.Suite
	backoff retry.Config
}

func TestConfirmTestSuite(t *testing.T) {
	suite.Run(t, new(ConfirmTestSuite))
}

func (suite *ConfirmTestSuite) SetupTest() {
	log.InitLogger()
	suite.backoff = retry.Config{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 1.0}
}

func (suite *ConfirmTestSuite) TestFixedDelay_WaitsConfiguredInterval() {
	var requested time.Duration
	waiter := NewFixedDelay(120 * time.Second)
	waiter.after = func(d time.Duration) <-chan time.Time {
		requested = d
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}

	suite.NoError(waiter.Await(context.Background(), "T1"))
	suite.Equal(120*time.Second, requested)
}

func (suite *ConfirmTestSuite) TestFixedDelay_DefaultsWhenNonPositive() {
	suite.Equal(DefaultDelay, NewFixedDelay(0).delay)
	suite.Equal(DefaultDelay, NewFixedDelay(-time.Second).delay)
}

func (suite *ConfirmTestSuite) TestFixedDelay_ContextCancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewFixedDelay(time.Hour).Await(ctx, "T1")
	suite.ErrorIs(err, context.Canceled)
}

func (suite *ConfirmTestSuite) TestPoller_ConfirmedAfterPending() {
	checker := new(mockChecker)
	checker.On("Status", mock.Anything, types.TxHash("T1")).Return(Pending, nil).Twice()
	checker.On("Status", mock.Anything, types.TxHash("T1")).Return(Pending, errors.New("status 503")).Once()
	checker.On("Status", mock.Anything, types.TxHash("T1")).Return(Confirmed, nil).Once()

	poller := NewPoller(checker, time.Second, suite.backoff)
	suite.NoError(poller.Await(context.Background(), "T1"))
	checker.AssertExpectations(suite.T())
}

func (suite *ConfirmTestSuite) TestPoller_Failed() {
	checker := new(mockChecker)
	checker.On("Status", mock.Anything, types.TxHash("T1")).Return(Failed, nil).Once()

	err := NewPoller(checker, time.Second, suite.backoff).Await(context.Background(), "T1")
	suite.ErrorIs(err, types.ErrTxFailed)
}

func (suite *ConfirmTestSuite) TestPoller_Timeout() {
	checker := new(mockChecker)
	checker.On("Status", mock.Anything, types.TxHash("T1")).Return(Pending, nil)

	err := NewPoller(checker, 5*time.Millisecond, suite.backoff).Await(context.Background(), "T1")
	suite.ErrorIs(err, types.ErrConfirmationTimeout)
}

func (suite *ConfirmTestSuite) TestPoller_ContextCancelled() {
	checker := new(mockChecker)
	checker.On("Status", mock.Anything, types.TxHash("T1")).Return(Pending, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewPoller(checker, time.Minute, retry.Config{BaseDelay: time.Minute, Multiplier: 1}).Await(ctx, "T1")
	suite.ErrorIs(err, context.Canceled)
}

func (suite *ConfirmTestSuite) TestBlockfrost_Status() {
	var mu sync.Mutex
	var projectIDs []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		projectIDs = append(projectIDs, r.Header.Get("project_id"))
		mu.Unlock()

		switch r.URL.Path {
		case "/txs/confirmed":
			_, _ = w.Write([]byte(`{"hash":"confirmed","block_height":123}`))
		case "/txs/pending":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status_code":404,"error":"Not Found","message":"The requested component has not been found."}`))
		case "/txs/overloaded":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"status_code":403,"error":"Forbidden","message":"Invalid project token."}`))
		}
	}))
	defer server.Close()

	checker := NewBlockfrost(server.URL+"/", "preprodKEY", time.Second)
	ctx := context.Background()

	status, err := checker.Status(ctx, "confirmed")
	suite.NoError(err)
	suite.Equal(Confirmed, status)

	status, err = checker.Status(ctx, "pending")
	suite.NoError(err)
	suite.Equal(Pending, status)

	status, err = checker.Status(ctx, "overloaded")
	suite.Error(err)
	suite.Equal(Pending, status)

	status, err = checker.Status(ctx, "forbidden")
	suite.Error(err)
	suite.Contains(err.Error(), "Invalid project token.")
	suite.Equal(Pending, status)

	status, err = checker.Status(ctx, "")
	suite.ErrorIs(err, types.ErrInvalidInput)
	suite.Equal(Failed, status)

	mu.Lock()
	defer mu.Unlock()
	for _, id := range projectIDs {
		suite.Equal("preprodKEY", id)
	}
}

func (suite *ConfirmTestSuite) TestBlockfrost_Check() {
	var healthy atomic.Bool
	healthy.Store(true)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.Equal("/health", r.URL.Path)
		if healthy.Load() {
			_, _ = w.Write([]byte(`{"is_healthy":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"is_healthy":false}`))
	}))
	defer server.Close()

	checker := NewBlockfrost(server.URL, "preprodKEY", time.Second)
	suite.NoError(checker.Check(context.Background()))

	healthy.Store(false)
	suite.Error(checker.Check(context.Background()))
}
