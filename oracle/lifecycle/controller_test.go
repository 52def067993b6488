package lifecycle_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/GPTx-global/rngoracle/oracle/lifecycle"
	"github.com/GPTx-global/rngoracle/oracle/testutil"
	"github.com/GPTx-global/rngoracle/oracle/types"
)

type ControllerTestSuite struct {
	suite.Suite

	events   *testutil.Events
	exec     *testutil.Executor
	waiter   *testutil.Waiter
	observed *observer
	ctrl     *lifecycle.Controller
}

type observer struct {
	confirmed []types.StageRecord
	failed    []types.Stage
}

func (o *observer) StageConfirmed(r types.StageRecord) { o.confirmed = append(o.confirmed, r) }
func (o *observer) StageFailed(s types.Stage, _ error) { o.failed = append(o.failed, s) }

func TestControllerTestSuite(t *testing.T) {
	suite.Run(t, new(ControllerTestSuite))
}

func (suite *ControllerTestSuite) SetupTest() {
	suite.events = new(testutil.Events)
	suite.exec = testutil.NewExecutor(suite.events)
	suite.exec.Mints = []types.MintResult{{Unit: "U1", TxHash: "T1"}}
	suite.exec.Inits = []types.InitResult{{TxHash: "T2"}}
	suite.exec.Register = types.RegisterResult{TxHash: "T3"}
	suite.waiter = testutil.NewWaiter(suite.events)
	suite.observed = new(observer)
	suite.ctrl = lifecycle.New(suite.exec, suite.waiter, nil, suite.observed)
}

func (suite *ControllerTestSuite) TestBootstrap_HappyPath() {
	res, err := suite.ctrl.Bootstrap(context.Background(), "feed")
	suite.Require().NoError(err)

	suite.Equal(types.OracleIdentity{Unit: "U1", Registered: true}, res.Identity)
	suite.Equal(types.TxHash("T3"), res.Head)
	suite.Equal(types.Registered, suite.ctrl.State())

	suite.Equal([]string{
		"submit:mint:feed",
		"await:T1",
		"submit:init",
		"await:T2",
		"submit:register:T2:U1",
		"await:T3",
	}, suite.events.All())

	suite.Require().Len(suite.observed.confirmed, 3)
	suite.Equal(types.StageMint, suite.observed.confirmed[0].Stage)
	suite.Equal("U1", suite.observed.confirmed[0].Unit)
	suite.Equal(types.StageRegister, suite.observed.confirmed[2].Stage)
	suite.Equal(types.TxHash("T3"), suite.observed.confirmed[2].TxHash)
	suite.Empty(suite.observed.failed)
}

func (suite *ControllerTestSuite) TestBootstrap_WaitPrecedesNextSubmission() {
	_, err := suite.ctrl.Bootstrap(context.Background(), "feed")
	suite.Require().NoError(err)

	pairs := [][2]string{
		{"await:T1", "submit:init"},
		{"await:T2", "submit:register:T2:U1"},
	}
	for _, p := range pairs {
		wait, next := suite.events.Index(p[0]), suite.events.Index(p[1])
		suite.GreaterOrEqual(wait, 0)
		suite.Less(wait, next, "%s must precede %s", p[0], p[1])
	}
}

func (suite *ControllerTestSuite) TestBootstrap_OnlyOnce() {
	_, err := suite.ctrl.Bootstrap(context.Background(), "feed")
	suite.Require().NoError(err)

	_, err = suite.ctrl.Bootstrap(context.Background(), "feed")
	suite.ErrorIs(err, types.ErrAlreadyBootstrapped)
	suite.Equal(types.Registered, suite.ctrl.State())
}

func (suite *ControllerTestSuite) TestBootstrap_Failures() {
	boom := errors.New("boom")

	testCases := []struct {
		name     string
		malleate func()
		stage    types.Stage
		state    types.BootState
		wantErr  error
		lastWant string
	}{
		{
			"mint error",
			func() { suite.exec.MintErr = boom },
			types.StageMint, types.Unstarted, boom, "submit:mint:feed",
		},
		{
			"mint without unit",
			func() { suite.exec.Mints = []types.MintResult{{TxHash: "T1"}} },
			types.StageMint, types.Unstarted, types.ErrMissingPayload, "submit:mint:feed",
		},
		{
			"mint without tx",
			func() { suite.exec.Mints = []types.MintResult{{Unit: "U1"}} },
			types.StageMint, types.Unstarted, types.ErrMissingPayload, "submit:mint:feed",
		},
		{
			"init without tx",
			func() { suite.exec.Inits = []types.InitResult{{}} },
			types.StageInit, types.Minted, types.ErrMissingPayload, "submit:init",
		},
		{
			"init confirmation fails",
			func() { suite.waiter.Fail["T2"] = types.ErrTxFailed },
			types.StageInit, types.Minted, types.ErrTxFailed, "await:T2",
		},
		{
			"register error",
			func() { suite.exec.RegisterErr = boom },
			types.StageRegister, types.Initialized, boom, "submit:register:T2:U1",
		},
		{
			"register without tx",
			func() { suite.exec.Register = types.RegisterResult{} },
			types.StageRegister, types.Initialized, types.ErrMissingPayload, "submit:register:T2:U1",
		},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			suite.SetupTest()
			tc.malleate()

			res, err := suite.ctrl.Bootstrap(context.Background(), "feed")
			suite.Require().Error(err)
			suite.ErrorIs(err, tc.wantErr)
			suite.True(types.IsFatal(err))

			var stageErr *types.StageError
			suite.Require().True(errors.As(err, &stageErr))
			suite.Equal(tc.stage, stageErr.Stage)

			suite.Equal(lifecycle.Result{}, res)
			suite.Equal(tc.state, suite.ctrl.State())
			suite.False(suite.ctrl.Identity().Registered)
			suite.Equal([]types.Stage{tc.stage}, suite.observed.failed)

			// nothing runs after the failing stage
			events := suite.events.All()
			suite.Equal(tc.lastWant, events[len(events)-1])
		})
	}
}

func (suite *ControllerTestSuite) TestBootstrap_RegisteredOnlyAfterConfirmation() {
	suite.waiter.Fail["T3"] = types.ErrConfirmationTimeout

	_, err := suite.ctrl.Bootstrap(context.Background(), "feed")
	suite.ErrorIs(err, types.ErrConfirmationTimeout)
	suite.Equal(types.Initialized, suite.ctrl.State())
	suite.Equal("U1", suite.ctrl.Identity().Unit)
	suite.False(suite.ctrl.Identity().Registered)
}

func (suite *ControllerTestSuite) TestBootstrap_UnconfirmedMintKeepsUnit() {
	suite.waiter.Fail["T1"] = types.ErrConfirmationTimeout

	_, err := suite.ctrl.Bootstrap(context.Background(), "feed")
	suite.Require().ErrorIs(err, types.ErrConfirmationTimeout)
	suite.Equal(types.Unstarted, suite.ctrl.State())
	suite.Equal("U1", suite.ctrl.Identity().Unit)

	var stageErr *types.StageError
	suite.Require().True(errors.As(err, &stageErr))
	suite.Equal(types.StageMint, stageErr.Stage)
	suite.Equal(types.TxHash("T1"), stageErr.TxHash)
	suite.Equal("U1", stageErr.Unit)
	suite.Equal([]string{"submit:mint:feed", "await:T1"}, suite.events.All())
}

func (suite *ControllerTestSuite) TestBootstrap_Cancelled() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := suite.ctrl.Bootstrap(ctx, "feed")
	suite.ErrorIs(err, context.Canceled)
	suite.Equal(types.Unstarted, suite.ctrl.State())
}
