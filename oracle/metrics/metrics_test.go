package metrics

import (
	"strings"
	"testing"
	"time"

	gometrics "github.com/armon/go-metrics"
	"github.com/stretchr/testify/require"

	"github.com/GPTx-global/rngoracle/oracle/types"
)

func TestRecorders(t *testing.T) {
	sink := gometrics.NewInmemSink(time.Minute, time.Minute)
	require.NoError(t, Init(sink))

	StageConfirmed(types.StageMint, types.PhaseBootstrap, time.Now().Add(-time.Second))
	StageFailed(types.StageUpdate, types.PhaseAction)
	HeadAdvanced()
	CommandReceived("generate")

	data := sink.Data()
	require.NotEmpty(t, data)

	counters := data[0].Counters
	found := map[string]bool{}
	for key := range counters {
		switch {
		case strings.HasPrefix(key, "rngoracle.stage.confirmed"):
			require.Contains(t, key, "stage=mint")
			require.Contains(t, key, "phase=bootstrap")
			found["confirmed"] = true
		case strings.HasPrefix(key, "rngoracle.stage.failed"):
			require.Contains(t, key, "stage=update")
			require.Contains(t, key, "phase=action")
			found["failed"] = true
		case strings.HasPrefix(key, "rngoracle.head.advanced"):
			found["head"] = true
		case strings.HasPrefix(key, "rngoracle.command.received"):
			found["command"] = true
		}
	}
	require.Equal(t, map[string]bool{"confirmed": true, "failed": true, "head": true, "command": true}, found)

	require.NotEmpty(t, data[0].Samples)
}
