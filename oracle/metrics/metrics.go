package metrics

import (
	"time"

	gometrics "github.com/armon/go-metrics"
	gmprometheus "github.com/armon/go-metrics/prometheus"

	"github.com/GPTx-global/rngoracle/oracle/types"
)

const ServiceName = "rngoracle"

var (
	keyStageDuration  = []string{"stage", "duration"}
	keyStageConfirmed = []string{"stage", "confirmed"}
	keyStageFailed    = []string{"stage", "failed"}
	keyHeadAdvanced   = []string{"head", "advanced"}
	keyCommand        = []string{"command", "received"}
)

// NewPrometheusSink registers a sink on the default Prometheus registry.
func NewPrometheusSink() (gometrics.MetricSink, error) {
	return gmprometheus.NewPrometheusSink()
}

// Init installs sink as the global metrics sink.
func Init(sink gometrics.MetricSink) error {
	cfg := gometrics.DefaultConfig(ServiceName)
	cfg.EnableHostname = false
	cfg.EnableRuntimeMetrics = false
	cfg.EnableServiceLabel = false

	_, err := gometrics.NewGlobal(cfg, sink)

	return err
}

func stageLabels(stage types.Stage, phase types.Phase) []gometrics.Label {
	p := "bootstrap"
	if phase == types.PhaseAction {
		p = "action"
	}

	return []gometrics.Label{
		{Name: "stage", Value: stage.String()},
		{Name: "phase", Value: p},
	}
}

// StageConfirmed records a stage that got through its confirmation wait.
func StageConfirmed(stage types.Stage, phase types.Phase, start time.Time) {
	labels := stageLabels(stage, phase)
	gometrics.MeasureSinceWithLabels(keyStageDuration, start, labels)
	gometrics.IncrCounterWithLabels(keyStageConfirmed, 1, labels)
}

func StageFailed(stage types.Stage, phase types.Phase) {
	gometrics.IncrCounterWithLabels(keyStageFailed, 1, stageLabels(stage, phase))
}

func HeadAdvanced() {
	gometrics.IncrCounter(keyHeadAdvanced, 1)
}

func CommandReceived(name string) {
	gometrics.IncrCounterWithLabels(keyCommand, 1, []gometrics.Label{{Name: "command", Value: name}})
}
