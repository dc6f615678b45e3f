// Package metrics records frame and module instrumentation into an
// in-memory go-metrics sink.
package metrics

import (
	"time"

	gometrics "github.com/armon/go-metrics"
	"go.uber.org/zap"

	"github.com/modrt/modrt/internal/config"
	"github.com/modrt/modrt/internal/engine"
	"github.com/modrt/modrt/internal/module"
)

// PriorityMetrics keeps the sink alive until everything else has shut down.
const PriorityMetrics = 30

var (
	keyFrame    = []string{"frame", "time"}
	keyLoaded   = []string{"modules", "loaded"}
	keyUnloaded = []string{"modules", "unloaded"}
	keyLive     = []string{"modules", "live"}
	keyEntities = []string{"world", "entities"}
)

// Subcontext samples frame time, per-system time and module churn.
type Subcontext struct {
	module.NopListener

	m    *gometrics.Metrics
	sink *gometrics.InmemSink
	eng  *engine.Context
	log  *zap.Logger
}

func New(cfg config.MetricsConfig, log *zap.Logger) (*Subcontext, error) {
	sink := gometrics.NewInmemSink(cfg.Interval, cfg.Retain)
	conf := gometrics.DefaultConfig(cfg.ServiceName)
	conf.EnableHostname = false
	conf.EnableRuntimeMetrics = false
	m, err := gometrics.New(conf, sink)
	if err != nil {
		return nil, err
	}
	return &Subcontext{m: m, sink: sink, log: log}, nil
}

func (s *Subcontext) Name() string { return "metrics" }

// Sink exposes the aggregated intervals.
func (s *Subcontext) Sink() *gometrics.InmemSink { return s.sink }

func (s *Subcontext) OnInitialize(c *engine.Context) error {
	s.eng = c
	return nil
}

func (s *Subcontext) OnPostUpdate() {
	if s.eng == nil {
		return
	}
	stats := s.eng.Stats()
	for _, t := range stats.Systems {
		s.m.AddSampleWithLabels([]string{"system", "time"}, ms(t.Elapsed), []gometrics.Label{
			{Name: "system", Value: t.Name},
			{Name: "phase", Value: t.Phase.String()},
		})
	}
	if !stats.Start.IsZero() {
		s.m.MeasureSince(keyFrame, stats.Start)
	}
	s.m.SetGauge(keyEntities, float32(s.eng.World().Len()))
}

func (s *Subcontext) OnAfterLoadModules(loaded []module.Module) {
	s.m.IncrCounter(keyLoaded, float32(len(loaded)))
	s.live()
}

func (s *Subcontext) OnAfterUnloadModules(unloaded []module.Module) {
	s.m.IncrCounter(keyUnloaded, float32(len(unloaded)))
	s.live()
}

func (s *Subcontext) live() {
	if s.eng == nil {
		return
	}
	s.m.SetGauge(keyLive, float32(len(s.eng.Modules().Loaded())))
}

func (s *Subcontext) OnShutdown(*engine.Context) {
	data := s.sink.Data()
	if len(data) == 0 {
		return
	}
	last := data[len(data)-1]
	last.RLock()
	defer last.RUnlock()
	for name, v := range last.Samples {
		s.log.Info("metric", zap.String("name", name),
			zap.Int("count", v.AggregateSample.Count),
			zap.Float64("mean_ms", v.AggregateSample.Mean()),
			zap.Float64("max_ms", v.AggregateSample.Max))
	}
	for name, v := range last.Counters {
		s.log.Info("metric", zap.String("name", name), zap.Float64("sum", v.AggregateSample.Sum))
	}
}

func ms(d time.Duration) float32 {
	return float32(d) / float32(time.Millisecond)
}
