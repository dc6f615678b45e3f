package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gotest.tools/v3/assert"

	"github.com/modrt/modrt/internal/config"
	"github.com/modrt/modrt/internal/core/system"
	"github.com/modrt/modrt/internal/engine"
	"github.com/modrt/modrt/internal/module"
)

func TestSubcontextRecordsFramesSystemsAndModules(t *testing.T) {
	info := module.Info{
		Module:  module.Module{Name: "ticker", GUID: uuid.New()},
		Version: module.Version{Major: 1},
		Entry:   "go:ticker",
	}
	g, err := module.BuildGraph([]module.Info{info})
	assert.NilError(t, err)

	catalog := module.NewCatalog()
	catalog.Register("ticker", func() module.Plugin {
		return module.Funcs{Init: func(r *module.Registrar) error {
			_, err := r.AddSystem(system.NewFunc("tick", system.PhaseUpdate, func(time.Duration) {}))
			return err
		}}
	})
	eng := engine.New(g, module.Loaders{"go": catalog}, zap.NewNop())

	sub, err := New(config.MetricsConfig{ServiceName: "modrt", Interval: time.Hour, Retain: time.Hour}, zap.NewNop())
	assert.NilError(t, err)
	assert.NilError(t, eng.AddSubcontext(sub, PriorityMetrics))
	assert.NilError(t, eng.Initialize([]string{"ticker"}))

	for i := 0; i < 3; i++ {
		assert.NilError(t, eng.Frame(time.Millisecond))
	}
	m, _ := eng.Modules().FindByName("ticker")
	eng.Modules().UnloadAtEndOfFrame(m)
	assert.NilError(t, eng.Frame(time.Millisecond))

	data := sub.Sink().Data()
	assert.Assert(t, len(data) > 0)
	iv := data[len(data)-1]
	iv.RLock()
	defer iv.RUnlock()

	assert.Equal(t, iv.Counters["modrt.modules.loaded"].AggregateSample.Sum, float64(1))
	assert.Equal(t, iv.Counters["modrt.modules.unloaded"].AggregateSample.Sum, float64(1))
	assert.Equal(t, iv.Samples["modrt.frame.time"].AggregateSample.Count, 4)

	systemSamples := 0
	for name, v := range iv.Samples {
		if strings.HasPrefix(name, "modrt.system.time") {
			systemSamples += v.AggregateSample.Count
		}
	}
	// the system ran in each of the four frames; unload happens after PostUpdate
	assert.Equal(t, systemSamples, 4)
}
