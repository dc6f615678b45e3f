package persist

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/modrt/modrt/internal/engine"
	"github.com/modrt/modrt/internal/module"
)

// PriorityPersistence tears persistence down after the modules subcontext,
// so the final unloads are still recorded.
const PriorityPersistence = 20

// Subcontext keeps the module catalog and loaded flags in the database.
type Subcontext struct {
	module.NopListener

	repo    *ModuleRepo
	timeout time.Duration
	log     *zap.Logger
}

func NewSubcontext(repo *ModuleRepo, log *zap.Logger) *Subcontext {
	return &Subcontext{repo: repo, timeout: 5 * time.Second, log: log}
}

func (s *Subcontext) Name() string { return "persistence" }

func (s *Subcontext) OnInitialize(c *engine.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	stale, err := s.repo.LoadedModules(ctx)
	if err != nil {
		return err
	}
	for _, row := range stale {
		s.log.Warn("module still marked loaded from a previous run", zap.String("module", row.Name))
	}
	if len(stale) > 0 {
		if err := s.repo.ResetLoaded(ctx); err != nil {
			return err
		}
	}

	written, err := s.repo.SyncCatalog(ctx, c.Modules().Graph().Infos())
	if err != nil {
		return err
	}
	s.log.Info("module catalog synced", zap.Int("modules", c.Modules().Graph().Len()), zap.Int("written", written))
	return nil
}

func (s *Subcontext) OnAfterLoadModules(loaded []module.Module) {
	s.record(loaded, true)
}

func (s *Subcontext) OnAfterUnloadModules(unloaded []module.Module) {
	s.record(unloaded, false)
}

func (s *Subcontext) record(ms []module.Module, loaded bool) {
	if len(ms) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.repo.SetLoaded(ctx, ms, loaded); err != nil {
		s.log.Error("record module state failed", zap.Bool("loaded", loaded), zap.Error(err))
	}
}
