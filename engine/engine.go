package engine

import (
	"github.com/phuslu/log"

	"github.com/thoresonjd/5300-Dolphin/config"
	"github.com/thoresonjd/5300-Dolphin/relation"
	"github.com/thoresonjd/5300-Dolphin/store"
)

/*
Engine wires the storage session, the logger and the open relations
into one handle. A SQL front end drives exactly this surface: tables
by name, rows by handle. One engine keeps at most one relation object
per table name so handles from different call sites agree on state.
*/
type Engine struct {
	logger    log.Logger
	env       *store.Env
	relations map[string]relation.Relation
}

func NewEngine(logger log.Logger, cfg *config.Config) (*Engine, error) {
	env, err := store.NewEnv(logger, cfg.DataDir)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create storage session")
		return nil, err
	}
	return &Engine{
		logger:    logger,
		env:       env,
		relations: make(map[string]relation.Relation),
	}, nil
}

func (e *Engine) CreateTable(name string, schema relation.Schema) (relation.Relation, error) {
	rel := relation.NewHeapTable(e.logger, e.env, name, schema)
	if err := rel.Create(); err != nil {
		return nil, err
	}
	e.relations[name] = rel
	return rel, nil
}

func (e *Engine) CreateTableIfNotExists(name string, schema relation.Schema) (relation.Relation, error) {
	if rel, ok := e.relations[name]; ok {
		if err := rel.Open(); err != nil {
			return nil, err
		}
		return rel, nil
	}
	rel := relation.NewHeapTable(e.logger, e.env, name, schema)
	if err := rel.CreateIfNotExists(); err != nil {
		return nil, err
	}
	e.relations[name] = rel
	return rel, nil
}

func (e *Engine) OpenTable(name string, schema relation.Schema) (relation.Relation, error) {
	if rel, ok := e.relations[name]; ok {
		if err := rel.Open(); err != nil {
			return nil, err
		}
		return rel, nil
	}
	rel := relation.NewHeapTable(e.logger, e.env, name, schema)
	if err := rel.Open(); err != nil {
		return nil, err
	}
	e.relations[name] = rel
	return rel, nil
}

func (e *Engine) DropTable(name string, schema relation.Schema) error {
	rel, ok := e.relations[name]
	if !ok {
		rel = relation.NewHeapTable(e.logger, e.env, name, schema)
	}
	if err := rel.Drop(); err != nil {
		return err
	}
	delete(e.relations, name)
	return nil
}

// Close closes every open relation. The engine stays usable, tables
// reopen on demand.
func (e *Engine) Close() error {
	for name, rel := range e.relations {
		if err := rel.Close(); err != nil {
			e.logger.Error().Err(err).Msgf("failed to close table %s", name)
			return err
		}
	}
	return nil
}
