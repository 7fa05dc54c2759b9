package main

import (
	"flag"

	"github.com/thoresonjd/5300-Dolphin/config"
	"github.com/thoresonjd/5300-Dolphin/engine"
	"github.com/thoresonjd/5300-Dolphin/logging"
	"github.com/thoresonjd/5300-Dolphin/relation"
)

func main() {
	configPath := flag.String("config", "engine.ini", "engine config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.CreateDebugLogger().Error().Err(err).Msg("failed to load config")
		return
	}
	logger := logging.CreateLogger(cfg.LogLevel, cfg.LogConsole)

	eng, err := engine.NewEngine(*logger, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create engine")
		return
	}
	defer eng.Close()

	schema := relation.Schema{
		{Name: "a", Type: relation.IntColumn},
		{Name: "b", Type: relation.TextColumn},
	}

	table, err := eng.CreateTableIfNotExists("example", schema)
	if err != nil {
		logger.Error().Err(err).Msg("failed to create table")
		return
	}

	if _, err := table.Insert(relation.Row{
		"a": relation.IntValue(12),
		"b": relation.TextValue("Hello!"),
	}); err != nil {
		logger.Error().Err(err).Msg("failed to insert row")
		return
	}

	handles, err := table.Select()
	if err != nil {
		logger.Error().Err(err).Msg("failed to scan table")
		return
	}
	for _, handle := range handles {
		row, err := table.Project(handle)
		if err != nil {
			logger.Error().Err(err).Msgf("failed to project row %d/%d", handle.Block, handle.Record)
			return
		}
		logger.Info().Msgf("row %d/%d: a=%d b=%q", handle.Block, handle.Record, row["a"].Int, row["b"].Text)
	}
}
