package main

import (
	"embed"

	"github.com/rs/zerolog/log"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"speakdrill/internal/config"
	"speakdrill/internal/observability/logging"
)

//go:embed all:frontend
var assets embed.FS

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Init(logging.Config{})
	} else {
		logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	}

	app := NewApp()
	err = wails.Run(&options.App{
		Title:     "Speakdrill",
		Width:     960,
		Height:    680,
		MinWidth:  640,
		MinHeight: 480,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("application failed")
	}
}
