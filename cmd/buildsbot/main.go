package main

import (
	"log"

	corecmd "buildsbot/core/cmd"
	"buildsbot/core/logger"
	"buildsbot/internal/buildsbot"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "configs/buildsbot.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := buildsbot.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return buildsbot.New(cfg.(*buildsbot.Config))
		},
	})
	if err != nil {
		log.Fatalf("buildsbot: %v", err)
	}
}
