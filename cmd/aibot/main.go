package main

import (
	"log"

	corecmd "buildsbot/core/cmd"
	"buildsbot/core/logger"
	"buildsbot/internal/aibot"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "configs/aibot.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := aibot.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(cfg corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			return aibot.New(cfg.(*aibot.Config))
		},
	})
	if err != nil {
		log.Fatalf("aibot: %v", err)
	}
}
