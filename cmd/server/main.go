package main

import (
	"log"

	"galaxy-snake/internal/app"
	"galaxy-snake/internal/telemetry"
)

func main() {
	cfg := app.ConfigFromEnv(telemetry.WrapLogger(log.Default()))
	if err := app.Run(cfg); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
