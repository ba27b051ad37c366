// Package app wires the hub, the websocket endpoint, and the HTTP surface
// into a runnable server process.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"galaxy-snake/internal/net/ws"
	"galaxy-snake/internal/observability"
	"galaxy-snake/internal/server"
	"galaxy-snake/internal/sim"
	"galaxy-snake/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// Config is the process-level configuration, resolved from the environment.
type Config struct {
	Addr  string
	World sim.WorldConfig
}

// ConfigFromEnv builds a Config from GS_* environment variables, falling
// back to defaults for anything unset or unparsable.
func ConfigFromEnv(logger telemetry.Logger) Config {
	cfg := Config{
		Addr:  ":8080",
		World: sim.DefaultWorldConfig(),
	}
	if addr := os.Getenv("GS_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	cfg.World.ScreenCount = envInt(logger, "GS_SCREEN_COUNT", cfg.World.ScreenCount)
	cfg.World.ScreenWidth = envInt(logger, "GS_SCREEN_WIDTH", cfg.World.ScreenWidth)
	cfg.World.ScreenHeight = envInt(logger, "GS_SCREEN_HEIGHT", cfg.World.ScreenHeight)
	cfg.World.CellSize = envInt(logger, "GS_CELL_SIZE", cfg.World.CellSize)
	cfg.World.TickRate = envInt(logger, "GS_TICK_RATE", cfg.World.TickRate)
	cfg.World.BaseMoveIntervalMS = envInt(logger, "GS_BASE_MOVE_INTERVAL_MS", cfg.World.BaseMoveIntervalMS)
	cfg.World.MinMoveIntervalMS = envInt(logger, "GS_MIN_MOVE_INTERVAL_MS", cfg.World.MinMoveIntervalMS)
	cfg.World.MoveIntervalStepMS = envInt(logger, "GS_MOVE_INTERVAL_STEP_MS", cfg.World.MoveIntervalStepMS)
	cfg.World.FoodCount = envInt(logger, "GS_FOOD_COUNT", cfg.World.FoodCount)
	cfg.World.FoodCap = envInt(logger, "GS_FOOD_CAP", cfg.World.FoodCap)
	cfg.World.ExtraFoodChance = envFloat(logger, "GS_EXTRA_FOOD_CHANCE", cfg.World.ExtraFoodChance)
	cfg.World.Seed = envInt64(logger, "GS_SEED", cfg.World.Seed)

	cfg.World = cfg.World.Normalized()
	return cfg
}

// Run starts the server and blocks until SIGINT or SIGTERM.
func Run(cfg Config) error {
	logger := telemetry.WrapLogger(log.Default())

	collector, err := observability.NewCollector(nil)
	if err != nil {
		return err
	}

	hub := server.NewHub(server.Config{
		World:     cfg.World,
		Logger:    logger,
		Collector: collector,
	})

	stop := make(chan struct{})
	go hub.Run(stop)

	handler := ws.NewHandler(hub, ws.HandlerConfig{Logger: logger})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.Handle)
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, hub.World())
	})
	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"tick":             hub.Tick(),
			"connectedScreens": hub.ConnectedScreens(),
			"pendingCommands":  hub.PendingCommands(),
		})
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("listening on %s (%d screens, %dx%d world)",
			cfg.Addr, cfg.World.ScreenCount, cfg.World.WorldWidth(), cfg.World.WorldHeight())
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		close(stop)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case sig := <-sigCh:
		logger.Printf("received %s, shutting down", sig)
		close(stop)
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func envInt(logger telemetry.Logger, key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		logger.Printf("ignoring %s=%q: %v", key, raw, err)
		return fallback
	}
	return value
}

func envInt64(logger telemetry.Logger, key string, fallback int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logger.Printf("ignoring %s=%q: %v", key, raw, err)
		return fallback
	}
	return value
}

func envFloat(logger telemetry.Logger, key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		logger.Printf("ignoring %s=%q: %v", key, raw, err)
		return fallback
	}
	return value
}
