package main

import (
	"context"
	"database/sql"
	"time"

	"simpleeconomy/economy"

	"github.com/heroiclabs/nakama-common/runtime"
)

// noinspection GoUnusedExportedFunction
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	initStart := time.Now()

	logger.Info("Loading SimpleEconomy Nakama plugin...")

	_, err := economy.Init(ctx, logger, nk, initializer,
		economy.WithWalletSystem("economy.yaml", true),
	)
	if err != nil {
		logger.Error("Failed to initialize economy: %v", err)
		return err
	}

	logger.Info("SimpleEconomy Nakama plugin loaded in '%d' msec.", time.Since(initStart).Milliseconds())
	return nil
}
