// Package main: minipointsctl, служебная утилита MiniPoints.
// Миграции, сидирование, привязка Telegram-аккаунтов и хеши админ-токенов.
package main

import (
	"context"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"serotonyl.ru/minipoints-bot/internal/app"
	"serotonyl.ru/minipoints-bot/internal/config"
)

var rootCmd = &cobra.Command{
	Use:           "minipointsctl",
	Short:         "MiniPoints maintenance tool",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		app.SetupLogging(logLevel)
	},
}

var logLevel string

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

// openDB загружает конфиг из окружения, подключается и мигрирует схему.
func openDB(ctx context.Context) (*pgxpool.Pool, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := app.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return pool, cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("Команда завершилась с ошибкой")
		os.Exit(1)
	}
}
