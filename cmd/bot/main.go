// Package main: точка входа бота.
// Загружает конфигурацию, инициализирует приложение и запускает.
// Поддерживает graceful shutdown по SIGINT/SIGTERM.
package main

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/minipoints-bot/internal/app"
	"serotonyl.ru/minipoints-bot/internal/config"
)

func main() {
	// До загрузки конфига пишем всё
	app.SetupLogging("debug")

	log.Info("=== MiniPoints запускается ===")

	// Загружаем конфигурацию из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}
	app.SetupLogging(cfg.AppLogLevel)

	// Контекст отменяется по Ctrl+C и docker stop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Инициализируем приложение (БД, сервисы, бот, HTTP API)
	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Не удалось инициализировать приложение")
	}

	log.Info("=== MiniPoints готов к работе ===")

	if err := application.Run(ctx); err != nil {
		log.WithError(err).Error("Приложение завершилось с ошибкой")
	}

	log.Info("=== MiniPoints остановлен ===")
}
