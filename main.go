package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"smarthms/database"
	"smarthms/server"
	"smarthms/symptom"
)

// tokenPurgeInterval период удаления просроченных токенов
const tokenPurgeInterval = time.Hour

func main() {
	log.Println("Запуск Smart HMS Server...")

	// Загружаем конфигурацию
	config, err := server.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	// Создаем конфигурацию для БД
	dbConfig := database.DBConfig{
		MaxOpenConns:    config.MaxOpenConns,
		MaxIdleConns:    config.MaxIdleConns,
		ConnMaxLifetime: config.ConnMaxLifetime,
	}

	db, err := database.NewDBWithConfig(config.DatabasePath, dbConfig)
	if err != nil {
		log.Fatalf("Ошибка создания базы данных: %v", err)
	}
	defer db.Close()

	// Классификатор строится один раз до приема запросов
	checkerConfig := symptom.Config{
		ModelPath: config.SymptomModelPath,
		DataPath:  config.SymptomDataPath,
	}
	checker := symptom.New(checkerConfig)
	log.Printf("Классификатор симптомов: режим %s", checker.Mode())
	for _, degradation := range checker.Degradations() {
		log.Printf("Классификатор работает в упрощенном режиме: %v", degradation)
	}
	holder := symptom.NewHolder(checker)

	srv := server.NewServer(db, holder, config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start()
	})

	// Останавливаем сервер по сигналу или при ошибке соседней горутины
	g.Go(func() error {
		<-gctx.Done()
		log.Println("Получен сигнал завершения, останавливаем сервер...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if config.SymptomWatchData {
		g.Go(func() error {
			log.Printf("Отслеживаем изменения набора данных %s", config.SymptomDataPath)
			return symptom.Watch(gctx, holder, checkerConfig)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(tokenPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				n, err := db.PurgeExpiredTokens(now)
				if err != nil {
					log.Printf("Ошибка очистки токенов: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("Удалено просроченных токенов: %d", n)
				}
			}
		}
	})

	log.Printf("Сервер запущен на порту %s", config.Port)
	log.Println("Для остановки нажмите Ctrl+C")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Ошибка работы сервера: %v", err)
	}
	log.Println("Сервер успешно остановлен")
}
