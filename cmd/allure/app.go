package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/allureimpex/allure-impex-api/internal/config"
	"github.com/allureimpex/allure-impex-api/internal/database"
	"github.com/allureimpex/allure-impex-api/internal/imagehost"
	"github.com/allureimpex/allure-impex-api/internal/logger"
	"github.com/allureimpex/allure-impex-api/internal/queue"
	"github.com/allureimpex/allure-impex-api/internal/repository"
	"github.com/allureimpex/allure-impex-api/internal/repository/memrepo"
	"github.com/allureimpex/allure-impex-api/internal/repository/mongorepo"
	"github.com/allureimpex/allure-impex-api/internal/repository/mysqlrepo"
)

// env is the configuration and logger every command starts from.
type env struct {
	cfg config.Config
	log zerolog.Logger
}

func loadEnv() (env, error) {
	cfg, err := config.Load()
	if err != nil {
		return env{}, err
	}
	return env{cfg: cfg, log: logger.New(cfg.Env, cfg.LogLevel)}, nil
}

// openStores connects the configured driver. MySQL schemas are migrated on
// open; Mongo indexes are ensured.
func (e env) openStores(ctx context.Context) (repository.Stores, error) {
	switch e.cfg.StoreDriver {
	case config.DriverMemory:
		e.log.Warn().Msg("using in-memory store, data is lost on exit")
		return memrepo.New(), nil
	case config.DriverMySQL:
		db, err := database.OpenMySQL(e.cfg.MySQL)
		if err != nil {
			return repository.Stores{}, err
		}
		if err := database.RunMigrations(db); err != nil {
			_ = db.Close()
			return repository.Stores{}, err
		}
		return mysqlrepo.New(db), nil
	default:
		client, db, err := database.OpenMongo(e.cfg.Mongo)
		if err != nil {
			return repository.Stores{}, err
		}
		ictx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := database.EnsureMongoIndexes(ictx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return repository.Stores{}, err
		}
		return mongorepo.New(client, db), nil
	}
}

func (e env) closeStores(s repository.Stores) {
	if s.Close == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		e.log.Warn().Err(err).Msg("close store")
	}
}

func (e env) publisher() queue.Publisher {
	ev := e.cfg.Events
	switch ev.Driver {
	case config.EventsRabbitMQ:
		return queue.NewRabbitPublisher(ev.RabbitMQURL, ev.Queue)
	case config.EventsKafka:
		return queue.NewKafkaPublisher(ev.KafkaBroker, ev.KafkaTopic)
	default:
		return queue.Nop{}
	}
}

// imageHost is nil when no credentials are configured; uploads then fail
// with an upstream error instead of blocking startup.
func (e env) imageHost() (imagehost.Host, error) {
	if e.cfg.Cloudinary.URL == "" {
		e.log.Warn().Msg("CLOUDINARY_URL not set, uploads disabled")
		return nil, nil
	}
	h, err := imagehost.NewCloudinary(e.cfg.Cloudinary.URL, e.cfg.Cloudinary.Folder)
	if err != nil {
		return nil, fmt.Errorf("image host: %w", err)
	}
	return h, nil
}
