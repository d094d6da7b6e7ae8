package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	gormdrv "gorm.io/gorm"

	tt "github.com/telltale-app/telltale"
	"github.com/telltale-app/telltale/stores"
	gormstore "github.com/telltale-app/telltale/stores/gorm"
	mongostore "github.com/telltale-app/telltale/stores/mongo"
)

func main() {
	cfg, err := tt.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal(err)
	}

	app := tt.NewApp(cfg, store)

	slog.Info("starting server", "addr", cfg.HTTPAddr, "backend", cfg.StoreBackend)
	if err := http.ListenAndServe(cfg.HTTPAddr, app.Handler()); err != nil {
		log.Fatal(err)
	}
}

func openStore(cfg *tt.Config) (tt.UserStore, error) {
	switch cfg.StoreBackend {
	case "mongo":
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := mongodrv.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx, nil); err != nil {
			return nil, err
		}
		store := mongostore.NewUserStore(client, cfg.MongoDB)
		if err := store.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		return store, nil

	case "gorm":
		// TranslateError maps driver duplicate-key errors onto
		// gorm.ErrDuplicatedKey, which the store relies on.
		db, err := gormdrv.Open(postgres.Open(cfg.DatabaseURL), &gormdrv.Config{TranslateError: true})
		if err != nil {
			return nil, err
		}
		if err := gormstore.AutoMigrate(db); err != nil {
			return nil, err
		}
		return gormstore.NewUserStore(db), nil

	default:
		return stores.NewFSUserStore(cfg.StoragePath), nil
	}
}
