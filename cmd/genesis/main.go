package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/profilehub/backend/internal/config"
	"github.com/profilehub/backend/internal/models"
	"github.com/profilehub/backend/internal/services"
	"github.com/profilehub/backend/internal/storage"
)

// genesis seeds the governance whitelists into the configured slot store from
// a JSON file, so a fresh deployment starts with its creators and follow
// modules already allowed.
//
// File format:
//
//	{
//	  "profile_creators": ["0x..."],
//	  "follow_modules": ["0x..."]
//	}
type genesisFile struct {
	ProfileCreators []string `json:"profile_creators"`
	FollowModules   []string `json:"follow_modules"`
}

func main() {
	path := flag.String("file", "genesis.json", "path to the genesis whitelist file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("read %s: %v", *path, err)
	}
	var gf genesisFile
	if err := json.Unmarshal(raw, &gf); err != nil {
		log.Fatalf("parse %s: %v", *path, err)
	}

	store, cleanup, err := openSlotStore(cfg)
	if err != nil {
		log.Fatalf("slot store (%s): %v", cfg.StoreBackend, err)
	}
	defer cleanup()

	whitelist := services.NewWhitelistService(store)
	ctx := context.Background()

	for _, s := range gf.ProfileCreators {
		addr, err := models.ParseAddress(s)
		if err != nil {
			log.Fatalf("profile creator %q: %v", s, err)
		}
		if err := whitelist.WhitelistProfileCreator(ctx, addr, true); err != nil {
			log.Fatalf("whitelist creator %s: %v", addr, err)
		}
	}
	for _, s := range gf.FollowModules {
		addr, err := models.ParseAddress(s)
		if err != nil {
			log.Fatalf("follow module %q: %v", s, err)
		}
		if err := whitelist.WhitelistFollowModule(ctx, addr, true); err != nil {
			log.Fatalf("whitelist module %s: %v", addr, err)
		}
	}

	log.Printf("genesis complete: %d creators, %d follow modules", len(gf.ProfileCreators), len(gf.FollowModules))
}

func openSlotStore(cfg *config.Config) (storage.SlotStore, func(), error) {
	switch cfg.StoreBackend {
	case "mongo":
		store, err := storage.NewMongoSlotStore(context.Background(), cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close(context.Background()) }, nil
	case "redis":
		store := storage.NewRedisSlotStore(storage.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			UseTLS:   cfg.RedisTLS,
		})
		return store, func() { _ = store.Close() }, nil
	default:
		store, err := storage.NewPersistentSlotStore(cfg.DataDir)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}
