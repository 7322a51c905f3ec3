package main

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/profilehub/backend/internal/config"
	"github.com/profilehub/backend/internal/handlers"
	appMiddleware "github.com/profilehub/backend/internal/middleware"
	"github.com/profilehub/backend/internal/models"
	"github.com/profilehub/backend/internal/services"
	"github.com/profilehub/backend/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	cfg := config.Load()

	store, cleanup, err := openSlotStore(cfg)
	if err != nil {
		log.Fatalf("slot store (%s): %v", cfg.StoreBackend, err)
	}
	defer cleanup()

	// Core services
	whitelist := services.NewWhitelistService(store)
	identity := services.NewIdentityService()
	signer := services.NewSignatureService()
	events := services.NewEventLog()

	modules := services.NewModuleRegistry()
	registerBuiltinModules(modules, cfg)
	registry := services.NewProfileRegistry(store, whitelist, identity, modules, events, signer)

	accounts := services.NewAccountService(cfg.AdminEmail)

	// Handlers
	authHandler := handlers.NewAuthHandler(accounts, cfg.JWTSecret, cfg.JWTExpiration)
	profileHandler := handlers.NewProfileHandler(registry, identity)
	governanceHandler := handlers.NewGovernanceHandler(whitelist, events)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(r chi.Router) {
		// Public
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.BearerAuth(cfg.JWTSecret))

			r.Route("/profiles", func(r chi.Router) {
				r.Post("/", profileHandler.CreateProfile)

				r.Route("/{profileId}", func(r chi.Router) {
					r.Get("/", profileHandler.GetProfile)
					r.Put("/image-uri", profileHandler.SetImageURI)
					r.Put("/follow-nft-uri", profileHandler.SetFollowNFTURI)
					r.Put("/metadata-uri", profileHandler.SetMetadataURI)
					r.Put("/dispatcher", profileHandler.SetDispatcher)
					r.Put("/follow-module", profileHandler.SetFollowModule)
				})
			})

			// Meta-transactions: authorization comes from the signed token,
			// the bearer only relays.
			r.Post("/meta-tx", profileHandler.MetaTx)

			r.Get("/events", governanceHandler.ListEvents)

			// Governance
			r.Group(func(r chi.Router) {
				r.Use(appMiddleware.RequireAdmin)
				r.Post("/governance/whitelist/creators", governanceHandler.WhitelistCreator)
				r.Post("/governance/whitelist/follow-modules", governanceHandler.WhitelistFollowModule)
			})
		})
	})

	log.Printf("ProfileHub API server starting on %s (store=%s)", cfg.ServerAddress, cfg.StoreBackend)
	if err := http.ListenAndServe(cfg.ServerAddress, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

func registerBuiltinModules(modules *services.ModuleRegistry, cfg *config.Config) {
	openAddr, err := models.ParseAddress(cfg.OpenModuleAddress)
	if err != nil {
		log.Fatalf("OPEN_MODULE_ADDRESS: %v", err)
	}
	feeAddr, err := models.ParseAddress(cfg.FeeModuleAddress)
	if err != nil {
		log.Fatalf("FEE_MODULE_ADDRESS: %v", err)
	}
	modules.Register(openAddr, services.OpenFollowModule{})
	modules.Register(feeAddr, services.NewFeeFollowModule())
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
