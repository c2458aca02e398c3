package main

import (
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/patrickmn/go-cache"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"

	"github.com/estpark/parking-lot/internal/auth"
	"github.com/estpark/parking-lot/internal/db"
	"github.com/estpark/parking-lot/internal/events"
	"github.com/estpark/parking-lot/internal/handlers"
	"github.com/estpark/parking-lot/internal/ledger"
	"github.com/estpark/parking-lot/internal/lot"
	"github.com/estpark/parking-lot/internal/middleware"
	"github.com/estpark/parking-lot/internal/models"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using environment")
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	// Remote store is optional: without it the service runs on the local
	// history cache alone and the parking grid still works.
	var userCollection db.UserCollection
	var historyStore ledger.HistoryStore
	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Warn("MongoDB unreachable, running in local-cache-only mode")
	} else {
		database := db.Database(client)
		userCollection = &db.MongoUserCollection{Collection: database.Collection("users")}
		historyStore = &db.MongoHistoryCollection{Collection: database.Collection("history")}
		log.Info("Connected to MongoDB")
	}
	if userCollection == nil {
		log.Fatal("User store is required, cannot start without MongoDB")
	}

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to create auth service")
	}

	cachePath := os.Getenv("HISTORY_CACHE_FILE")
	if cachePath == "" {
		cachePath = "data/history.json"
	}
	historyLedger := ledger.New(historyStore, ledger.NewLocalCache(cachePath))

	var publisher events.Publisher = events.NoopPublisher{}
	if brokerURL := os.Getenv("MQTT_BROKER_URL"); brokerURL != "" {
		p, err := events.NewMQTTPublisher(brokerURL, "parking-lot-service", os.Getenv("MQTT_TOPIC_PREFIX"))
		if err != nil {
			log.WithError(err).Warn("MQTT broker unreachable, spot events disabled")
		} else {
			publisher = p
			defer p.Close()
			log.WithField("broker", brokerURL).Info("Publishing spot events over MQTT")
		}
	}

	session := lot.NewSession(
		lot.WithPublisher(publisher),
		lot.WithBlockOverwrite(os.Getenv("BLOCK_OVERWRITE") == "true"),
	)

	authHandler := handlers.NewAuthHandler(authService, userCollection)
	spotsHandler := handlers.NewSpotsHandler(session, historyLedger)
	historyHandler := handlers.NewHistoryHandler(historyLedger)
	usersHandler := handlers.NewUsersHandler(authService, userCollection)

	authMW := middleware.NewAuthMiddleware(authService)
	operatorOnly := authMW.RequireRole(models.RoleOperator)
	adminOnly := authMW.RequireRole(models.RoleAdmin)
	historyCache := middleware.Cache(cache.New(5*time.Second, time.Minute), 5*time.Second)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)

	mux.HandleFunc("GET /api/spots", spotsHandler.List)
	mux.Handle("POST /api/spots/{label}/block", operatorOnly(http.HandlerFunc(spotsHandler.Block)))
	mux.Handle("POST /api/spots/{label}/open", operatorOnly(http.HandlerFunc(spotsHandler.Open)))
	mux.Handle("POST /api/spots/{label}/occupy", operatorOnly(http.HandlerFunc(spotsHandler.Occupy)))
	mux.Handle("POST /api/spots/{label}/finish", operatorOnly(http.HandlerFunc(spotsHandler.BeginFinish)))
	mux.Handle("POST /api/spots/finish/cancel", operatorOnly(http.HandlerFunc(spotsHandler.CancelFinish)))
	mux.Handle("POST /api/spots/{label}/charge", operatorOnly(http.HandlerFunc(spotsHandler.ConfirmCharge)))
	mux.Handle("POST /api/spots/{label}/move", operatorOnly(http.HandlerFunc(spotsHandler.BeginMove)))
	mux.Handle("POST /api/spots/move/target", operatorOnly(http.HandlerFunc(spotsHandler.MoveTarget)))
	mux.Handle("POST /api/spots/move/cancel", operatorOnly(http.HandlerFunc(spotsHandler.CancelMove)))

	mux.Handle("GET /api/history", operatorOnly(historyCache(http.HandlerFunc(historyHandler.Query))))
	mux.Handle("PATCH /api/history/{id}", adminOnly(http.HandlerFunc(historyHandler.Update)))
	mux.Handle("DELETE /api/history/{id}", adminOnly(http.HandlerFunc(historyHandler.Delete)))

	mux.Handle("GET /api/users", adminOnly(http.HandlerFunc(usersHandler.List)))
	mux.Handle("PUT /api/users/{id}", adminOnly(http.HandlerFunc(usersHandler.UpdateAccount)))
	mux.HandleFunc("PUT /api/profile", usersHandler.UpdateProfile)

	rateLimiter := middleware.NewRateLimitMiddleware()
	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(rateLimiter.RateLimit(300, 60)(authMW.Authenticate(mux)))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.WithField("port", port).Info("Parking lot service listening")
	log.Fatal(http.ListenAndServe(":"+port, handler))
}
