package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/youssefm/groupchat/internal/auth"
	"github.com/youssefm/groupchat/internal/chat"
	"github.com/youssefm/groupchat/internal/config"
	"github.com/youssefm/groupchat/internal/crypto"
	"github.com/youssefm/groupchat/internal/database"
	"github.com/youssefm/groupchat/internal/gateway"
	"github.com/youssefm/groupchat/internal/group"
	"github.com/youssefm/groupchat/internal/notification"
	"github.com/youssefm/groupchat/internal/user"
	mw "github.com/youssefm/groupchat/pkg/middleware"
	"github.com/youssefm/groupchat/pkg/redisclient"
)

// @title        GroupChat API
// @version      1.0
// @description  Group chat backend: group membership, realtime messaging and encrypted message history.
// @BasePath     /api/v1
func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Initialize database connection
	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.InitSchema(db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	log.Println("Connected to database successfully")

	// Message encryption
	encryptor, err := crypto.NewEncryptor(cfg.EncryptionKey, cfg.EncryptionIV)
	if err != nil {
		log.Fatalf("Invalid encryption configuration: %v", err)
	}

	// Redis message cache (optional)
	var messageCache chat.Cache
	if cfg.RedisAddr != "" {
		redisClient, err := redisclient.New(cfg.RedisAddr)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisClient.Close()
		messageCache = chat.NewRedisCache(redisClient)
		log.Println("Connected to redis successfully")
	}

	// User feature
	userRepo := user.NewRepository(db)
	userService := user.NewService(userRepo)
	userHandler := user.NewHandler(userService)

	// Auth feature
	authService := auth.NewService(userService, cfg.JWTSecret, cfg.JWTTTL)
	authHandler := auth.NewHandler(authService, userService)

	// Notification feature
	notificationRepo := notification.NewRepository(db)
	notificationService := notification.NewService(notificationRepo)
	notificationHandler := notification.NewHandler(notificationService)

	// Group feature (with notifications injected)
	groupRepo := group.NewRepository(db)
	groupService := group.NewService(groupRepo, userService, notificationService)
	groupHandler := group.NewHandler(groupService)

	// Chat feature
	chatRepo := chat.NewRepository(db)
	chatService := chat.NewService(chatRepo, userService, encryptor, messageCache)
	chatHandler := chat.NewHandler(chatService, groupService)

	// Realtime gateway
	gw := gateway.New(authService.Verify, groupService, chatService, userService, encryptor)

	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Websocket entry point; authentication happens after the upgrade
	r.Get("/ws", gw.HandleWS)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", authHandler.Routes())

		r.Group(func(r chi.Router) {
			r.Use(mw.Auth(authService.Verify))

			r.Mount("/users", userHandler.Routes())
			r.Mount("/groups", groupHandler.Routes())
			r.Mount("/notifications", notificationHandler.Routes())
			r.Mount("/groups/{groupId}/messages", chatHandler.Routes())
		})
	})

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
