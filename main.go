package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"peer-service/internal/db"
	"peer-service/internal/handlers"
	"peer-service/internal/middleware"
	"peer-service/internal/observability"
	"peer-service/internal/rabbitmq"
	"peer-service/internal/repositories"
	"peer-service/internal/telemetry"
	"peer-service/internal/ws"
)

const sessionSweepInterval = time.Minute

func main() {
	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	verifier := middleware.NewTokenVerifier(jwtSecret)

	amqpURL := os.Getenv("AMQP_URL")
	exchange := getEnv("AMQP_EXCHANGE", "peer.events")
	if eventPublisher, err := observability.NewAMQPPublisher(amqpURL, exchange); err != nil {
		log.Printf("event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(amqpURL, getEnv("AUDIT_EXCHANGE", "audit.logs"))
	defer auditPublisher.Close()
	audit := telemetry.NewAuditEmitter(auditPublisher, "audit_log", "peer-service", getEnv("ENVIRONMENT", "dev"))

	userRepo := repositories.NewUserRepo(database)
	sessionRepo := repositories.NewSessionRepo(database)
	whiteboardRepo := repositories.NewWhiteboardRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	peerRepo := repositories.NewPeerRepo(database)

	hub := ws.NewHub()

	sessionHandler := handlers.NewSessionHandler(sessionRepo, userRepo, hub, audit)
	whiteboardHandler := handlers.NewWhiteboardHandler(whiteboardRepo, sessionRepo, hub, audit)
	messageHandler := handlers.NewMessageHandler(messageRepo, sessionRepo, hub, audit)
	peerHandler := handlers.NewPeerHandler(peerRepo, userRepo, audit)

	sessionWS := ws.NewSessionWebSocketHandler(hub, sessionRepo, verifier)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("peer-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(verifier)

	router.POST("/peer/sessions", authMiddleware, sessionHandler.CreateSession)
	router.GET("/peer/sessions", authMiddleware, sessionHandler.ListSessions)
	router.POST("/peer/sessions/:session_id/join", authMiddleware, sessionHandler.JoinSession)
	router.POST("/peer/sessions/:session_id/leave", authMiddleware, sessionHandler.LeaveSession)
	router.GET("/peer/sessions/:session_id/participants", authMiddleware, sessionHandler.ListParticipants)

	router.POST("/peer/whiteboard/sync", authMiddleware, whiteboardHandler.Sync)
	router.GET("/peer/whiteboard/:session_id", authMiddleware, whiteboardHandler.GetState)

	router.POST("/peer/messages", authMiddleware, messageHandler.SendMessage)
	router.GET("/peer/messages/:session_id", authMiddleware, messageHandler.ListMessages)

	router.POST("/peer/availability", authMiddleware, peerHandler.SetAvailability)
	router.GET("/peer/available", authMiddleware, peerHandler.ListAvailable)
	router.POST("/peer/find-by-topic", authMiddleware, peerHandler.FindByTopic)
	router.POST("/peer/block", authMiddleware, peerHandler.BlockUser)
	router.DELETE("/peer/block/:user_id", authMiddleware, peerHandler.UnblockUser)
	router.GET("/peer/blocked", authMiddleware, peerHandler.ListBlocked)
	router.POST("/peer/report", authMiddleware, peerHandler.ReportUser)
	router.POST("/peer/keys/register", authMiddleware, peerHandler.RegisterKeys)
	router.GET("/peer/keys/:user_id", authMiddleware, peerHandler.GetKeyBundle)

	router.GET("/ws/sessions/:session_id", sessionWS.Handle)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, getEnv("DEBUG_ROUTES", "") == "true")

	go sweepStaleSessions(sessionRepo)

	port := getEnv("PORT", "8086")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func sweepStaleSessions(repo repositories.SessionRepository) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		closed, err := repo.CloseStaleSessions(ctx)
		cancel()
		if err != nil {
			log.Printf("session sweep failed: %v", err)
			continue
		}
		if closed > 0 {
			observability.AddSessionsSwept(closed)
			log.Printf("session sweep closed %d sessions", closed)
		}
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
