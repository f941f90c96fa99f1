package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/auth"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/handlers"
	"messenger-service/internal/incognito"
	"messenger-service/internal/middleware"
	"messenger-service/internal/notify"
	"messenger-service/internal/observability"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/session"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

const serviceName = "messenger-service"

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, serviceName, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown failed: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s", rabbitmq.PublisherMode(publisher))

	emitter := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)

	messageRepo := repositories.NewMessageRepo(database)
	relationshipRepo := repositories.NewRelationshipRepo(database)
	incognitoRepo := repositories.NewIncognitoRepo(database)

	hub := ws.NewHub()
	guard := auth.NewGuard(cfg.JWTSecret, relationshipRepo)
	mailer := notify.NewEmailNotifier(publisher, cfg.EmailRoutingKey)

	incognitoMgr := incognito.NewManager(incognitoRepo, messageRepo, hub, cfg.SweepInterval)
	go incognitoMgr.Run(ctx)

	orch := session.NewOrchestrator(
		hub, guard, messageRepo, relationshipRepo,
		incognitoMgr, mailer, cfg.TypingTimeout, cfg.HistoryLimit,
	)

	sessionWS := ws.NewSessionHandler(hub, guard, orch, emitter)
	historyHandler := handlers.NewHistoryHandler(guard, messageRepo, cfg.HistoryLimit)
	relationshipHandler := handlers.NewRelationshipHandler(relationshipRepo)

	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.AuthMiddleware(guard)

	router.GET("/conversations/:other_user_id/messages", authMiddleware, historyHandler.GetConversationMessages)
	router.POST("/friends", authMiddleware, relationshipHandler.AddFriend)
	router.DELETE("/friends/:friend_id", authMiddleware, relationshipHandler.RemoveFriend)
	router.POST("/blocks", authMiddleware, relationshipHandler.Block)
	router.DELETE("/blocks/:user_id", authMiddleware, relationshipHandler.Unblock)

	router.GET("/ws", sessionWS.Handle)

	handlers.RegisterDebugRoutes(router, emitter, cfg.DebugEndpoints)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
