package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"order-workflow-service/internal/config"
	"order-workflow-service/internal/controller"
	"order-workflow-service/internal/middleware"
	"order-workflow-service/internal/notify"
	"order-workflow-service/internal/rabbit"
	"order-workflow-service/internal/repository"
	"order-workflow-service/internal/service"
	"order-workflow-service/internal/storage"
)

func main() {
	cfg := config.Load()

	// MongoDB connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to MongoDB failed")
	}
	db := client.Database(cfg.MongoDBName)

	// RabbitMQ connection
	conn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to RabbitMQ failed")
	}
	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("opening RabbitMQ channel failed")
	}

	publisher, err := rabbit.NewPublisher(ch)
	if err != nil {
		log.Fatal().Err(err).Msg("declaring events exchange failed")
	}

	// Repositories, storage and collaborators
	orderRepo := repository.NewMongoOrderRepository(db)
	episodeRepo := repository.NewMongoEpisodeRepository(db)
	txRunner := repository.NewMongoTxRunner(client)

	docStore, err := storage.NewGridFSStore(db)
	if err != nil {
		log.Fatal().Err(err).Msg("creating GridFS bucket failed")
	}

	notifier := notify.NewEmailServiceNotifier(cfg.NotifyURL)

	// Services
	orderService := service.NewOrderStatusService(orderRepo, notifier, publisher)
	episodeService := service.NewEpisodeStatusService(episodeRepo, orderRepo, txRunner, notifier, docStore)
	authService := service.NewAuthService(cfg.AuthURL)

	// Handlers
	orderCtrl := controller.NewOrderController(orderService)
	episodeCtrl := controller.NewEpisodeController(episodeService)

	// Router
	r := gin.Default()

	// Public routes
	r.POST("/orders/init", orderCtrl.InitOrder)

	// Protected routes (token required)
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(authService))

	auth.PATCH("/orders/:orderId/status", orderCtrl.UpdateStatus)
	auth.GET("/orders/mine", orderCtrl.GetMyOrders)
	auth.GET("/orders/:orderId", orderCtrl.GetOrder)
	auth.GET("/orders/:orderId/audit", orderCtrl.GetOrderAudit)

	// Admin routes
	admin := auth.Group("/admin")
	admin.Use(middleware.AdminOnly())
	admin.GET("/orders", orderCtrl.GetAllOrders)
	admin.GET("/orders/status/:status", orderCtrl.GetOrdersByStatus)

	admin.POST("/episodes", episodeCtrl.CreateEpisode)
	admin.GET("/episodes", episodeCtrl.ListEpisodes)
	admin.GET("/episodes/:episodeId", episodeCtrl.GetEpisode)
	admin.GET("/episodes/:episodeId/audit", episodeCtrl.GetEpisodeAudit)
	admin.POST("/episodes/:episodeId/provider-completed", episodeCtrl.MarkProviderCompleted)
	admin.POST("/episodes/:episodeId/review", episodeCtrl.Review)
	admin.POST("/episodes/:episodeId/send-to-manufacturer", episodeCtrl.SendToManufacturer)
	admin.POST("/episodes/:episodeId/tracking", episodeCtrl.AddTracking)
	admin.POST("/episodes/:episodeId/complete", episodeCtrl.MarkCompleted)
	admin.POST("/episodes/:episodeId/documents", episodeCtrl.UploadDocument)
	admin.DELETE("/episodes/:episodeId/documents/:documentId", episodeCtrl.DeleteDocument)

	rabbit.SetupConsumers(ch, orderService)

	// Run server
	log.Info().Str("port", cfg.Port).Msg("order workflow service listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
