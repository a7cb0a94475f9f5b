package main

import (
	"whatsapp-hub/internal/api"
	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/database"
	"whatsapp-hub/internal/dispatch"
	"whatsapp-hub/internal/logging"
	"whatsapp-hub/internal/normalizer"
	"whatsapp-hub/internal/store"
	"whatsapp-hub/internal/templates"
	"whatsapp-hub/internal/webhook"
	"whatsapp-hub/internal/whatsapp"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	log, sync := logging.NewLogger(cfg.LogLevel)
	defer sync()

	db, err := database.Init(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	st := store.New(db)

	officialClient := whatsapp.NewClient(cfg, log)
	syncer := templates.NewSyncer(st, officialClient, log)
	router := dispatch.NewRouter(st, officialClient, cfg, log)

	officialNorm := normalizer.NewOfficial(st, officialClient, cfg, log)
	wahaNorm := normalizer.NewWaha(st, cfg, log)

	officialWebhook := webhook.NewOfficialHandler(st, officialNorm, syncer, log)
	wahaWebhook := webhook.NewWahaHandler(st, wahaNorm, log)

	messageAPI := api.NewMessageHandler(st, router, log)
	templateAPI := api.NewTemplateHandler(st, syncer, log)
	contactAPI := api.NewContactHandler(st, log)
	phoneNumberAPI := api.NewPhoneNumberHandler(st, syncer, cfg, log)

	r := gin.Default()

	r.GET("/webhook/:token", officialWebhook.Verify)
	r.POST("/webhook/:token", officialWebhook.Receive)
	r.POST("/webhook/waha", wahaWebhook.Receive)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/messages", messageAPI.Send)
		apiGroup.GET("/messages", messageAPI.List)
		apiGroup.POST("/messages/:id/retry", messageAPI.Retry)

		apiGroup.GET("/templates", templateAPI.List)

		apiGroup.GET("/contacts", contactAPI.List)
		apiGroup.POST("/contacts", contactAPI.Create)

		apiGroup.GET("/phone-numbers", phoneNumberAPI.List)
		apiGroup.POST("/phone-numbers", phoneNumberAPI.Create)
		apiGroup.POST("/phone-numbers/:id/templates/sync", templateAPI.Sync)
		apiGroup.POST("/phone-numbers/:id/waha/webhook", phoneNumberAPI.ConfigureWahaWebhook)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	log.Info("starting server", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
