package main

import (
	"context"
	"flag"

	"whatsapp-hub/internal/config"
	"whatsapp-hub/internal/database"
	"whatsapp-hub/internal/logging"
	"whatsapp-hub/internal/store"
	"whatsapp-hub/internal/templates"
	"whatsapp-hub/internal/whatsapp"

	"go.uber.org/zap"
)

// Imports the official API template list for one phone number, or for
// every official phone number with template credentials when no id is
// given.
func main() {
	id := flag.Uint("id", 0, "phone number record id (0 = all official numbers)")
	flag.Parse()

	cfg := config.LoadConfig()
	log, sync := logging.NewLogger(cfg.LogLevel)
	defer sync()

	db, err := database.Init(cfg)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}
	st := store.New(db)
	syncer := templates.NewSyncer(st, whatsapp.NewClient(cfg, log), log)

	ctx := context.Background()

	if *id != 0 {
		pn, err := st.PhoneNumberByID(*id)
		if err != nil {
			log.Fatal("phone number not found", zap.Uint("id", *id))
		}
		count, err := syncer.SyncPhoneNumber(ctx, pn)
		if err != nil {
			log.Fatal("template import failed", zap.String("phone_number", pn.PhoneNumber), zap.Error(err))
		}
		log.Info("imported templates", zap.String("phone_number", pn.PhoneNumber), zap.Int("count", count))
		return
	}

	numbers, err := st.ListPhoneNumbers()
	if err != nil {
		log.Fatal("failed to list phone numbers", zap.Error(err))
	}
	for i := range numbers {
		pn := &numbers[i]
		if !pn.IsOfficialAPI() || !pn.HasTemplateCredentials() {
			continue
		}
		count, err := syncer.SyncPhoneNumber(ctx, pn)
		if err != nil {
			log.Error("template import failed", zap.String("phone_number", pn.PhoneNumber), zap.Error(err))
			continue
		}
		log.Info("imported templates", zap.String("phone_number", pn.PhoneNumber), zap.Int("count", count))
	}
}
