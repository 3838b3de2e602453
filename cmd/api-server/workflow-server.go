package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"siteflow/db"
	"siteflow/db/migrations"
	"siteflow/internal/handlers"
	"siteflow/internal/notify"
	"siteflow/internal/sideeffects"
	"siteflow/internal/workflow"
	"siteflow/models"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	connString := os.Getenv("POSTGRES_CONN")
	if connString == "" {
		logger.Error("POSTGRES_CONN env variable is not set")
		os.Exit(1)
	}

	dbConn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		logger.Error("cannot connect to DB", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	migrations.Run()

	store := db.NewStorage(dbConn)

	var notifier notify.Notifier = &notify.LogNotifier{Logger: logger}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := os.Getenv("NOTIFY_TOPIC")
		if topic == "" {
			topic = "siteflow.notifications"
		}
		kafkaNotifier, err := notify.NewKafkaNotifier(notify.KafkaConfig{
			Brokers: strings.Split(brokers, ","),
			Topic:   topic,
		})
		if err != nil {
			logger.Error("cannot create kafka notifier", "error", err)
			os.Exit(1)
		}
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	wmLogger := watermill.NewSlogLogger(logger)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 1000},
		wmLogger,
	)

	engine := workflow.NewService(store, sideeffects.NewPublisher(pubSub, logger), logger)

	effectHandlers := sideeffects.NewHandlers(store, notifier, sideeffects.Config{
		AutoAssign: os.Getenv("AUTO_ASSIGN") == "true",
	}, logger)
	effectRouter, err := sideeffects.NewRouter(pubSub, pubSub, effectHandlers, wmLogger)
	if err != nil {
		logger.Error("cannot build side-effect router", "error", err)
		os.Exit(1)
	}
	ctx := context.Background()
	go func() {
		if err := effectRouter.Run(ctx); err != nil {
			logger.Error("side-effect router stopped", "error", err)
		}
	}()

	scheduler := sideeffects.NewScheduler(store, notifier, engine.Awards(), logger)
	if err := scheduler.Start(); err != nil {
		logger.Error("cannot start scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	h := handlers.NewHandler(store, engine, logger)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		// lifecycle entities
		r.Post("/requests/new", h.CreateRequestHandler)
		r.Get("/requests", h.ListEntitiesHandler(models.KindRequest))
		r.Post("/tenders/new", h.CreateTenderHandler)
		r.Get("/tenders", h.ListEntitiesHandler(models.KindTender))
		r.Put("/entities/{entityId}/action", h.ExecuteActionHandler)
		r.Get("/entities/{entityId}/actions", h.GetPossibleActionsHandler)
		r.Get("/entities/{entityId}/progress", h.GetProgressHandler)
		r.Get("/entities/{entityId}/history", h.GetHistoryHandler)
		// bids
		r.Post("/bids/new", h.CreateBidHandler)
		r.Get("/tenders/{tenderId}/bids", h.GetBidsForTenderHandler)
	})

	serverAddr := os.Getenv("SERVER_ADDRESS")
	if serverAddr == "" {
		serverAddr = "0.0.0.0:8080"
	}

	logger.Info("starting server", "addr", serverAddr)
	if err := http.ListenAndServe(serverAddr, r); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
