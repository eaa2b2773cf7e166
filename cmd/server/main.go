package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ty2499/filiova-learning-platform-sub010/internal/api"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/config"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/dispatch"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/imap"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/logger"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/store/postgres"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/thread"
	"github.com/ty2499/filiova-learning-platform-sub010/internal/ws"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger := logger.NewForEnvironment(cfg.Environment, cfg.LogLevel, cfg.LogFile)
	defer func() { _ = zapLogger.Sync() }()

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.GetDatabaseURL())
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer postgres.ClosePool(pool)

	zapLogger.Info("connected to database",
		zap.String("host", cfg.DBHost), zap.String("database", cfg.DBName))

	st := postgres.NewStore(pool)
	hub := ws.NewHub(cfg.WSMaxConnections, zapLogger)
	syncer := imap.NewSyncer(st, hub, zapLogger)

	scheduler := imap.NewScheduler(
		st,
		syncer,
		time.Duration(cfg.SyncIntervalSeconds)*time.Second,
		uint32(cfg.SyncFetchLimit),
		cfg.SyncParallelism,
		zapLogger,
	)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	groups, err := dispatch.ParseGroups(cfg.RecipientGroups)
	if err != nil {
		zapLogger.Fatal("invalid recipient groups", zap.Error(err))
	}

	server := NewServer(cfg, st, syncer, hub, dispatch.NewDispatcher(
		st,
		dispatch.NewSMTPSender(),
		dispatch.NewStaticDirectory(groups),
		hub,
		zapLogger,
	), zapLogger)

	address := ":" + cfg.Port
	httpServer := &http.Server{Addr: address, Handler: server}

	go func() {
		zapLogger.Info("server starting",
			zap.String("address", address), zap.String("environment", cfg.Environment))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("shutdown error", zap.Error(err))
	}
}

// NewServer creates and returns the HTTP handler for the mail sync API.
func NewServer(cfg *config.Config, st store.Store, syncer *imap.Syncer, hub *ws.Hub, dispatcher *dispatch.Dispatcher, zapLogger *zap.Logger) http.Handler {
	threadService := thread.NewService(st)

	accountsHandler := api.NewAccountsHandler(st, zapLogger)
	messagesHandler := api.NewMessagesHandler(st, zapLogger)
	dispatchHandler := api.NewDispatchHandler(dispatcher, zapLogger)
	threadsHandler := api.NewThreadsHandler(threadService, zapLogger)
	syncHandler := api.NewSyncHandler(st, syncer, uint32(cfg.SyncFetchLimit), zapLogger)
	wsHandler := api.NewWebSocketHandler(hub, zapLogger)

	mux := http.NewServeMux()

	mux.HandleFunc("/", handleRoot)

	mux.Handle("/api/v1/accounts", requireMethod(http.MethodGet, accountsHandler.GetAccounts))
	mux.Handle("/api/v1/messages", requireMethod(http.MethodGet, messagesHandler.GetMessages))
	mux.Handle("/api/v1/unread-count", requireMethod(http.MethodGet, messagesHandler.GetUnreadCount))
	mux.Handle("/api/v1/send", requireMethod(http.MethodPost, dispatchHandler.PostSend))
	mux.Handle("/api/v1/sync", requireMethod(http.MethodPost, syncHandler.TriggerSync))
	mux.Handle("/api/v1/threads", requireMethod(http.MethodGet, threadsHandler.GetThreads))
	mux.Handle("/api/v1/threads/open", requireMethod(http.MethodPost, threadsHandler.OpenThread))
	mux.Handle("/api/v1/ws", http.HandlerFunc(wsHandler.Handle))

	// Handle /api/v1/messages/{id} and /api/v1/messages/{id}/{action} patterns.
	mux.Handle("/api/v1/messages/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/messages/")
		if path == "" || path == r.URL.Path {
			http.Error(w, "message id is required", http.StatusBadRequest)
			return
		}

		id, action, hasAction := strings.Cut(path, "/")
		switch {
		case !hasAction && r.Method == http.MethodGet:
			messagesHandler.GetMessage(w, r, id)
		case hasAction && action == "reply" && r.Method == http.MethodPost:
			dispatchHandler.PostReply(w, r, id)
		case hasAction && r.Method == http.MethodPatch:
			messagesHandler.UpdateFlag(w, r, id, action)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}))

	return mux
}

func requireMethod(method string, handler http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	})
}

func handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Mail sync API is running")
}
