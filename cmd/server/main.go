package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pagemark/pagemark/backend-go/internal/asset"
	"github.com/pagemark/pagemark/backend-go/internal/config"
	"github.com/pagemark/pagemark/backend-go/internal/editor"
	"github.com/pagemark/pagemark/backend-go/internal/engine"
	"github.com/pagemark/pagemark/backend-go/internal/export"
	"github.com/pagemark/pagemark/backend-go/internal/history"
	"github.com/pagemark/pagemark/backend-go/internal/library"
	mw "github.com/pagemark/pagemark/backend-go/internal/middleware"
	"github.com/pagemark/pagemark/backend-go/internal/session"
	"github.com/pagemark/pagemark/backend-go/internal/settings"
)

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	files, err := library.NewDiskStore(cfg.DataDir)
	if err != nil {
		slog.Error("prepare data dir", "error", err)
		os.Exit(1)
	}

	store, err := settings.Open(cfg.SettingsDB)
	if err != nil {
		slog.Error("open settings store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	ed := editor.New(engine.Factory(cfg.EnginePath), files, history.NewLog(cfg.HistoryLimit))

	hub := session.NewHub(ed)
	go hub.Run()

	issuer := session.NewTokenIssuer(cfg.SessionSecret)

	libraryService := library.NewService(ed, hub, files, store)
	libraryHandler := library.NewHandler(libraryService)

	assetHandler := asset.NewHandler(cfg.AssetDir)
	exportHandler := export.NewHandler(ed, hub)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Session token for the webview; only the shell process reaches
	// this port at startup.
	r.HandleFunc("/session/token", func(w http.ResponseWriter, r *http.Request) {
		sessionID, token, err := issuer.Issue()
		if err != nil {
			slog.Error("issue session token", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"sessionId":%q,"token":%q}`, sessionID, token)
	}).Methods("POST")

	// Document library
	r.HandleFunc("/api/documents/open", libraryHandler.Open).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/documents/{docId}/save", libraryHandler.Save).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/documents/{docId}", libraryHandler.Close).Methods("DELETE", "OPTIONS")
	r.HandleFunc("/api/recent", libraryHandler.Recent).Methods("GET")
	r.HandleFunc("/api/preferences/{key}", libraryHandler.GetPreference).Methods("GET")
	r.HandleFunc("/api/preferences/{key}", libraryHandler.SetPreference).Methods("PUT", "OPTIONS")

	// Stamp image assets
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")
	r.HandleFunc("/assets/{name}", assetHandler.Remove).Methods("DELETE", "OPTIONS")
	r.PathPrefix("/assets/").Handler(assetHandler.Serve()).Methods("GET")

	// Export endpoint
	r.HandleFunc("/export/document", exportHandler.ExportDocument).Methods("POST", "OPTIONS")

	// WebSocket endpoint
	r.HandleFunc("/ws/document/{docId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, issuer, cfg.Origins())
	})

	addr := fmt.Sprintf("localhost:%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *session.Hub, issuer *session.TokenIssuer, origins []string) {
	docID := mux.Vars(r)["docId"]

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	sessionID, err := issuer.Validate(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := session.NewClient(hub, conn, sessionID, docID, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
