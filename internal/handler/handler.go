package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"yolda/config"
	"yolda/internal/dispatch"
	"yolda/internal/repository"
	"yolda/internal/state"
)

// Response represents the API response
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Handler struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *sql.DB
	users    *repository.UserRepository
	orders   *repository.OrderRepository
	content  *repository.ContentRepository
	dispatch *dispatch.Service
	state    *state.Store
	feed     *LiveFeed
}

func NewHandler(
	cfg *config.Config,
	logger *zap.Logger,
	db *sql.DB,
	users *repository.UserRepository,
	orders *repository.OrderRepository,
	content *repository.ContentRepository,
	dispatchService *dispatch.Service,
	stateStore *state.Store,
	feed *LiveFeed,
) *Handler {
	return &Handler{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		users:    users,
		orders:   orders,
		content:  content,
		dispatch: dispatchService,
		state:    stateStore,
		feed:     feed,
	}
}

// text loads an editable message template, falling back to the built-in
// default when the key was never seeded
func (h *Handler) text(ctx context.Context, key, fallback string) string {
	value, err := h.content.GetText(ctx, key)
	if err != nil || value == "" {
		return fallback
	}
	return value
}

func (h *Handler) isAdmin(ctx context.Context, telegramID int64) bool {
	if telegramID == h.cfg.AdminTelegramID {
		return true
	}

	user, err := h.users.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		return false
	}
	return user.IsAdmin
}

func (h *Handler) sendSuccessResponse(w http.ResponseWriter, message string, data interface{}) {
	json.NewEncoder(w).Encode(Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func (h *Handler) sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Message: message,
	})
}

// Middleware
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// adminAuthMiddleware gates the admin API on the shared token, passed as
// a Bearer token or the X-Admin-Token header
func (h *Handler) adminAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		token := r.Header.Get("X-Admin-Token")
		if token == "" {
			auth := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
				token = auth[len(prefix):]
			}
		}

		if token != h.cfg.AdminToken {
			h.logger.Warn("Admin API auth failed", zap.String("path", r.URL.Path))
			h.sendErrorResponse(w, "Ruxsat yo'q", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// StartWebServer runs the admin panel API and the live order feed until
// the context is cancelled
func (h *Handler) StartWebServer(ctx context.Context) {
	r := mux.NewRouter()

	r.Use(h.corsMiddleware)

	admin := r.PathPrefix("/api/admin").Subrouter()
	admin.Use(h.adminAuthMiddleware)
	admin.HandleFunc("/stats", h.handleAdminStats).Methods("GET", "OPTIONS")
	admin.HandleFunc("/orders", h.handleAdminOrders).Methods("GET", "OPTIONS")
	admin.HandleFunc("/users", h.handleAdminUsers).Methods("GET", "OPTIONS")
	admin.HandleFunc("/users/block", h.handleAdminBlockUser).Methods("POST", "OPTIONS")
	admin.HandleFunc("/keywords", h.handleAdminKeywords).Methods("GET", "POST", "OPTIONS")
	admin.HandleFunc("/keywords/{id}", h.handleAdminDeleteKeyword).Methods("DELETE", "OPTIONS")
	admin.HandleFunc("/groups", h.handleAdminGroups).Methods("GET", "POST", "OPTIONS")
	admin.HandleFunc("/texts", h.handleAdminTexts).Methods("GET", "POST", "OPTIONS")
	admin.HandleFunc("/settings", h.handleAdminSettings).Methods("POST", "OPTIONS")

	r.HandleFunc("/ws/orders", h.handleOrderFeedWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		status := "ok"
		code := http.StatusOK
		if err := h.db.PingContext(r.Context()); err != nil {
			h.logger.Error("Health check database ping failed", zap.Error(err))
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{
			"status":    status,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	server := &http.Server{
		Addr:         h.cfg.Port,
		Handler:      r,
		ReadTimeout:  h.cfg.ReadTimeout,
		WriteTimeout: h.cfg.WriteTimeout,
		IdleTimeout:  h.cfg.IdleTimeout,
	}

	h.logger.Info("Starting web server", zap.String("port", h.cfg.Port))
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Fatal("Failed to start web server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	h.logger.Info("Shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		h.logger.Error("Server shutdown error", zap.Error(err))
	}
}
