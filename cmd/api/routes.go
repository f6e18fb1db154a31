package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"horizon/internal/shared/config"
	"horizon/internal/shared/middleware"
)

// SetupRoutes configures all HTTP routes and returns the final handler with middleware.
func SetupRoutes(deps *Dependencies, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.Telemetry)
	r.Use(middleware.Tracing)
	r.Use(corsMiddleware(cfg.Server.AllowedHosts))

	r.Get("/health", handleHealth)

	// Public auth routes
	r.Post("/api/auth/register", deps.AuthHandler.HandleRegister)
	r.Post("/api/auth/login", deps.AuthHandler.HandleLogin)
	r.Post("/api/auth/logout", deps.AuthHandler.HandleLogout)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(deps.JWT))

		r.Get("/api/users/me", deps.AuthHandler.HandleMe)

		r.Post("/api/banks/link-token", deps.BankHandler.HandleCreateLinkToken)
		r.Post("/api/banks/link", deps.BankHandler.HandleLinkBank)
		r.Get("/api/banks", deps.BankHandler.HandleListBanks)
		r.Delete("/api/banks/{handle}", deps.BankHandler.HandleUnlinkBank)

		r.Get("/api/accounts", deps.BankHandler.HandleGetAllAccounts)
		r.Get("/api/accounts/{handle}", deps.BankHandler.HandleGetAccount)

		r.Post("/api/transfers", deps.TransferHandler.HandleCreateTransfer)
		r.Post("/api/transfers/rail", deps.TransferHandler.HandleInitiateRailTransfer)
		r.Patch("/api/transfers/{id}/settle", deps.TransferHandler.HandleSettleTransfer)
	})

	var handler http.Handler = r

	// Security middleware when TLS is enabled
	if cfg.TLS.Enabled {
		handler = middleware.HSTS(middleware.SecureCookies(handler))
		deps.Logger.Info("TLS security middleware enabled")
	}

	return handler
}

// corsMiddleware allows every origin when no allowlist is configured, and
// credentialed requests from the allowlisted hosts otherwise.
func corsMiddleware(allowedHosts []string) func(http.Handler) http.Handler {
	if len(allowedHosts) == 0 {
		return cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
			MaxAge:         3600,
		})
	}

	origins := make([]string, 0, 2*len(allowedHosts))
	for _, host := range allowedHosts {
		origins = append(origins, "https://"+host, "http://"+host)
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           3600,
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
