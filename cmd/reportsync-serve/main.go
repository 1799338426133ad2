package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hive-corporation/reportsync/internal/adapter/ledger"
	"github.com/hive-corporation/reportsync/internal/config"
	"github.com/hive-corporation/reportsync/internal/core/domain"
	"github.com/hive-corporation/reportsync/internal/core/ports"
)

// reportsync-serve publishes the report tree over HTTP at the same prefix
// the notifications point at, plus a small ledger query API.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found (this is fine)")
	}

	configPath := "reports.ini"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	ctx := context.Background()
	reportLedger, err := ledger.Open(ctx, cfg.Reports.LedgerDSN)
	if err != nil {
		log.Fatalf("❌ Failed to open ledger: %v", err)
	}
	defer reportLedger.Close()

	router := mux.NewRouter()
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	router.HandleFunc("/api/v1/reports/{date}", listReportsHandler(reportLedger)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	router.PathPrefix("/reports/").Handler(
		http.StripPrefix("/reports/", http.FileServer(http.Dir(cfg.Reports.Directory))),
	).Methods("GET")
	router.Use(loggingMiddleware)

	// Secure default - localhost only
	listenAddr := getEnv("REPORTS_LISTEN_ADDR", "localhost:8080")
	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Report tree listening on %s (root %s)", listenAddr, cfg.Reports.Directory)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}

func listReportsHandler(reportLedger ports.Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := mux.Vars(r)["date"]
		if _, err := time.Parse(domain.DateLayout, date); err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		entries, err := reportLedger.FindByDate(r.Context(), date)
		if err != nil {
			log.Printf("❌ Ledger query failed for %s: %v", date, err)
			http.Error(w, "ledger query failed", http.StatusInternalServerError)
			return
		}
		if entries == nil {
			entries = []domain.LedgerEntry{}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			log.Printf("❌ Failed to encode response: %v", err)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("← %s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}
