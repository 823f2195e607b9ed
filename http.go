package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter creates a new HTTP router
func NewRouter(hr *HandlerRepository) *mux.Router {
	router := mux.NewRouter()
	router.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			handler.ServeHTTP(w, r)
			d := time.Since(start)

			hr.logger.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"remoteAddr": r.RemoteAddr,
				"durationMs": d.Milliseconds(),
				"duration":   d.String(),
			}).Info("Request")
		})
	})

	router.Handle("/metrics", hr.metricsHandler())
	router.HandleFunc("/api/price/parse", hr.parsePriceHandler()).Methods(http.MethodGet)
	router.HandleFunc("/api/cart/reconcile", hr.reconcileHandler()).Methods(http.MethodPost)
	router.HandleFunc("/api/check/report", hr.checkReportHandler()).Methods(http.MethodGet)
	router.HandleFunc("/api/check/run", hr.checkRunHandler()).Methods(http.MethodPost)
	router.HandleFunc("/api/check/runs", hr.checkRunsHandler()).Methods(http.MethodGet)
	router.HandleFunc("/api/prices/{slug}", hr.priceHistoryHandler()).Methods(http.MethodGet)
	router.HandleFunc("/api/prices/{slug}/chart", hr.priceChartHandler()).Methods(http.MethodGet)

	return router
}

// StartServer starts HTTP server
// It listens for SIGINT and SIGTERM signals and gracefully stops the server
func StartServer(router *mux.Router, port int, cancel context.CancelFunc, logger *logrus.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("listen: %s", err)
			done <- syscall.SIGTERM
		}
	}()
	logger.Infof("Server Started on port %d", port)

	<-done
	logger.Info("Server Stopped")
	cancel() // stop background jobs

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server Shutdown Failed:%+v", err)
	}

	logger.Info("Server Exited Properly")
}
