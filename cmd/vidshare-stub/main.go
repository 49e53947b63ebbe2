package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/vidshare/vidshare/internal/api"
	"github.com/vidshare/vidshare/internal/config"
	"github.com/vidshare/vidshare/internal/devstub"
)

func main() {
	port := getEnv("PORT", config.DefaultPort)

	stub := devstub.New(devstub.Config{
		JWTSecret: getEnv("JWT_SECRET", "devstub-secret"),
		AuthRate:  getEnvFloat("AUTH_RATE", 5),
		AuthBurst: int(getEnvFloat("AUTH_BURST", 10)),
	})

	if getEnv("SEED_DEMO_DATA", "true") == "true" {
		seedDemoData(stub)
		log.Println("demo data seeded (user demo/demo)")
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", port),
		Handler:           stub,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("vidshare stub backend listening on :%s", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}
	log.Println("shutdown complete")
}

func seedDemoData(stub *devstub.Server) {
	stub.AddUser("demo", "demo")
	stub.AddVideo(api.Video{Title: "Sunrise over the harbor", ViewsCount: 120, Location: "Lisbon"})
	stub.AddVideo(api.Video{Title: "Street food tour", ViewsCount: 86, Location: "Bangkok"})
	stub.AddVideo(api.Video{Title: "Night ride timelapse", ViewsCount: 42})
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
