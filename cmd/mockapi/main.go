// ABOUTME: Runs the in-memory mock CRM server for local development
// ABOUTME: Serves seeded meetings, leads, calls, and tasks under /api until interrupted

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harperreed/salesdesk/mockapi"
	"go.uber.org/zap"
)

func main() {
	addr := flag.String("addr", ":8080", "Listen address")
	token := flag.String("token", "", "Require this bearer token on every request")
	seed := flag.Bool("seed", true, "Load the demo data set")
	noEcho := flag.Bool("no-update-echo", false, "Answer updates without the updated record")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	opts := []mockapi.Option{mockapi.WithLogger(logger), mockapi.WithToken(*token)}
	if *seed {
		opts = append(opts, mockapi.WithSeed())
	}
	if *noEcho {
		opts = append(opts, mockapi.WithoutUpdateEcho())
	}
	srv := mockapi.New(opts...)

	go func() {
		logger.Info("mock CRM API listening", zap.String("addr", *addr), zap.String("base_url", "http://localhost"+*addr+"/api"))
		if err := srv.Start(*addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Echo().Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
