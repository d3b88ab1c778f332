package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"syscall"
	"time"

	"github.com/recipeclip/agent/internal/api"
	"github.com/recipeclip/agent/internal/authman"
	"github.com/recipeclip/agent/internal/backend"
	"github.com/recipeclip/agent/internal/bridge"
	"github.com/recipeclip/agent/internal/config"
	"github.com/recipeclip/agent/internal/logging"
	"github.com/recipeclip/agent/internal/provider"
	emailprovider "github.com/recipeclip/agent/internal/provider/email"
	googleprovider "github.com/recipeclip/agent/internal/provider/google"
	"github.com/recipeclip/agent/internal/store"
	"github.com/recipeclip/agent/internal/watcher"
	log "github.com/sirupsen/logrus"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Configure File Path")
	flag.Parse()

	logging.SetupBaseLogger()

	if configPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("failed to get working directory: %v", err)
		}
		configPath = path.Join(wd, "config.yaml")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err = cfg.ExpandAuthDir(); err != nil {
		log.Fatalf("failed to resolve auth directory: %v", err)
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	if err = logging.ConfigureLogOutput(cfg.LoggingToFile); err != nil {
		log.Fatalf("failed to configure log output: %v", err)
	}

	authStore, err := store.Open(filepath.Join(cfg.AuthDir, "auth.db"))
	if err != nil {
		log.Fatalf("failed to open auth store: %v", err)
	}
	defer func() {
		_ = authStore.Close()
	}()

	authBridge := bridge.New(cfg)
	defer authBridge.Close()

	backendClient := backend.New(cfg)
	manager := authman.New(authStore,
		googleprovider.New(cfg, authStore, authBridge, backendClient),
		emailprovider.New(authStore, authBridge, backendClient),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err = manager.SetupAuthStateListener(ctx, func(profile *provider.UserProfile) {
		if profile == nil {
			log.Info("auth state changed: signed out")
			return
		}
		log.Infof("auth state changed: signed in as %s", profile.Email)
	}); err != nil {
		log.Fatalf("failed to set up auth state listener: %v", err)
	}

	server := api.NewServer(cfg, manager)

	configWatcher, err := watcher.NewWatcher(configPath, func(newCfg *config.Config) {
		server.SetConfig(newCfg)
		if newCfg.Debug {
			log.SetLevel(log.DebugLevel)
		} else {
			log.SetLevel(log.InfoLevel)
		}
	})
	if err != nil {
		log.Fatalf("failed to create config watcher: %v", err)
	}
	if err = configWatcher.Start(ctx); err != nil {
		log.Fatalf("failed to start config watcher: %v", err)
	}
	defer func() {
		_ = configWatcher.Stop()
	}()

	go func() {
		if errServe := server.Start(); errServe != nil {
			log.Fatalf("message API server failed: %v", errServe)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server shutdown failed: %v", err)
	}
}
