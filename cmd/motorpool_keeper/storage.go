package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/motorpool/extension/v2/internal/config"
	"github.com/motorpool/extension/v2/internal/monitor"
	"github.com/motorpool/extension/v2/internal/snapshot"
	"github.com/motorpool/extension/v2/internal/storage"
	"github.com/motorpool/extension/v2/internal/storage/memory"
	pgstorage "github.com/motorpool/extension/v2/internal/storage/postgres"
	sqlitestorage "github.com/motorpool/extension/v2/internal/storage/sqlite"
	wsstorage "github.com/motorpool/extension/v2/internal/storage/websocket"
	"github.com/motorpool/extension/v2/internal/worker"
	"github.com/motorpool/extension/v2/pkg/hostbridge"

	"github.com/spf13/viper"
)

var (
	storageOnce sync.Once
	storageErr  error
)

// initStorage creates the configured vault backend, wires the worker manager
// over it, and reports readiness to the host. Repeat calls return the first
// result; the host may send :INIT:STORAGE: more than once across reconnects.
func initStorage() error {
	storageOnce.Do(func() {
		storageErr = doInitStorage()
	})
	return storageErr
}

func doInitStorage() error {
	Logger.Debug("Received :INIT:STORAGE: call")
	functionName := ":INIT:STORAGE:"

	// Worker dependencies are built in initServices; storage wiring needs
	// them in place.
	<-servicesReady

	storageCfg := config.GetStorageConfig()
	activeType := storageCfg.Type
	if activeType == "" {
		activeType = "memory"
	}

	backend, err := createStorageBackend(storageCfg)
	if err == nil {
		err = backend.Init()
	}
	if err != nil && storageCfg.Type == "postgres" {
		// Saves must not be lost to an unreachable vault database. Fall back
		// to the local SQLite vault; migratebackups merges the dumps later.
		Logger.Error("Postgres vault unavailable, falling back to local SQLite", "error", err)
		UsingLocalVault = true
		activeType = "sqlite"
		backend, err = createSqliteBackend(storageCfg)
		if err == nil {
			err = backend.Init()
		}
	}
	if err != nil {
		SlogManager.WriteLog(functionName, fmt.Sprintf(`Error initializing storage: %v`, err), "ERROR")
		hostbridge.WriteHostCallback(ExtensionName, ":STORAGE:ERROR:", err.Error())
		return err
	}
	storageBackend = backend

	// Initialize worker manager over the live backend
	workerManager = worker.NewManager(worker.Dependencies{
		Catalog:        Catalog,
		Engine:         snapshot.NewEngine(Catalog, Logger),
		InstanceCache:  InstanceCache,
		LogManager:     SlogManager,
		ParserService:  parserService,
		SessionContext: sessionCtx,
		Captures:       Captures,
		Restores:       Restores,
		DefaultLabel:   config.GetString("defaultLabel"),
	}, storageBackend)

	// Register worker handlers with the early dispatcher
	Logger.Debug("Registering worker handlers with dispatcher")
	workerManager.RegisterHandlers(eventDispatcher)
	Logger.Info("Worker handlers registered with dispatcher")

	// Apply a world the host announced before storage came up
	worldMu.Lock()
	if pendingWorld != nil {
		workerManager.SetWorld(pendingWorld)
	}
	worldMu.Unlock()

	handlerService.SetBackend(storageBackend)

	// Initialize monitor service
	monitorService = monitor.NewService(monitor.Dependencies{
		LogManager:     SlogManager,
		SessionContext: sessionCtx,
		WorkerManager:  workerManager,
		Dispatcher:     eventDispatcher,
		Catalog:        Catalog,
		InstanceCache:  InstanceCache,
		Captures:       Captures,
		Restores:       Restores,
		InfluxManager:  influxManager,
		AddonFolder:    AddonFolder,
	})
	monitorService.SetBackend(storageBackend)

	if !monitorService.IsRunning() {
		Logger.Debug("Status process not running, starting it")
		monitorService.Start()
	}

	// Signal storage ready
	SlogManager.WriteLog(functionName, fmt.Sprintf("Vault storage ready (%s)", activeType), "INFO")
	hostbridge.WriteHostCallback(ExtensionName, ":STORAGE:OK:", activeType)
	return nil
}

func createStorageBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	switch storageCfg.Type {
	case "postgres":
		Logger.Info("Postgres storage backend initialized")
		return pgstorage.New(pgstorage.Dependencies{
			InstanceCache:  InstanceCache,
			LogManager:     SlogManager,
			SessionContext: sessionCtx,
		}), nil

	case "sqlite":
		return createSqliteBackend(storageCfg)

	case "websocket":
		wsURL := httpToWS(viper.GetString("api.serverUrl")) + "/api"
		secret := viper.GetString("api.apiKey")
		Logger.Info("WebSocket storage backend initialized", "url", wsURL)
		return wsstorage.New(wsstorage.Config{
			URL:    wsURL,
			Secret: secret,
		}), nil

	default:
		Logger.Info("Memory storage backend initialized")
		return memory.New(storageCfg.Memory), nil
	}
}

func createSqliteBackend(storageCfg config.StorageConfig) (storage.Backend, error) {
	backend, err := sqlitestorage.New(sqlitestorage.Config{
		DumpInterval: storageCfg.SQLite.DumpInterval,
		DumpPath:     SqliteDBFilePath,
	}, InstanceCache, SlogManager, sessionCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
	}
	Logger.Info("SQLite storage backend initialized")
	return backend, nil
}

// httpToWS converts an HTTP(S) URL to a WebSocket URL.
func httpToWS(httpURL string) string {
	s := strings.TrimRight(httpURL, "/")
	s = strings.Replace(s, "https://", "wss://", 1)
	s = strings.Replace(s, "http://", "ws://", 1)
	return s
}
