package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/motorpool/extension/v2/internal/api"
	"github.com/motorpool/extension/v2/internal/cache"
	"github.com/motorpool/extension/v2/internal/catalog"
	"github.com/motorpool/extension/v2/internal/config"
	"github.com/motorpool/extension/v2/internal/database"
	"github.com/motorpool/extension/v2/internal/dispatcher"
	"github.com/motorpool/extension/v2/internal/handlers"
	"github.com/motorpool/extension/v2/internal/influx"
	"github.com/motorpool/extension/v2/internal/logging"
	"github.com/motorpool/extension/v2/internal/model"
	"github.com/motorpool/extension/v2/internal/monitor"
	intOtel "github.com/motorpool/extension/v2/internal/otel"
	"github.com/motorpool/extension/v2/internal/parser"
	"github.com/motorpool/extension/v2/internal/session"
	"github.com/motorpool/extension/v2/internal/storage"
	"github.com/motorpool/extension/v2/internal/util"
	"github.com/motorpool/extension/v2/internal/worker"
	"github.com/motorpool/extension/v2/internal/world"
	"github.com/motorpool/extension/v2/pkg/hostbridge"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "2.0.0"
	BuildDate               string = "unknown"

	Addon         string = "motorpool"
	ExtensionName string = "motorpool_keeper"
)

// file paths
var (
	// ModuleFolder is the directory holding the extension binary.
	ModuleFolder string

	// AddonFolder is where config, logs and local vault dumps live. If the
	// binary isn't already inside an @motorpool folder, one is created next
	// to it so keeper files stay out of the host directory.
	AddonFolder string

	InitLogFilePath string
	InitLogFile     *os.File

	KeeperLogFilePath string
	KeeperLogFile     *os.File

	// SqliteDBFilePath refers to the local vault dump file
	SqliteDBFilePath string
)

// global variables
var (
	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// testing
	IsDemoData bool = false

	// UsingLocalVault is set when the postgres vault was unreachable and
	// saves are going to the local SQLite fallback instead
	UsingLocalVault bool = false

	// InstanceCache maps live instance ids to the vault entries they were
	// spawned from, so re-saves update in place
	InstanceCache *cache.InstanceCache = cache.NewInstanceCache()

	// Catalog holds the definition set the host pushes during init
	Catalog *catalog.Registry = catalog.NewRegistry()

	Captures *cache.SafeCounter = &cache.SafeCounter{}
	Restores *cache.SafeCounter = &cache.SafeCounter{}

	SessionStartTime time.Time = time.Now()

	addonVersion string = "unknown"

	// Services
	sessionCtx      *session.Context
	parserService   *parser.Service
	apiClient       *api.Client
	influxManager   *influx.Manager
	handlerService  *handlers.Service
	workerManager   *worker.Manager
	monitorService  *monitor.Service
	eventDispatcher *dispatcher.Dispatcher

	// servicesReady closes once initServices has built the service graph.
	// Storage init waits on it before wiring the worker manager.
	servicesReady = make(chan struct{})

	// Storage backend (created on :INIT:STORAGE:)
	storageBackend storage.Backend

	// World handle announced by the host. It can arrive before storage init
	// finishes, so it's held here until the worker manager exists.
	worldMu      sync.Mutex
	pendingWorld world.World
)

// init is run automatically when the module is loaded
func init() {
	var err error

	exePath, err := os.Executable()
	if err != nil {
		panic(err)
	}
	ModuleFolder = filepath.Dir(exePath)

	AddonFolder = ModuleFolder
	if filepath.Base(AddonFolder) != "@"+Addon {
		AddonFolder = filepath.Join(ModuleFolder, "@"+Addon)
	}

	// check if the addon folder exists
	// if it doesn't, create it
	if _, err := os.Stat(AddonFolder); os.IsNotExist(err) {
		os.Mkdir(AddonFolder, 0755)
	}

	InitLogFilePath = filepath.Join(AddonFolder, "init.log")

	InitLogFile, err = os.Create(InitLogFilePath)
	if err != nil {
		// Log to stderr since logging isn't set up yet
		fmt.Fprintf(os.Stderr, "Failed to create init log file: %v\n", err)
	}

	// Initialize slog manager with initial config
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(InitLogFile, viper.GetString("logLevel"), nil)
	Logger = SlogManager.Logger()

	// load config
	err = loadConfig()
	if err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	// create logs dir if it doesn't exist
	if _, err := os.Stat(viper.GetString("logsDir")); os.IsNotExist(err) {
		os.Mkdir(viper.GetString("logsDir"), 0755)
	}

	KeeperLogFilePath = logging.LogFilePath(viper.GetString("logsDir"), ExtensionName, SessionStartTime)

	// check if KeeperLogFilePath exists
	// if it does, move it to KeeperLogFilePath.old
	// if it doesn't, create it
	if _, err := os.Stat(KeeperLogFilePath); err == nil {
		os.Rename(KeeperLogFilePath, KeeperLogFilePath+".old")
	}

	KeeperLogFile, err = os.OpenFile(KeeperLogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", KeeperLogFilePath)
	}

	Logger.Info("Begin logging in logs directory", "path", KeeperLogFilePath)

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    KeeperLogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			if otelCfg.Endpoint != "" {
				Logger.Info("OTel provider initialized", "file", KeeperLogFilePath, "endpoint", otelCfg.Endpoint)
			} else {
				Logger.Info("OTel provider initialized", "file", KeeperLogFilePath)
			}
		}
	}

	// Attach dynamic session state to every record. Takes effect on the
	// Setup call below.
	SlogManager.SetContextProvider(func() []slog.Attr {
		attrs := make([]slog.Attr, 0, 3)
		if sessionCtx != nil {
			sess := sessionCtx.GetSession()
			if sess.ID != 0 {
				attrs = append(attrs,
					slog.String("serverName", sess.ServerName),
					slog.Uint64("sessionId", uint64(sess.ID)),
				)
			}
		}
		if UsingLocalVault {
			attrs = append(attrs, slog.Bool("localVault", true))
		}
		return attrs
	})

	// Re-setup logging with file output and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(KeeperLogFile, viper.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", KeeperLogFilePath)

	SqliteDBFilePath = filepath.Join(AddonFolder, fmt.Sprintf("%s_%s.db", ExtensionName, SessionStartTime.Format("20060102_150405")))

	// set up host bridge
	Logger.Info("Setting up host bridge...")
	err = setupHostBridge()
	if err != nil {
		Logger.Error("Failed to set up host bridge!", "error", err)
		panic(err)
	} else {
		Logger.Info("Set up host bridge")
	}

	// set GOMAXPROCS to n - 2, minimum 1, so the host keeps headroom
	numCPUs := runtime.NumCPU()
	Logger.Debug("Number of CPUs", "numCPUs", numCPUs)
	runtime.GOMAXPROCS(int(math.Max(float64(numCPUs-2), 1)))

	go func() {
		initServices()

		// log frontend status
		checkServerStatus()
	}()
}

func initExtension() {
	// send ready callback to the host
	hostbridge.WriteHostCallback(ExtensionName, ":EXT:READY:")
	// send extension version
	hostbridge.WriteHostCallback(ExtensionName, ":VERSION:", CurrentExtensionVersion)
}

func setupHostBridge() (err error) {
	hostbridge.SetVersion(CurrentExtensionVersion)

	// Create early dispatcher for commands that don't need storage/workers.
	// This ensures :VERSION:, :INIT:, etc. work immediately when the
	// extension loads.
	dispatcherLogger := logging.NewDispatcherLogger(Logger)
	earlyDispatcher, err := dispatcher.New(dispatcherLogger)
	if err != nil {
		return fmt.Errorf("failed to create early dispatcher: %w", err)
	}

	// Register early handlers
	registerLifecycleHandlers(earlyDispatcher)
	hostbridge.SetDispatcher(earlyDispatcher)
	eventDispatcher = earlyDispatcher

	// The host can announce the world before storage init finishes; hold the
	// handle until the worker manager exists.
	hostbridge.RegisterWorldSink(func(w world.World) {
		worldMu.Lock()
		defer worldMu.Unlock()
		pendingWorld = w
		if workerManager != nil {
			workerManager.SetWorld(w)
		}
	})

	Logger.Info("Early dispatcher initialized with lifecycle handlers")
	return nil
}

func loadConfig() (err error) {
	return config.Load(AddonFolder)
}

// initServices builds the service graph the lifecycle handlers hand work to.
// Runs once, off the loading thread; initStorage waits for it.
func initServices() {
	functionName := "initServices"
	defer close(servicesReady)

	sessionCtx = session.NewContext()
	parserService = parser.NewService(Logger, addonVersion, CurrentExtensionVersion)

	apiCfg := config.GetAPIConfig()
	apiClient = api.New(apiCfg.ServerURL, apiCfg.APIKey)

	handlerService = handlers.NewService(handlers.Dependencies{
		ParserService: parserService,
		InstanceCache: InstanceCache,
		LogManager:    SlogManager,
		APIClient:     apiClient,
		ExtensionName: ExtensionName,
	}, sessionCtx)

	// Seed the catalog from a local definitions file when one is configured.
	// The host pushes its definition set during init either way; the file
	// covers servers that restore before those pushes land.
	if defsPath := config.GetCatalogConfig().DefinitionsFile; defsPath != "" {
		if !filepath.IsAbs(defsPath) {
			defsPath = filepath.Join(AddonFolder, defsPath)
		}
		if n, err := Catalog.LoadFile(defsPath); err != nil {
			Logger.Warn("Failed to load definitions file", "path", defsPath, "error", err)
		} else {
			Logger.Info("Loaded definitions file", "path", defsPath, "definitions", n)
		}
	}

	// Forward logs to Graylog if configured
	graylogCfg := config.GetGraylogConfig()
	if graylogCfg.Enabled {
		if err := SlogManager.EnableGraylog(graylogCfg.Address); err != nil {
			Logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			var otelLogProvider *sdklog.LoggerProvider
			if OTelProvider != nil {
				otelLogProvider = OTelProvider.LoggerProvider()
			}
			SlogManager.Setup(KeeperLogFile, viper.GetString("logLevel"), otelLogProvider)
			Logger = SlogManager.Logger()
			Logger.Info("Forwarding logs to Graylog", "address", graylogCfg.Address)
		}
	}

	// Metrics sink. A failed connect leaves metrics off rather than
	// queueing errors every status tick.
	im := influx.NewManager(newComponentLogger("influx"), filepath.Join(AddonFolder, "influx_backup.gz"))
	if err := im.Connect(); err != nil {
		Logger.Info("InfluxDB metrics disabled", "reason", err.Error())
	} else {
		influxManager = im
	}

	SlogManager.WriteLog(functionName, "Services initialized", "INFO")
}

// newComponentLogger builds a zerolog logger for the subsystems that log
// through zerolog (database, influx).
func newComponentLogger(component string) zerolog.Logger {
	var out io.Writer = os.Stdout
	if KeeperLogFile != nil {
		out = KeeperLogFile
	}
	return zerolog.New(out).With().Timestamp().Str("component", component).Logger()
}

func checkServerStatus() {
	// check if the web frontend is running by making a healthcheck request
	err := apiClient.Healthcheck()
	if err != nil {
		Logger.Info("Motorpool frontend is offline")
	} else {
		Logger.Info("Motorpool frontend is online")
	}
}

// registerLifecycleHandlers registers system/lifecycle command handlers with the dispatcher
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	// Simple commands (no args)
	d.Register(":INIT:", func(e dispatcher.Event) (any, error) {
		go initExtension()
		return "ok", nil
	})

	d.Register(":INIT:STORAGE:", func(e dispatcher.Event) (any, error) {
		go func() {
			if err := initStorage(); err != nil {
				Logger.Error("Storage initialization failed", "error", err)
			}
		}()
		return "ok", nil
	})

	// Simple queries - sync return is sufficient, no callback needed
	d.Register(":VERSION:", func(e dispatcher.Event) (any, error) {
		return []string{CurrentExtensionVersion, BuildDate}, nil
	})

	d.Register(":GETDIR:MODULE:", func(e dispatcher.Event) (any, error) {
		return ModuleFolder, nil
	})

	d.Register(":GETDIR:ADDON:", func(e dispatcher.Event) (any, error) {
		return AddonFolder, nil
	})

	d.Register(":GETDIR:KEEPERLOG:", func(e dispatcher.Event) (any, error) {
		return KeeperLogFilePath, nil
	})

	// Commands with args
	d.Register(":ADDON:VERSION:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) > 0 {
			addonVersion = util.FixEscapeQuotes(util.TrimQuotes(e.Args[0]))
			if parserService != nil {
				parserService.SetAddonVersion(addonVersion)
			}
			Logger.Info("Addon version", "version", addonVersion)
		}
		return "ok", nil
	})

	d.Register(":SESSION:START:", func(e dispatcher.Event) (any, error) {
		if handlerService == nil {
			return nil, fmt.Errorf("extension still starting")
		}
		if err := handlerService.LogNewSession(e.Args); err != nil {
			return nil, err
		}
		return "ok", nil
	})

	d.Register(":SESSION:END:", func(e dispatcher.Event) (any, error) {
		Logger.Info("Received :SESSION:END: command, flushing vault session")
		if handlerService != nil {
			if err := handlerService.LogEndSession(); err != nil {
				Logger.Error("Failed to end session", "error", err)
				return nil, err
			}
		}
		// Flush OTel data if provider is available
		if OTelProvider != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := OTelProvider.Flush(ctx); err != nil {
				Logger.Warn("Failed to flush OTel data", "error", err)
			}
		}
		return "ok", nil
	})

	d.Register(":STATUS:", func(e dispatcher.Event) (any, error) {
		if monitorService == nil {
			return nil, fmt.Errorf("status not available before storage init")
		}
		out, _ := monitorService.GetProgramStatus(true, true, true)
		return out, nil
	})

	// Host-pushed metrics ride a buffer; losing one under load beats
	// stalling the host call.
	d.Register(":METRIC:", func(e dispatcher.Event) (any, error) {
		if influxManager == nil {
			return nil, nil
		}
		metric, err := parserService.ParseMetric(e.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to parse metric: %w", err)
		}
		point := influx.PointFromMetric(metric.Measurement, metric.Tags, metric.Fields)
		if err := influxManager.WritePoint(context.Background(), metric.Bucket, point); err != nil {
			return nil, err
		}
		return nil, nil
	}, dispatcher.Buffered(500))

	// Script-side log lines: [level, function, message]
	d.Register(":LOG:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 3 {
			return nil, fmt.Errorf("log command expects 3 args, got %d", len(e.Args))
		}
		SlogManager.WriteLog(
			util.FixEscapeQuotes(util.TrimQuotes(e.Args[1])),
			util.FixEscapeQuotes(util.TrimQuotes(e.Args[2])),
			util.FixEscapeQuotes(util.TrimQuotes(e.Args[0])),
		)
		return "ok", nil
	})
}

//////////////////////////////////////////////////////////////
// Direct (exe) functions
//////////////////////////////////////////////////////////////

// migrateBackupsSqlite reads every local vault dump in the addon folder and
// inserts its rows into Postgres, renaming each file once merged.
func migrateBackupsSqlite() (err error) {
	sqlitePaths, err := database.GetBackupDBPaths(AddonFolder)
	if err != nil {
		return fmt.Errorf("error getting backup database paths: %v", err)
	}
	postgresDB, err := database.OpenPostgresDB()
	if err != nil {
		return fmt.Errorf("error getting postgres database: %v", err)
	}

	successfulMigrations := make([]string, 0)

	for _, sqlitePath := range sqlitePaths {
		sqliteDB, err := database.OpenSqliteDB(sqlitePath)
		if err != nil {
			return fmt.Errorf("error getting sqlite database: %v", err)
		}
		Logger.Info("Migrating local vault dump", "path", sqlitePath)

		// transaction for Postgres so we can rollback if errors
		tx := postgresDB.Begin()

		// migrate all tables, parents before the rows that reference them
		err = migrateTable(sqliteDB, tx, model.KeeperInfo{}, "keeper_infos")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating keeper_infos: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.World{}, "worlds")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating worlds: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.Session{}, "sessions")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating sessions: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.VaultEntry{}, "vault_entries")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating vault_entries: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.VaultBarricade{}, "vault_barricades")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating vault_barricades: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.VaultStructure{}, "vault_structures")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating vault_structures: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.CaptureEvent{}, "capture_events")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating capture_events: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.RestoreEvent{}, "restore_events")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating restore_events: %v", err)
		}
		err = migrateTable(sqliteDB, tx, model.KeeperPerformance{}, "keeper_performances")
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("error migrating keeper_performances: %v", err)
		}

		// With no issues, we commit the transaction
		tx.Commit()

		// if we get here, we've successfully migrated this backup
		// remove connections to the databases
		sqlConnection, err := sqliteDB.DB()
		if err != nil {
			Logger.Error("Error getting sqlite connection", "error", err)
			continue
		}
		err = sqlConnection.Close()
		if err != nil {
			Logger.Error("Error closing sqlite connection", "error", err)
		}
		err = os.Rename(sqlitePath, sqlitePath+".migrated")
		if err != nil {
			Logger.Error("Error renaming sqlite file", "error", err)
		}
		successfulMigrations = append(successfulMigrations, sqlitePath)
	}

	// if we get here, we've successfully migrated all backups
	Logger.Info("Successfully migrated backups, it's recommended to delete these to avoid future data duplication",
		"count", len(successfulMigrations),
		"paths", successfulMigrations)

	return nil
}

// helper function for sqlite migrations. Row ids are kept so foreign keys
// stay intact; rows already present on the Postgres side are skipped.
func migrateTable[M any](
	sqliteDB *gorm.DB,
	postgresDB *gorm.DB,
	model M,
	tableName string,
) (err error) {
	rows := []map[string]any{}
	err = sqliteDB.Model(&model).Find(&rows).Error
	if err != nil {
		return fmt.Errorf("error reading %s: %w", tableName, err)
	}
	Logger.Info("Found records", "count", len(rows), "table", tableName)

	if len(rows) == 0 {
		return nil
	}

	Logger.Info("Inserting records", "count", len(rows), "table", tableName)

	// insert into postgres
	err = postgresDB.Model(&model).Clauses(
		clause.OnConflict{
			DoNothing: true,
		}).Create(rows).Error
	if err != nil {
		Logger.Error("Error migrating table", "error", err, "table", tableName)
		return err
	}

	return nil
}

func main() {
	var err error
	Logger.Info("Starting up...")

	Logger.Info("Initializing storage...")
	err = initStorage()
	if err != nil {
		panic(err)
	}
	Logger.Info("Storage initialization complete.")
	initExtension()

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Println("No arguments provided.")
		fmt.Scanln()
		return
	}

	switch strings.ToLower(args[0]) {
	case "demo":
		Logger.Info("Populating demo data...")
		IsDemoData = true
		demoStart := time.Now()
		populateDemoData()
		Logger.Info("Demo data populated.", "duration", time.Since(demoStart))
		fmt.Println("Press enter to exit.")

	case "setupdb":
		err = setupDatabase()
		if err != nil {
			panic(err)
		}
		Logger.Info("DB setup complete.")

	case "export":
		entryIDs := args[1:]
		if len(entryIDs) > 0 {
			err = exportGarageManifests(entryIDs)
			if err != nil {
				panic(err)
			}
		} else {
			fmt.Println("No entry IDs provided.")
		}

	case "prune":
		if len(args) > 1 {
			err = pruneAuditRows(args[1])
			if err != nil {
				panic(err)
			}
		} else {
			fmt.Println("No retention period provided.")
		}

	case "migratebackups":
		err = migrateBackupsSqlite()
		if err != nil {
			panic(err)
		}
		Logger.Info("Finished migrating backups.")

	case "inspect":
		entryIDs := args[1:]
		if len(entryIDs) > 0 {
			err = inspectEntries(entryIDs)
			if err != nil {
				panic(err)
			}
		} else {
			fmt.Println("No entry IDs provided.")
		}

	default:
		fmt.Println("Unknown command:", args[0])
	}

	fmt.Scanln()
}
