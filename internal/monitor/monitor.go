package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/motorpool/extension/v2/internal/cache"
	"github.com/motorpool/extension/v2/internal/catalog"
	"github.com/motorpool/extension/v2/internal/dispatcher"
	"github.com/motorpool/extension/v2/internal/influx"
	"github.com/motorpool/extension/v2/internal/logging"
	"github.com/motorpool/extension/v2/internal/session"
	"github.com/motorpool/extension/v2/internal/storage"
	"github.com/motorpool/extension/v2/internal/worker"
	"github.com/motorpool/extension/v2/pkg/core"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"gorm.io/gorm"
)

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	DB             *gorm.DB
	LogManager     *logging.SlogManager
	SessionContext *session.Context
	WorkerManager  *worker.Manager
	Dispatcher     *dispatcher.Dispatcher
	Catalog        *catalog.Registry
	InstanceCache  *cache.InstanceCache
	Captures       *cache.SafeCounter
	Restores       *cache.SafeCounter
	// InfluxManager is optional. When set, each status sample is also
	// written to the keeper_performance bucket.
	InfluxManager *influx.Manager
	AddonFolder   string
}

// catalogCounts is the shape of the catalog block in status output
type catalogCounts struct {
	Vehicles         int `json:"vehicles"`
	Barricades       int `json:"barricades"`
	Structures       int `json:"structures"`
	Items            int `json:"items"`
	TrackedInstances int `json:"trackedInstances"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	backend   storage.Backend
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// SetBackend wires the storage backend performance samples are recorded to.
func (s *Service) SetBackend(b storage.Backend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = b
}

func (s *Service) getBackend() storage.Backend {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current program status
func (s *Service) GetProgramStatus(
	queueDepths bool,
	catalogInfo bool,
	lastWrite bool,
) (output []string, sample core.PerformanceSample) {
	sess := s.deps.SessionContext.GetSession()

	depths := s.deps.Dispatcher.QueueDepths()
	pending := 0
	for _, depth := range depths {
		pending += depth
	}

	vehicles, barricades, structures, items := s.deps.Catalog.Counts()
	countsObj := catalogCounts{
		Vehicles:         vehicles,
		Barricades:       barricades,
		Structures:       structures,
		Items:            items,
		TrackedInstances: s.deps.InstanceCache.Len(),
	}

	sample = core.PerformanceSample{
		Time:            time.Now(),
		SessionID:       sess.ID,
		CaptureCount:    uint(s.deps.Captures.Value()),
		RestoreCount:    uint(s.deps.Restores.Value()),
		PendingWrites:   uint(pending),
		LastWriteMillis: float32(s.deps.WorkerManager.GetLastDBWriteDuration().Milliseconds()),
	}

	if queueDepths {
		depthsStr, err := json.MarshalIndent(depths, "", "  ")
		if err != nil {
			depthsStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(depthsStr))
	}
	if catalogInfo {
		countsStr, err := json.MarshalIndent(countsObj, "", "  ")
		if err != nil {
			countsStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(countsStr))
	}
	if lastWrite {
		lastWriteStr, err := json.MarshalIndent(sample.LastWriteMillis, "", "  ")
		if err != nil {
			lastWriteStr = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
		}
		output = append(output, string(lastWriteStr))
	}

	return output, sample
}

// ValidateHypertables validates and creates TimescaleDB hypertables
func (s *Service) ValidateHypertables(tables map[string][]string) error {
	functionName := "validateHypertables"

	all := []any{}
	s.deps.DB.Exec(`SELECT x.* FROM timescaledb_information.hypertables`).Scan(&all)
	for _, row := range all {
		s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`hypertable row: %v`, row), "DEBUG")
	}

	for table := range tables {
		hypertable := any(nil)
		s.deps.DB.Exec(`SELECT x.* FROM timescaledb_information.hypertables WHERE hypertable_name = ?`, table).Scan(&hypertable)
		if hypertable != nil {
			s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Table %s is already configured`, table), "INFO")
			continue
		}

		queryCreateHypertable := fmt.Sprintf(`
				SELECT create_hypertable('%s', 'time', chunk_time_interval => interval '1 day', if_not_exists => true);
			`, table)
		err := s.deps.DB.Exec(queryCreateHypertable).Error
		if err != nil {
			s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Failed to create hypertable for %s. Err: %s`, table, err), "ERROR")
			return err
		}
		s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Created hypertable for %s`, table), "INFO")

		queryCompressHypertable := fmt.Sprintf(`
				ALTER TABLE %s SET (
					timescaledb.compress,
					timescaledb.compress_segmentby = ?);
			`, table)
		err = s.deps.DB.Exec(
			queryCompressHypertable,
			strings.Join(tables[table], ","),
		).Error
		if err != nil {
			s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Failed to enable compression for %s. Err: %s`, table, err), "ERROR")
			return err
		}
		s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Enabled hypertable compression for %s`, table), "INFO")

		queryCompressAfterHypertable := fmt.Sprintf(`
				SELECT add_compression_policy(
					'%s',
					compress_after => interval '14 day');
			`, table)
		err = s.deps.DB.Exec(queryCompressAfterHypertable).Error
		if err != nil {
			s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Failed to set compress_after for %s. Err: %s`, table, err), "ERROR")
			return err
		}
		s.deps.LogManager.WriteLog(functionName, fmt.Sprintf(`Set compress_after for %s`, table), "INFO")
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		logger := s.deps.LogManager.Logger()
		logger.Debug("Starting status monitor goroutine", "function", "startStatusMonitor")

		statusFile, err := os.Create(s.deps.AddonFolder + "/status.txt")
		if err != nil {
			logger.Error("Error creating status file", "error", err)
		}
		defer statusFile.Close()

		for {
			select {
			case <-s.stopChan:
				return
			default:
				time.Sleep(1000 * time.Millisecond)

				sess := s.deps.SessionContext.GetSession()
				if sess.ID == 0 {
					continue
				}

				statusStr, sample := s.GetProgramStatus(true, true, true)

				if statusFile != nil {
					statusFile.Truncate(0)
					statusFile.Seek(0, 0)
					for _, line := range statusStr {
						statusFile.WriteString(line + "\n")
					}
				}

				if backend := s.getBackend(); backend != nil {
					if err := backend.RecordPerformance(&sample); err != nil {
						logger.Error("Error recording performance sample", "error", err)
					}
				}

				s.writeInfluxSample(sess.ServerName, sample)
			}
		}
	}()

	return nil
}

// writeInfluxSample mirrors a performance sample to the keeper_performance
// bucket. Dropped silently when no InfluxDB manager is configured.
func (s *Service) writeInfluxSample(serverName string, sample core.PerformanceSample) {
	if s.deps.InfluxManager == nil {
		return
	}

	point := influxdb2.NewPoint(
		"keeper_status",
		map[string]string{
			"serverName": serverName,
		},
		map[string]interface{}{
			"captureCount":     int(sample.CaptureCount),
			"restoreCount":     int(sample.RestoreCount),
			"pendingWrites":    int(sample.PendingWrites),
			"lastWriteMs":      float64(sample.LastWriteMillis),
			"trackedInstances": s.deps.InstanceCache.Len(),
		},
		sample.Time,
	)

	err := s.deps.InfluxManager.WritePoint(context.Background(), "keeper_performance", point)
	if err != nil {
		s.deps.LogManager.Logger().Error("Error writing status to InfluxDB", "error", err)
	}
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
	}
}
