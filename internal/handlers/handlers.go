// Package handlers implements the session lifecycle commands the game host
// drives the extension through. Vault capture and restore commands are
// handled by the worker package; this package owns session start and end,
// which bracket every vault operation.
package handlers

import (
	"fmt"

	"github.com/motorpool/extension/v2/internal/api"
	"github.com/motorpool/extension/v2/internal/cache"
	"github.com/motorpool/extension/v2/internal/logging"
	"github.com/motorpool/extension/v2/internal/parser"
	"github.com/motorpool/extension/v2/internal/session"
	"github.com/motorpool/extension/v2/internal/storage"
	"github.com/motorpool/extension/v2/pkg/hostbridge"
)

// Dependencies holds all dependencies needed by the lifecycle handlers.
type Dependencies struct {
	ParserService *parser.Service
	InstanceCache *cache.InstanceCache
	LogManager    *logging.SlogManager
	// APIClient is optional. When set, exported garage manifests are
	// uploaded to the web frontend at session end.
	APIClient *api.Client

	ExtensionName string
}

// Service provides the session lifecycle handler methods.
type Service struct {
	deps         Dependencies
	ctx          *session.Context
	writeLogFunc func(functionName string, data string, level string)
	backend      storage.Backend
}

// NewService creates a new lifecycle handler service.
func NewService(deps Dependencies, ctx *session.Context) *Service {
	s := &Service{
		deps: deps,
		ctx:  ctx,
	}
	s.writeLogFunc = func(functionName string, data string, level string) {
		if deps.LogManager != nil {
			deps.LogManager.WriteLog(functionName, data, level)
		}
	}
	return s
}

// GetSessionContext returns the session context shared with the workers.
func (s *Service) GetSessionContext() *session.Context {
	return s.ctx
}

// SetBackend wires the storage backend. Nil means memory-only operation
// with no persistence.
func (s *Service) SetBackend(b storage.Backend) {
	s.backend = b
}

func (s *Service) writeLog(functionName string, data string, level string) {
	s.writeLogFunc(functionName, data, level)
}

// LogNewSession starts a recording session from the host-pushed world and
// session payloads. The backend failing to start a session is not fatal:
// the vault keeps running memory-only and the host is still signalled to
// begin sending commands.
func (s *Service) LogNewSession(data []string) error {
	functionName := ":SESSION:START:"

	sess, world, err := s.deps.ParserService.ParseSessionStart(data)
	if err != nil {
		s.writeLog(functionName, fmt.Sprintf(`Error parsing session start: %v`, err), "ERROR")
		return err
	}

	logger := s.deps.LogManager.Logger()

	if s.backend != nil {
		if err := s.backend.StartSession(&sess, &world); err != nil {
			logger.Error("Failed to start session in storage backend", "error", err)
		}
	}

	// set current session and world
	s.ctx.SetSession(&sess, &world)
	s.deps.ParserService.SetSession(&sess)

	// Provenance from the previous session is meaningless once the host
	// reassigns instance ids.
	s.deps.InstanceCache.Reset()

	// write to log
	s.writeLog(functionName, `New session logged`, "INFO")

	logger.Debug("World data",
		"worldName", world.WorldName,
		"displayName", world.DisplayName)
	logger.Debug("Session data",
		"serverName", sess.ServerName,
		"serverProfile", sess.ServerProfile,
		"tag", sess.Tag)

	// callback to the host to start sending vault commands
	hostbridge.WriteHostCallback(s.deps.ExtensionName, `:SESSION:OK:`, "OK")

	return nil
}

// LogEndSession flushes the storage backend and uploads the exported garage
// manifest when the backend produced one. A failed upload is logged but does
// not fail the session end, the export file stays on disk for manual upload.
func (s *Service) LogEndSession() error {
	functionName := ":SESSION:END:"

	logger := s.deps.LogManager.Logger()

	if s.backend != nil {
		if err := s.backend.EndSession(); err != nil {
			logger.Error("Failed to end session in storage backend", "error", err)
			return err
		}
		s.writeLog(functionName, `Session storage flushed`, "INFO")

		s.uploadExport()
	}

	hostbridge.WriteHostCallback(s.deps.ExtensionName, `:SESSION:SAVED:`, "OK")

	return nil
}

// uploadExport sends the backend's exported manifest to the web frontend.
func (s *Service) uploadExport() {
	up, ok := s.backend.(storage.Uploadable)
	if !ok || s.deps.APIClient == nil {
		return
	}

	logger := s.deps.LogManager.Logger()

	path := up.GetExportedFilePath()
	if path == "" {
		return
	}

	meta := up.GetExportMetadata()
	if err := s.deps.APIClient.Upload(path, meta); err != nil {
		logger.Error("Failed to upload garage manifest",
			"error", err,
			"path", path)
		return
	}

	logger.Info("Uploaded garage manifest",
		"path", path,
		"entries", meta.EntryCount)
}
