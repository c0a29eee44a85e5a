// internal/storage/memory/export.go
package memory

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/motorpool/extension/v2/internal/storage/memory/export/v1"
	"github.com/motorpool/extension/v2/pkg/core"
)

// exportJSON writes the vault state to a v1 manifest file. Caller must hold
// the write lock.
func (b *Backend) exportJSON() error {
	if b.session == nil {
		return errors.New("no session to end")
	}

	manifest, err := v1.Build(b.buildVaultData())
	if err != nil {
		return err
	}

	// Build filename
	serverName := strings.ReplaceAll(b.session.ServerName, " ", "_")
	serverName = strings.ReplaceAll(serverName, ":", "_")
	timestamp := b.session.StartTime.Format("20060102_150405")

	var filename string
	if b.cfg.CompressOutput {
		filename = fmt.Sprintf("%s_%s.json.gz", serverName, timestamp)
	} else {
		filename = fmt.Sprintf("%s_%s.json", serverName, timestamp)
	}

	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := b.writeGzipJSON(outputPath, manifest); err != nil {
			return err
		}
	} else {
		if err := b.writeJSON(outputPath, manifest); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

// buildVaultData collects the current vault state for the manifest builder.
// Caller must hold at least the read lock.
func (b *Backend) buildVaultData() v1.VaultData {
	entries := make([]v1.EntryData, 0, len(b.entries))
	for _, record := range b.entries {
		entries = append(entries, v1.EntryData{
			Entry:    record.Entry,
			Snapshot: record.Snapshot,
		})
	}

	return v1.VaultData{
		Session:       b.session,
		World:         b.world,
		Entries:       entries,
		CaptureEvents: b.captureEvents,
		RestoreEvents: b.restoreEvents,
	}
}

func (b *Backend) writeJSON(path string, manifest *v1.Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(manifest)
}

func (b *Backend) writeGzipJSON(path string, manifest *v1.Manifest) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(manifest)
}

// GetExportedFilePath returns the path of the last exported manifest, empty
// when no export has happened yet.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the current vault state for the web uploader.
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.session == nil {
		return core.UploadMetadata{}
	}

	meta := core.UploadMetadata{
		ServerName: b.session.ServerName,
		Tag:        b.session.Tag,
		SavedAt:    b.session.StartTime,
		EntryCount: len(b.entries),
	}
	if b.world != nil {
		meta.WorldName = b.world.WorldName
	}
	return meta
}
