package parser

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/motorpool/extension/v2/pkg/core"
)

// parseUintFromFloat parses a string that may be an integer ("32") or float ("32.00") into uint64.
// The host's scripting runtime has no integer type, so the extension API may serialize numbers as floats.
func parseUintFromFloat(s string) (uint64, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 || f != float64(uint64(f)) {
		return 0, fmt.Errorf("parseUintFromFloat: %q is not a valid uint64", s)
	}
	return uint64(f), nil
}

// parseIntFromFloat parses a string that may be an integer or float into int64.
func parseIntFromFloat(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int64(f)) {
		return 0, fmt.Errorf("parseIntFromFloat: %q is not a valid int64", s)
	}
	return int64(f), nil
}

// Service provides pure []string -> core struct conversion.
// It has zero external dependencies beyond a logger.
type Service struct {
	logger  *slog.Logger
	session atomic.Pointer[core.Session]

	// Static config set at creation time
	addonVersion     string
	extensionVersion string
}

// NewService creates a new parser service with only a logger dependency
func NewService(logger *slog.Logger, addonVersion, extensionVersion string) *Service {
	p := &Service{
		logger:           logger,
		addonVersion:     addonVersion,
		extensionVersion: extensionVersion,
	}
	return p
}

// SetSession sets the current session for SessionID lookups
func (p *Service) SetSession(s *core.Session) {
	p.session.Store(s)
}

// SetAddonVersion records the addon version the host announced. The host
// sends it during preStart, before any session starts, so a plain write is
// safe here.
func (p *Service) SetAddonVersion(version string) {
	p.addonVersion = version
}

func (p *Service) getSessionID() uint {
	s := p.session.Load()
	if s == nil {
		return 0
	}
	return s.ID
}
