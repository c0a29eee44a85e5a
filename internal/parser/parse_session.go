package parser

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/motorpool/extension/v2/internal/util"
	"github.com/motorpool/extension/v2/pkg/core"
)

// ParseSessionStart parses session and world data from raw args.
// Returns parsed session + world. NO DB operations, NO cache resets, NO callbacks.
func (p *Service) ParseSessionStart(data []string) (core.Session, core.World, error) {
	var session core.Session
	var world core.World

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 2 {
		return session, world, fmt.Errorf("session start expects world and session payloads, got %d args", len(data))
	}

	// unmarshal data[0] -> world
	err := json.Unmarshal([]byte(data[0]), &world)
	if err != nil {
		return session, world, fmt.Errorf("error unmarshalling world data: %w", err)
	}

	// unmarshal data[1] -> session (via temp map, the host sends extra keys)
	sessionTemp := map[string]any{}
	if err = json.Unmarshal([]byte(data[1]), &sessionTemp); err != nil {
		return session, world, fmt.Errorf("error unmarshalling session data: %w", err)
	}

	session.StartTime = time.Now()

	session.ServerName, _ = sessionTemp["serverName"].(string)
	session.ServerProfile, _ = sessionTemp["serverProfile"].(string)
	session.Tag, _ = sessionTemp["tag"].(string)
	session.ExtensionBuild, _ = sessionTemp["extensionBuild"].(string)

	// received at extension init and saved to local memory
	session.AddonVersion = p.addonVersion
	session.ExtensionVersion = p.extensionVersion

	p.logger.Debug("Parsed session start",
		"serverName", session.ServerName,
		"worldName", world.WorldName)

	return session, world, nil
}
