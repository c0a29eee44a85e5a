package parser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/motorpool/extension/v2/internal/geo"
	"github.com/motorpool/extension/v2/internal/util"
	"github.com/motorpool/extension/v2/pkg/core"
)

// ParseSaveRequest parses a vault save command and returns a SaveRequest.
// Sets InstanceID directly from the parsed id (no world lookup).
func (p *Service) ParseSaveRequest(data []string) (SaveRequest, error) {
	var req SaveRequest

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 5 {
		return req, fmt.Errorf("save request expects 5 args, got %d", len(data))
	}

	instanceID, err := parseUintFromFloat(data[0])
	if err != nil {
		return req, fmt.Errorf("error converting instanceId to uint: %w", err)
	}
	req.InstanceID = uint32(instanceID)

	actorID, err := parseUintFromFloat(data[1])
	if err != nil {
		return req, fmt.Errorf("error converting actorIdentity to uint: %w", err)
	}
	req.ActorIdentity = actorID

	// parse pos from a host string
	pos := data[2]
	pos = strings.TrimPrefix(pos, "[")
	pos = strings.TrimSuffix(pos, "]")
	position, err := geo.Position3DFromString(pos)
	if err != nil {
		jsonData, _ := json.Marshal(data)
		p.logger.Error("Error converting position", "data", string(jsonData), "error", err)
		return req, err
	}
	req.Position = position

	req.Label = data[3]

	replaces, err := parseUintFromFloat(data[4])
	if err != nil {
		return req, fmt.Errorf("error converting replacesEntry to uint: %w", err)
	}
	req.ReplacesEntry = uint(replaces)

	return req, nil
}

// ParseRestoreRequest parses a vault restore command and returns a RestoreRequest.
// A zero claimant owner means the stored ownership is kept and Claimant stays nil.
func (p *Service) ParseRestoreRequest(data []string) (RestoreRequest, error) {
	var req RestoreRequest

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 5 {
		return req, fmt.Errorf("restore request expects 5 args, got %d", len(data))
	}

	entryID, err := parseUintFromFloat(data[0])
	if err != nil {
		return req, fmt.Errorf("error converting entryId to uint: %w", err)
	}
	req.EntryID = uint(entryID)

	owner, err := parseUintFromFloat(data[1])
	if err != nil {
		return req, fmt.Errorf("error converting claimant owner to uint: %w", err)
	}
	req.ActorIdentity = owner

	group, err := parseUintFromFloat(data[2])
	if err != nil {
		return req, fmt.Errorf("error converting claimant group to uint: %w", err)
	}

	if owner != 0 {
		req.Claimant = &core.Identity{Owner: owner, Group: group}
	}

	rebind, err := strconv.ParseBool(data[3])
	if err != nil {
		return req, fmt.Errorf("error converting rebind to bool: %w", err)
	}
	req.Rebind = rebind

	// parse pos from a host string
	pos := data[4]
	pos = strings.TrimPrefix(pos, "[")
	pos = strings.TrimSuffix(pos, "]")
	position, err := geo.Position3DFromString(pos)
	if err != nil {
		jsonData, _ := json.Marshal(data)
		p.logger.Error("Error converting position", "data", string(jsonData), "error", err)
		return req, err
	}
	req.Position = position

	return req, nil
}

// ParseListRequest parses a vault listing command.
func (p *Service) ParseListRequest(data []string) (ListRequest, error) {
	var req ListRequest

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 1 {
		return req, fmt.Errorf("list request expects 1 arg, got %d", len(data))
	}

	owner, err := parseUintFromFloat(data[0])
	if err != nil {
		return req, fmt.Errorf("error converting ownerIdentity to uint: %w", err)
	}
	req.OwnerIdentity = owner

	return req, nil
}

// ParseDeleteRequest parses a vault delete command.
func (p *Service) ParseDeleteRequest(data []string) (DeleteRequest, error) {
	var req DeleteRequest

	// fix received data
	for i, v := range data {
		data[i] = util.FixEscapeQuotes(util.TrimQuotes(v))
	}

	if len(data) < 2 {
		return req, fmt.Errorf("delete request expects 2 args, got %d", len(data))
	}

	entryID, err := parseUintFromFloat(data[0])
	if err != nil {
		return req, fmt.Errorf("error converting entryId to uint: %w", err)
	}
	req.EntryID = uint(entryID)

	actorID, err := parseUintFromFloat(data[1])
	if err != nil {
		return req, fmt.Errorf("error converting actorIdentity to uint: %w", err)
	}
	req.ActorIdentity = actorID

	return req, nil
}
