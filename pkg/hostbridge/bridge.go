// Package hostbridge is the command surface the embedding game host drives
// the module through: plain string commands, positional string args, string
// responses in the host's bracket format.
package hostbridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/motorpool/extension/v2/internal/dispatcher"
)

// ErrNoHandler is returned when no handler is registered for a command.
var ErrNoHandler = errors.New("no handler registered")

// Config defines how calls into this module will be handled
var Config configStruct = configStruct{}

func init() {
	Config.Init()
}

// Version returns the module version reported to the host.
func Version() string {
	return Config.version
}

// Call handles a plain command from the host, in the format "command" or
// "command|payload".
func Call(command string) (string, error) {
	// Handle built-in timestamp command
	if command == ":TIMESTAMP:" {
		return getTimestamp(), nil
	}

	if Config.dispatcher == nil {
		return fmt.Sprintf(`["error", "%s", "no handler registered"]`, command), ErrNoHandler
	}

	// check both the full command and the substring before any payload
	commandSubstr := strings.Split(command, "|")[0]
	dispatchCommand := command
	if !Config.dispatcher.HasHandler(command) && Config.dispatcher.HasHandler(commandSubstr) {
		dispatchCommand = commandSubstr
	}

	if !Config.dispatcher.HasHandler(dispatchCommand) {
		return fmt.Sprintf(`["error", "%s", "no handler registered"]`, command), ErrNoHandler
	}

	event := dispatcher.Event{
		Command:   dispatchCommand,
		Args:      []string{command}, // pass full command as arg for legacy compat
		Timestamp: time.Now(),
	}

	result, err := Config.dispatcher.Dispatch(event)
	return formatDispatchResponse(dispatchCommand, result, err), err
}

// CallArgs handles a command with positional args from the host.
func CallArgs(command string, args []string) (string, error) {
	if Config.dispatcher == nil || !Config.dispatcher.HasHandler(command) {
		return fmt.Sprintf(`["error", "%s", "no handler registered"]`, command), ErrNoHandler
	}

	event := dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	}

	result, err := Config.dispatcher.Dispatch(event)
	return formatDispatchResponse(command, result, err), err
}

// formatDispatchResponse formats the dispatcher result for the host. Strings
// pass through unescaped; everything else marshals to JSON.
func formatDispatchResponse(command string, result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", "%s"]`, err.Error())
	}
	if result == nil {
		return `["ok"]`
	}
	switch v := result.(type) {
	case string:
		return fmt.Sprintf(`["ok", "%s"]`, v)
	default:
		out, jsonErr := json.Marshal(v)
		if jsonErr != nil {
			return fmt.Sprintf(`["ok", "%v"]`, v)
		}
		return fmt.Sprintf(`["ok", %s]`, out)
	}
}

func getTimestamp() string {
	return fmt.Sprintf("%d", time.Now().UTC().UnixNano())
}
