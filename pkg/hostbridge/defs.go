package hostbridge

import (
	"github.com/motorpool/extension/v2/internal/dispatcher"
	"github.com/motorpool/extension/v2/internal/world"
)

// CallbackFunc receives async notifications pushed by the module. The host
// registers one at startup; name is the module name, function the
// notification command, data the payload parts.
type CallbackFunc func(name, function string, data ...string)

// configStruct is the central configuration used by this library
type configStruct struct {
	// version is the value returned when the host asks for the module version
	version string

	// errChan is the channel that errors will be sent to
	errChan chan []string

	// dispatcher handles event routing
	dispatcher *dispatcher.Dispatcher

	// callback receives async notifications destined for the host
	callback CallbackFunc

	// worldSink receives the host's live world handle
	worldSink func(world.World)
}

// Init method initializes the config struct
func (c *configStruct) Init() {
	c.version = "No version set"
}

// SetVersion sets the version string that will be returned when the host asks
func SetVersion(version string) {
	Config.version = version
}

// RegisterErrorChan sets the channel for error reporting
func RegisterErrorChan(channel chan []string) {
	Config.errChan = channel
}

// SetDispatcher sets the event dispatcher for handling commands
func SetDispatcher(d *dispatcher.Dispatcher) {
	Config.dispatcher = d
}

// GetDispatcher returns the configured dispatcher, or nil if not set
func GetDispatcher() *dispatcher.Dispatcher {
	return Config.dispatcher
}

// SetCallback registers the host's notification callback
func SetCallback(cb CallbackFunc) {
	Config.callback = cb
}

// RegisterWorldSink sets the receiver for the host's world handle. The module
// wires this to the worker manager at startup.
func RegisterWorldSink(sink func(world.World)) {
	Config.worldSink = sink
}

// SetWorld hands the module the host's live world. The host must call this on
// the world-owning thread before any vault command is dispatched.
func SetWorld(w world.World) {
	if Config.worldSink != nil {
		Config.worldSink(w)
	}
}

// WriteHostCallback pushes an async notification to the host. A missing
// callback drops the notification silently, the host simply never registered
// interest.
func WriteHostCallback(name, function string, data ...string) {
	if Config.callback != nil {
		Config.callback(name, function, data...)
	}
}
