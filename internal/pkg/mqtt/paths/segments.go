package paths

// Topic segments of the fleetpeer MQTT protocol. They are the routing
// contract between the tracker and the simulator gateway.

// Downstream: tracker -> driver (commands)
const (
	// Command carries command envelopes for one driver.
	// Pattern: {root}/command/{driverID}
	Command = "command"

	// Broadcast is the identifier used for commands without a driver id.
	// Pattern: {root}/command/broadcast
	Broadcast = "broadcast"
)

// Upstream: driver -> tracker (telemetry)
const (
	// Location carries telemetry samples.
	// Payload: { "driverId": "...", "latitude": ..., "longitude": ..., "status": "...", "eta": "..." }
	// Pattern: {root}/location/{driverID}
	Location = "location"

	// Status carries the retained online flag of a gateway (will message).
	// Payload: { "online": true/false }
	// Pattern: {root}/status/{clientID}
	Status = "status"
)

// Shared subscription groups.
const (
	GroupSimulator = "fpeer-simulator"
)
