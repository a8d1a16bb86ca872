package interfaces

// Broadcaster is the room fan-out capability of the transport layer. Rooms
// are keyed by user id so one publish reaches every live session of that
// user. Publishing to a room with no members is a silent no-op.
type Broadcaster interface {
	// Join adds a connection to a room.
	Join(room, connID string)

	// Leave removes a connection from a room.
	Leave(room, connID string)

	// Publish sends one named event to every connection in the room.
	Publish(room, event string, payload any)
}
