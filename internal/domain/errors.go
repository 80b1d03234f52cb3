package domain

import "errors"

var (
	// ErrUnauthenticated: no or invalid credential, terminal for the session.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrAuthTimeout: credential not presented within the auth window, terminal.
	ErrAuthTimeout = errors.New("authentication timed out")
	// ErrRoomNotFound: the room id does not exist, client may retry with a valid id.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotMember: sender must join the room before sending.
	ErrNotMember = errors.New("not a member of the room")
	// ErrAlreadyInRoom: session already occupies a different room.
	ErrAlreadyInRoom = errors.New("already in a room")
	// ErrPersistenceUnavailable: durable append failed, client retries with the
	// same message id.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrSlowConsumer: one subscriber's outbound queue is full. Internal only,
	// never surfaced as a sender error.
	ErrSlowConsumer = errors.New("slow consumer")
	// ErrInvalidMessage: empty or over-length content, or missing message id.
	ErrInvalidMessage = errors.New("invalid message")
)

// ErrorCode maps a protocol error to its stable wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "UNAUTHENTICATED"
	case errors.Is(err, ErrAuthTimeout):
		return "AUTH_TIMEOUT"
	case errors.Is(err, ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, ErrNotMember):
		return "NOT_MEMBER"
	case errors.Is(err, ErrAlreadyInRoom):
		return "ALREADY_IN_ROOM"
	case errors.Is(err, ErrPersistenceUnavailable):
		return "PERSISTENCE_UNAVAILABLE"
	case errors.Is(err, ErrInvalidMessage):
		return "INVALID_MESSAGE"
	default:
		return "INTERNAL"
	}
}
