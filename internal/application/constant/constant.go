package constant

// Ключи атрибутов для slog
const (
	Error        = "error"
	RoomID       = "room_id"
	SessionID    = "session_id"
	Name         = "name"
	MessageType  = "message_type"
	Phase        = "phase"
	Awarded      = "awarded"
	Participants = "participants"
	Port         = "port"
	Storage      = "storage"
)
