package models

import "time"

type LogType string

const (
	LogWebsocketConnected  LogType = "WEBSOCKET_CONNECTED"
	LogWebsocketDisconnect LogType = "WEBSOCKET_DISCONNECT"
	LogMessageToExaminee   LogType = "MESSAGE_TO_EXAMINEE"
	LogMessageToAll        LogType = "MESSAGE_TO_ALL_EXAMINEE"
	LogWebsocketError      LogType = "WEBSOCKET_ON_ERROR"
)

// LogContent carries the text of a message and who it went to.
type LogContent struct {
	Text             string   `json:"text"`
	RecipientUserIDs []string `json:"recipient_user_ids"`
}

// LogEntry is one append-only event record.
type LogEntry struct {
	ActorUserID string      `json:"actor_user_id"`
	LogType     LogType     `json:"log_type"`
	RoomID      string      `json:"room_id"`
	URLPath     string      `json:"url_path"`
	Content     *LogContent `json:"content,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// SignalPath is the url_path recorded for events of a room.
func SignalPath(roomID string) string {
	return "/ws/signal/" + roomID
}

type ExamineeStatus string

const (
	ExamineeConnected    ExamineeStatus = "connected"
	ExamineeDisconnected ExamineeStatus = "disconnected"
)
