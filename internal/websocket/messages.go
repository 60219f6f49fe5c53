package websocket

import "time"

type MessageType string

const (
	MessageTypeIngestionResult MessageType = "ingestion_result"
	MessageTypeSpoolFile       MessageType = "spool_file"
)

type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

type IngestionEvent struct {
	BaseMessage
	RequestID  string `json:"request_id"`
	Source     string `json:"source"`
	LogType    string `json:"log_type"`
	Records    int    `json:"records"`
	Bytes      int    `json:"bytes,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
}

type SpoolFileEvent struct {
	BaseMessage
	LogType string `json:"log_type"`
	File    string `json:"file"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}
