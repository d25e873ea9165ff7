package logging

import (
	"encoding/json"
	"log"
	"time"
)

// Fields is one structured log event. Empty fields are dropped.
type Fields struct {
	Step      string `json:"step,omitempty"`
	Status    string `json:"status,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Email     string `json:"email,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Log writes the event as a single JSON line through the standard logger.
func Log(fields Fields) {
	fields.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.Marshal(fields)
	if err != nil {
		log.Printf("{\"status\":\"log_error\",\"error\":%q}", err.Error())
		return
	}
	log.Print(string(data))
}

// Error is shorthand for a failed step with its error attached.
func Error(step string, err error, fields Fields) {
	fields.Step = step
	fields.Status = "error"
	if err != nil {
		fields.Error = err.Error()
	}
	Log(fields)
}
