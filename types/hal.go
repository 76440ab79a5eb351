package types

// ------------------------
// Common service state (retained)
// ------------------------

type HALState struct {
	Level  string `json:"level"`  // "idle", "ready", "stopped"
	Status string `json:"status"` // freeform short code
	TSms   int64  `json:"ts_ms"`
}

// ------------------------
// Generic replies
// ------------------------

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`            // errcode value
	Detail string `json:"detail,omitempty"` // full error text
}

// ValueReply answers a "get" verb.
type ValueReply struct {
	OK    bool `json:"ok"`
	Value any  `json:"value"`
}
