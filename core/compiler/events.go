package compiler

import (
	"context"
	"time"
)

// EventType names the events published on a Compiler's bus.
type EventType string

const (
	EventCompiled EventType = "query:compiled"
	EventRejected EventType = "query:rejected"
	EventFailed   EventType = "query:failed"
)

// CompileEvent describes the outcome of one Compile call. SQL and ParamCount
// are set for compiled statements; Reason and Error for the others.
type CompileEvent struct {
	ID         string        `json:"id"`
	Type       EventType     `json:"type"`
	Operation  Operation     `json:"operation"`
	Table      string        `json:"table"`
	Dialect    string        `json:"dialect"`
	SQL        string        `json:"sql,omitempty"`
	ParamCount int           `json:"paramCount,omitempty"`
	Cached     bool          `json:"cached,omitempty"`
	Reason     string        `json:"reason,omitempty"`
	Error      *string       `json:"error,omitempty"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}

type EventCallbackFunction func(ctx context.Context, event CompileEvent) error

// SubscriptionInfo describes a registered event callback.
type SubscriptionInfo struct {
	ID          string    `json:"id"`
	Event       EventType `json:"event"`
	Label       *string   `json:"label,omitempty"`
	Description *string   `json:"description,omitempty"`
	Unsubscribe func()    `json:"-"`
}

// RegisterSubscriptionOptions configures Compiler.RegisterSubscription.
type RegisterSubscriptionOptions struct {
	Event       EventType
	Label       *string
	Description *string
	Callback    EventCallbackFunction
}
