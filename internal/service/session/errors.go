package session

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration covers user-correctable input problems such as a
	// missing agent id or credential.
	ErrConfiguration = errors.New("invalid session configuration")
	// ErrPermission means the microphone could not be acquired.
	ErrPermission = errors.New("microphone permission denied")
	// ErrConnection means the transport rejected or dropped the session.
	ErrConnection = errors.New("session connection failed")
	// ErrSessionActive rejects Start while a session is connecting or connected.
	ErrSessionActive = errors.New("session already active")
	// ErrStartCancelled is returned by a Start that was overtaken by End.
	ErrStartCancelled = errors.New("session start cancelled")
)

// PermissionError is returned when microphone access stays denied after a
// re-request. It matches both ErrPermission and ErrConfiguration.
type PermissionError struct{}

func (e *PermissionError) Error() string {
	return "microphone access is required to start a voice session"
}

func (e *PermissionError) Is(target error) bool {
	return target == ErrPermission || target == ErrConfiguration
}

// ConnectionError wraps a transport failure. It matches ErrConnection.
type ConnectionError struct {
	Cause error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to agent: %v", e.Cause)
}

func (e *ConnectionError) Unwrap() error { return e.Cause }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }
