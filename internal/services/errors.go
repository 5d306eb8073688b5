package services

import "fmt"

// Custom errors

type ValidationError struct{ Message string }

func (e *ValidationError) Error() string { return e.Message }

// EmptyTurnError means a submission carried neither text nor a usable
// attachment, so there is nothing to send to the model.
type EmptyTurnError struct{}

func (e *EmptyTurnError) Error() string { return "Message or files are required" }

// AttachmentError rejects a file before any processing happens. Reason is one
// of "oversize" or "type".
type AttachmentError struct {
	Name   string
	Reason string
}

func (e *AttachmentError) Error() string {
	switch e.Reason {
	case "oversize":
		return fmt.Sprintf("File %q exceeds the 10MB limit", e.Name)
	case "type":
		return fmt.Sprintf("File %q has an unsupported type. Only images, PDF, and text files are allowed", e.Name)
	}
	return fmt.Sprintf("File %q was rejected", e.Name)
}

// UpstreamError wraps a failure of the remote generation capability.
type UpstreamError struct{ Err error }

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return "Internal Server Error"
	}
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }
