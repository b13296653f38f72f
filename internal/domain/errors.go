package domain

import (
	"errors"
	"fmt"
)

// ErrorType classifies a pipeline failure.
type ErrorType string

const (
	ErrorTypeDocumentOpen  ErrorType = "document_open"
	ErrorTypeImageWrite    ErrorType = "image_write"
	ErrorTypeSerialization ErrorType = "serialization"
	ErrorTypeExtraction    ErrorType = "extraction"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeConfig        ErrorType = "config"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// DocumentOpenError reports a missing, unreadable or structurally invalid PDF.
func DocumentOpenError(message string, err error) *DomainError {
	return NewError(ErrorTypeDocumentOpen, message, err)
}

// ImageWriteError reports a failure creating the images directory or writing an image file.
func ImageWriteError(message string, err error) *DomainError {
	return NewError(ErrorTypeImageWrite, message, err)
}

// SerializationError reports a failure encoding or writing the output document.
func SerializationError(message string, err error) *DomainError {
	return NewError(ErrorTypeSerialization, message, err)
}

func ExtractionError(message string, err error) *DomainError {
	return NewError(ErrorTypeExtraction, message, err)
}

func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

// TypeOf returns the ErrorType of the first DomainError in err's chain,
// or the empty string if there is none.
func TypeOf(err error) ErrorType {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Type
	}
	return ""
}

// IsType reports whether err's chain contains a DomainError of type t.
func IsType(err error, t ErrorType) bool {
	return err != nil && TypeOf(err) == t
}
