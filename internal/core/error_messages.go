package core

// # Error Codes Reference
//
// This file maps run errors to user-friendly messages with codes for support
// reference. The same codes appear in report diagnostics, CLI output and HTTP
// error responses.
//
// # Run Errors (RUN001-RUN099)
//
//	RUN001 - Not enough snapshots: At least two snapshots are required
//	         Action: Select two or more files to compare
//
//	RUN002 - System busy: Too many comparisons in progress
//	         Action: Please wait a moment and try again
//
// # Key and Schema Errors (KEY001, SCH001)
//
//	KEY001 - Key column missing: The key column was not found
//	         Action: Check the key column name or pick another column
//
//	SCH001 - Schema mismatch: The two snapshots have different columns
//	         Action: Make sure both files use the same column headers
//
// # Load Errors (LOAD001-LOAD099)
//
//	LOAD001 - Source not found
//	LOAD002 - Unreadable table (bad CSV, ragged rows, empty header)
//	LOAD003 - Unsupported source type
//	LOAD004 - Database unavailable
//
// # Sink Errors (SINK001-SINK099)
//
//	SINK001 - Report could not be written
//	SINK002 - Unsupported report format
//
// # Default Error (ERR000)
//
// Typed errors are matched first with errors.Is/As. Anything else falls back
// to case-insensitive substring patterns, first match wins.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgInsufficient = UserMessage{
		Message: "At least two snapshots are required",
		Action:  "Select two or more files to compare",
		Code:    "RUN001",
	}
	msgBusy = UserMessage{
		Message: "Too many comparisons in progress",
		Action:  "Please wait a moment and try again",
		Code:    "RUN002",
	}
	msgRateLimited = UserMessage{
		Message: "Too many requests",
		Action:  "Please slow down and retry after a minute",
		Code:    "RUN003",
	}
	msgMissingKey = UserMessage{
		Message: "The key column was not found",
		Action:  "Check the key column name or pick another column",
		Code:    "KEY001",
	}
	msgSchema = UserMessage{
		Message: "The two snapshots have different columns",
		Action:  "Make sure both files use the same column headers",
		Code:    "SCH001",
	}
	msgNotFound = UserMessage{
		Message: "Source not found",
		Action:  "Check the file path or table name",
		Code:    "LOAD001",
	}
	msgUnreadable = UserMessage{
		Message: "The table could not be read",
		Action:  "Ensure the file is comma-separated with one header row and consistent columns",
		Code:    "LOAD002",
	}
	msgUnsupportedSource = UserMessage{
		Message: "Unsupported source type",
		Action:  "Use a CSV file or a postgres: source",
		Code:    "LOAD003",
	}
	msgDatabase = UserMessage{
		Message: "Unable to reach the database",
		Action:  "Please try again in a few moments",
		Code:    "LOAD004",
	}
	msgSink = UserMessage{
		Message: "The report could not be written",
		Action:  "Check that the output location exists and is writable",
		Code:    "SINK001",
	}
	msgReportNotFound = UserMessage{
		Message: "Report not found",
		Action:  "It may have expired from the cache; run the comparison again",
		Code:    "RPT001",
	}
	msgFormat = UserMessage{
		Message: "Unsupported report format",
		Action:  "Use one of: text, json, yaml, html",
		Code:    "SINK002",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns covers errors that reach MapError without a typed wrapper.
// More specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "report not found", msg: msgReportNotFound},
	{pattern: "unsupported source", msg: msgUnsupportedSource},
	{pattern: "unknown format", msg: msgFormat},
	{pattern: "no such file", msg: msgNotFound},
	{pattern: "does not exist", msg: msgNotFound},
	{pattern: "connection refused", msg: msgDatabase},
	{pattern: "database unavailable", msg: msgDatabase},
	{pattern: "too many comparisons", msg: msgBusy},
	{pattern: "rate limit exceeded", msg: msgRateLimited},
	{pattern: "parse error", msg: msgUnreadable},
	{pattern: "wrong number of fields", msg: msgUnreadable},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Example:
//
//	msg := MapError(ErrInsufficientSnapshots)
//	// msg.Code == "RUN001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	switch {
	case errors.Is(err, ErrInsufficientSnapshots):
		return msgInsufficient
	case errors.Is(err, ErrTooManyRuns):
		return msgBusy
	case errors.Is(err, ErrMissingKeyColumn):
		return msgMissingKey
	case errors.Is(err, ErrSchemaMismatch):
		return msgSchema
	}

	var le *LoadError
	if errors.As(err, &le) {
		return mapLoadError(le)
	}
	var se *SinkError
	if errors.As(err, &se) {
		if strings.Contains(strings.ToLower(se.Error()), "unknown format") {
			return msgFormat
		}
		return msgSink
	}

	if m, ok := matchPattern(err.Error()); ok {
		return m
	}
	return defaultMessage
}

func mapLoadError(le *LoadError) UserMessage {
	if m, ok := matchPattern(le.Error()); ok {
		return m
	}
	return msgUnreadable
}

func matchPattern(s string) (UserMessage, bool) {
	s = strings.ToLower(s)
	for _, ep := range errorPatterns {
		if strings.Contains(s, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
