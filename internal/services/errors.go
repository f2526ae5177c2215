// Package services defines the business logic for digest settings, the
// acquisition/summarize/deliver pipeline, and scheduling. This file
// centralizes common service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import "errors"

// Digest-related errors.
var (
	// ErrSettingsNotFound indicates that no digest settings row exists for
	// the requested owner. Read paths normally create the row on first
	// access, so this mostly surfaces from racy updates.
	ErrSettingsNotFound = errors.New("settings not found")

	// ErrInvalidSetting is returned when a settings update contains a value
	// outside the allowed set or range. The wrapping error names the field.
	ErrInvalidSetting = errors.New("invalid setting value")

	// ErrBriefingNotFound indicates that the requested briefing does not
	// exist or is not accessible to the current user.
	ErrBriefingNotFound = errors.New("briefing not found")

	// ErrRunNotFound indicates that the requested acquisition run does not
	// exist or is not accessible to the current user.
	ErrRunNotFound = errors.New("run not found")

	// ErrEmptyBatch is returned when the summarizer is invoked with zero
	// posts; callers are expected to check the window before summarizing.
	ErrEmptyBatch = errors.New("no posts to summarize")

	// ErrPipelineBusy is returned when a pipeline run is requested for an
	// owner that already has one in flight.
	ErrPipelineBusy = errors.New("pipeline already running for this user")

	// ErrRecentBriefing is returned when a pipeline run is requested for an
	// owner whose latest briefing is newer than the duplicate guard window.
	ErrRecentBriefing = errors.New("a recent briefing already exists")
)
