// Package services provides frontend-agnostic business logic for the
// dashboard: the upload tracker, the file catalog and the version
// retriever. Nothing here prints; outcomes are reported through return
// values, the event bus and a Notifier.
package services

import (
	"errors"
)

// Service errors
var (
	// ErrVersionDownloadDisabled is returned when no version API is configured.
	ErrVersionDownloadDisabled = errors.New("version download is not available: no version API endpoint configured")
	// ErrInvalidTransition is returned by a delete confirmation that already settled.
	ErrInvalidTransition = errors.New("invalid confirmation transition")
	// ErrTrackerClosed is returned when files are submitted after Close.
	ErrTrackerClosed = errors.New("upload tracker is closed")
)

// ToastLevel is the severity of a user-facing notification.
type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastInfo    ToastLevel = "info"
)

// Notifier shows short-lived user notifications.
type Notifier interface {
	Notify(level ToastLevel, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(level ToastLevel, message string)

// Notify calls f.
func (f NotifierFunc) Notify(level ToastLevel, message string) {
	f(level, message)
}

type nopNotifier struct{}

func (nopNotifier) Notify(ToastLevel, string) {}
