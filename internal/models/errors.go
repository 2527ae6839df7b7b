package models

import "errors"

// Configuration errors: fatal at registration/startup time, per spec.md §7.
var (
	ErrDuplicateTaskName  = errors.New("task name already registered")
	ErrTaskQueueMismatch  = errors.New("task definition queue does not match registry queue")
	ErrReservedQueue      = errors.New(ReservedQueue + " is a reserved queue name")
	ErrMigrationTampered  = errors.New("applied migration hash does not match source")
	ErrHandlerNotFound    = errors.New("no handler registered for task")
	ErrEventHandlerExists = errors.New("event subscription already bound to this task name")
)
