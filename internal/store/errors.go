package store

import "errors"

var (
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrNoActiveTicket        = errors.New("no active ticket")
	ErrDuplicateActiveTicket = errors.New("contact already holds an active ticket")
	// ErrTransient covers timeouts and lock contention. Callers may retry a
	// bounded number of times; the store is left unchanged.
	ErrTransient = errors.New("transient store failure")
)
