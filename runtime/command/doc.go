// Package command runs engine commands as units of work.
//
// Every command gets a fresh Context holding a Session (entity cache and
// write buffer) and an Agenda (FIFO of operations). The Executor runs the
// command, drains the agenda, flushes the session to the store in one
// transaction and finally dispatches the queued lifecycle events. Any error
// discards the session.
package command
