// Package agenda implements the operations planned on a command agenda and
// the execution tree manipulations they rely on.
//
// Operations never call each other directly: each one mutates the session
// and plans follow-up operations, so walking a graph of any depth never
// grows the stack.
package agenda
