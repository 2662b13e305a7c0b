// Package subscription fires event subscriptions: it matches an incoming
// message, signal, timer or compensation trigger against the waiting
// subscriptions and runs the registered event handlers.
package subscription
