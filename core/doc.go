// Package core implements the actor runtime used by every harsh component.
//
// An actor is a handler plus a mailbox drained by a single goroutine, so
// the handler's state is never touched concurrently. Other components
// reach an actor only through its Remote. Request/response is expressed
// by embedding a Reply in the command: the sender keeps the Reply and
// waits on it, the actor resolves it while processing the command.
package core
