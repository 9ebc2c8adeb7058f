// Package native is a portable rendition of the platform shell subsystem:
// reference-counted shell items bound to the apartment thread that created
// them, child enumerators, context menus, message-only windows, change
// notification registration backed by fsnotify, and a transaction-style file
// operation engine that reports to progress sinks through a fixed function
// table.
//
// Every object must be used from the OS thread that created it, and that
// thread must have called Initialize. Build with the shelldebug tag to turn
// failures and lifetime violations into panics.
package native
