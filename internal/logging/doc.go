// Package logging provides structured logging for havend.
//
// Wraps Zap with a small config surface (level + format) and named
// child loggers per subsystem. Console format is intended for local
// development, JSON for anything that ships logs.
package logging
