// Package idgen provides pluggable ID generation for sketchd.
//
// Stores accept a Generator, making the ID strategy a startup-time decision
// rather than a compile-time one. The convention is a UUIDv7 with a
// type-scoping prefix: "shp_" shapes, "cmd_" history entries, "job_" queued
// commands.
package idgen

import "github.com/google/uuid"

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator producing RFC 9562 UUID v7 strings —
// time-sortable and globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the generator used when a store is given none.
var Default = UUIDv7()
