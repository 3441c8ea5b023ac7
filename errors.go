// Package ktracepoint implements a kernel-grade tracepoint runtime: a
// patchable static-branch event site, a typed schema model, a tracepoint
// registry, a bounded raw trace pipe, and a filter engine, modeled after
// Linux's TRACE_EVENT infrastructure.
package ktracepoint

import (
	"errors"
	"fmt"
)

// InitFailure is returned when a tracepoint or subsystem fails to register,
// typically because of a duplicate (system, name) pair.
type InitFailure struct {
	System string
	Name   string
	Reason string
}

func (e *InitFailure) Error() string {
	return fmt.Sprintf("ktracepoint: init failure for %s/%s: %s", e.System, e.Name, e.Reason)
}

// FilterError describes why a filter expression could not be compiled or
// applied against an event's schema.
type FilterError struct {
	Expr   string
	Reason string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("ktracepoint: filter error in %q: %s", e.Expr, e.Reason)
}

// PatchFailure describes a failed code patch: the operation that failed and
// why. codepatch.ScratchPatcher does not use it; it returns the wrapped
// syscall error instead.
type PatchFailure struct {
	Op     string
	Reason string
}

func (e *PatchFailure) Error() string {
	return fmt.Sprintf("ktracepoint: patch failure during %s: %s", e.Op, e.Reason)
}

// Overflow is not returned as an error from the hot emission path (records
// are silently dropped per the pipe's eviction policy); it exists so
// callers that want to observe drops can use errors.Is against it from a
// counter-reporting hook.
var Overflow = errors.New("ktracepoint: trace pipe overflow")

// InvalidControlInput is returned by registry pseudo-file writers when the
// supplied control text does not match the expected grammar (e.g. writing
// something other than "0" or "1" to an enable file).
type InvalidControlInput struct {
	File  string
	Value string
}

func (e *InvalidControlInput) Error() string {
	return fmt.Sprintf("ktracepoint: invalid control input for %s: %q", e.File, e.Value)
}
