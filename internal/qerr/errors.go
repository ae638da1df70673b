// Package qerr defines the error kinds surfaced by the chain-to-model compiler.
//
// Every failure aborts the current parse; no partial query model is ever
// returned. Callers distinguish kinds with the Is* helpers, which use
// errors.As and therefore see through wrapping.
//
// Failures raised by host code during literal folding are not represented
// here: they reach the caller unchanged.
package qerr

import (
	"errors"
	"fmt"
	"strings"
)

// Code categorizes compiler errors.
type Code string

const (
	// CodeUnsupportedOperation indicates a call signature no node kind
	// recognizes, or a node kind rejecting the overload presented.
	CodeUnsupportedOperation Code = "UNSUPPORTED_OPERATION"

	// CodeMalformedReference indicates an item placeholder or query-source
	// reference that cannot be resolved against any clause in scope.
	CodeMalformedReference Code = "MALFORMED_REFERENCE"

	// CodeRewriteRuleMismatch indicates a rewrite rule invoked on a node
	// whose shape does not match the kind it was registered for.
	CodeRewriteRuleMismatch Code = "REWRITE_RULE_MISMATCH"
)

// Error is a compiler error with structured diagnostic fields.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Signature is the offending call signature (unsupported operations).
	Signature string

	// Position is the 1-based index of the operation in its chain,
	// counted from the source. Zero when not applicable.
	Position int

	// Chain renders the chain the operation belongs to.
	Chain string

	// Placeholder is the unresolved placeholder (malformed references).
	Placeholder string

	// Expression renders the expression containing the placeholder.
	Expression string

	// Rule names the rewrite rule (rule mismatches).
	Rule string
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", e.Code, e.Message)
	switch e.Code {
	case CodeUnsupportedOperation:
		if e.Signature != "" {
			fmt.Fprintf(&sb, " (signature=%s", e.Signature)
			if e.Position > 0 {
				fmt.Fprintf(&sb, ", position=%d", e.Position)
			}
			sb.WriteByte(')')
		}
		if e.Chain != "" {
			fmt.Fprintf(&sb, " in %s", e.Chain)
		}
	case CodeMalformedReference:
		if e.Placeholder != "" {
			fmt.Fprintf(&sb, " (placeholder=%s)", e.Placeholder)
		}
		if e.Expression != "" {
			fmt.Fprintf(&sb, " in %s", e.Expression)
		}
	case CodeRewriteRuleMismatch:
		if e.Rule != "" {
			fmt.Fprintf(&sb, " (rule=%s)", e.Rule)
		}
	}
	return sb.String()
}

// NewUnsupportedOperation creates an error for an unrecognized or rejected
// call signature at the given position of chain.
func NewUnsupportedOperation(signature string, position int, chain, message string) *Error {
	return &Error{
		Code:      CodeUnsupportedOperation,
		Message:   message,
		Signature: signature,
		Position:  position,
		Chain:     chain,
	}
}

// NewMalformedReference creates an error for a dangling placeholder.
func NewMalformedReference(placeholder, expression, message string) *Error {
	return &Error{
		Code:        CodeMalformedReference,
		Message:     message,
		Placeholder: placeholder,
		Expression:  expression,
	}
}

// NewRewriteRuleMismatch creates an error for a misregistered rewrite rule.
func NewRewriteRuleMismatch(rule, message string) *Error {
	return &Error{
		Code:    CodeRewriteRuleMismatch,
		Message: message,
		Rule:    rule,
	}
}

// CodeOf returns the code of a compiler error, or "" for foreign errors.
func CodeOf(err error) Code {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// IsUnsupportedOperation reports whether err is an unsupported operation error.
func IsUnsupportedOperation(err error) bool {
	return CodeOf(err) == CodeUnsupportedOperation
}

// IsMalformedReference reports whether err is a malformed reference error.
func IsMalformedReference(err error) bool {
	return CodeOf(err) == CodeMalformedReference
}

// IsRewriteRuleMismatch reports whether err is a rewrite rule mismatch.
func IsRewriteRuleMismatch(err error) bool {
	return CodeOf(err) == CodeRewriteRuleMismatch
}
