package compiler

import "fmt"

// AuthorMessage is shown to an author whose script could not be compiled.
const AuthorMessage = "The AI could not understand the lesson structure. Please check your tags and try again."

// CompileError means the oracle output could not be turned into a usable
// step sequence. Nothing derived from the failed attempt may be stored.
type CompileError struct {
	Reason string
	Err    error
}

func (e *CompileError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("compile script: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("compile script: %s", e.Reason)
}

func (e *CompileError) Unwrap() error { return e.Err }
