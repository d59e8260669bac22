package observability

import "runtime/debug"

// RecoverPanic recovers from a panic and logs it with the stack trace.
// Intended for defer statements in worker goroutines so one bad document
// can not take the pipeline down. The panic is not re-raised.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
