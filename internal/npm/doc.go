// Package npm wraps the npm CLI invocations lpck depends on: packing a
// workspace into archives, installing archives without saving them, and
// running the optional prepack command.
package npm
