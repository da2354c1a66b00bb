// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes and
// interrupt signals. Each command translates its flags into a call on the
// app.App facade.
package cli
