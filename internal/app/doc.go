// Package app contains the core application logic. It defines the App
// facade, its configuration and one method per command, decoupled from any
// specific entrypoint like a CLI.
//
// An App owns the logger, the process runner and the script runtime. The
// manifest is loaded lazily on first use, so commands that do not need it
// (clean, init, publish) work without an anda.hcl.
package app
