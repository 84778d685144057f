// Package server locates the language server binary and builds the
// environment it is launched with.
//
// Discovery searches in the following order:
//  1. Explicit path in Config.ServerPath (if provided)
//  2. System PATH
//  3. Common installation directories (/usr/local/bin, /usr/bin,
//     ~/.cargo/bin, ~/.local/bin)
//
// After a binary is found its version is probed with --version and logged.
// The probe never fails discovery.
package server
