// Package testutil holds helpers shared by package tests: a thread-safe log
// buffer, an in-memory project fixture and a harness running the command line
// against an afero filesystem.
package testutil
