// Package pipeline fetches, verifies, unpacks, configures and launches the
// pinned release inside a throwaway workspace.
//
// The stages run strictly one after another and every failure ends the run.
// The workspace is removed on every exit path, including an interrupt while
// the child is running. Execution of the downloaded program is conditioned on
// the archive digest matching the configured one.
package pipeline
