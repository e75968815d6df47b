// Package supervisor runs the unpacked executable as a child process with
// inherited standard streams and waits for it to terminate.
//
// The child is started once and never restarted. When the run context is
// cancelled the child receives SIGTERM (os.Interrupt on Windows), and is killed if it is still alive
// after the grace period. Processes the child had started by then are killed
// once the child itself is gone, so nothing outlives the run.
package supervisor
