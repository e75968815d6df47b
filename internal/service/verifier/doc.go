// Package verifier computes streamed SHA-256 digests of local files and
// compares them with an expected value. A mismatch is final for the run.
package verifier
