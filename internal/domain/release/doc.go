// Package release contains the immutable description of the pinned release
// to fetch and the lifecycle of the downloaded artifact.
//
// A Descriptor is built once at startup. An Artifact moves through
// absent → downloading → downloaded → verified|rejected, and only a verified
// artifact may be unpacked.
package release
