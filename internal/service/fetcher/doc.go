// Package fetcher downloads a single remote file over HTTPS, following
// redirects up to a fixed bound.
package fetcher
