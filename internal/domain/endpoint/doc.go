// Package endpoint describes the upstream services the launched program
// connects to. The order of a Set is its priority: the first entry is the
// primary, the rest are fallbacks tried by the launched program itself.
package endpoint
