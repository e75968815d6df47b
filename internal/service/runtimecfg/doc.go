// Package runtimecfg builds and persists the configuration document read by
// the launched program: an autosave flag, a cpu flags section and the ordered
// list of upstream endpoints.
//
// Operators may pass extra top-level keys through a JSONC file; they are
// copied verbatim, but never replace the keys this package owns.
package runtimecfg
