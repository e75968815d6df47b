// Package extractor unpacks release archives with an external tar utility.
//
// A missing utility (ErrToolUnavailable) is reported separately from a failed
// extraction (ErrExtractionFailed) and from an archive that is not a gzip
// stream at all (ErrUnsupportedArchive).
package extractor
