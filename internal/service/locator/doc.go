// Package locator finds the expected executable inside an unpacked archive
// and makes it runnable.
//
// The search walks the tree with an explicit stack, so archive depth does not
// grow the goroutine stack. The first regular file with a matching name wins;
// duplicates deeper in traversal order are ignored.
package locator
