// Package dedupe remembers recently claimed request ids so that a retried
// client request does not append the same thread item twice.
package dedupe
