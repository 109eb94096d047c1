package raster

import "errors"

// ErrSourceUnavailable is the taxonomy error for any source-read failure
// that reaches exhaustion or hits a non-retryable I/O class: not-found,
// unknown-format, or access-denied (spec.md §4.3/§7).
var ErrSourceUnavailable = errors.New("raster: source unavailable")

// nonRetryableSubstrings are matched against the text of a godal/driver
// error to classify it as non-retryable, supplementing spec.md's
// not-found/unknown-format pair with the access-denied and S3-specific
// phrasing original_source/gfw_pixetl/sources.py's _file_does_not_exist
// checks for.
var nonRetryableSubstrings = []string{
	"does not exist in the file system",
	"The specified key does not exist",
	"No such file or directory",
	"not recognized as a supported file format",
	"Access Denied",
}

// isRetryable is the retry.Policy predicate for source reads: every error
// is retryable except the non-retryable I/O classes spec.md §4.3 names.
func isRetryable(err error) bool {
	return !isNonRetryable(err)
}

func isNonRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range nonRetryableSubstrings {
		if containsFold(msg, s) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	return indexFold(s, substr) >= 0
}

// indexFold is a small case-insensitive substring search, avoiding a
// strings.ToLower allocation on every error classification (called on every
// window read's error path).
func indexFold(s, substr string) int {
	n, m := len(s), len(substr)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if equalFold(s[i:i+m], substr) {
			return i
		}
	}
	return -1
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
