package resolver

import (
	"fmt"
	"regexp"
	"strings"
)

// Resolver maps an inbound request path to the upstream signing path. The
// resolved path is used both inside the canonical request and on the wire,
// so the two can never drift apart. Pure; safe for concurrent use.
type Resolver struct {
	bucket      string
	servicePath string
	stripRe     *regexp.Regexp
}

// CompileStripPattern compiles the optional secondary strip pattern as a
// regexp anchored at the start of the path. A literal prefix is the
// degenerate case. An empty pattern disables the step.
func CompileStripPattern(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	if !strings.HasPrefix(pattern, "^") {
		pattern = "^" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid strip_path_pattern %q: %w", pattern, err)
	}
	return re, nil
}

// New creates a resolver for the configured bucket, service path prefix
// and secondary strip pattern. An invalid pattern is a configuration
// error; it must fail startup, never a request.
func New(bucket, servicePath, stripPattern string) (*Resolver, error) {
	re, err := CompileStripPattern(stripPattern)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		bucket:      bucket,
		servicePath: servicePath,
		stripRe:     re,
	}, nil
}

// Resolve applies route stripping, the secondary strip pattern, bucket
// injection and slash collapsing, then returns the signing path and the
// full request URI (path plus raw query). Resolving an already-resolved
// path does not duplicate the bucket segment.
func (r *Resolver) Resolve(path string, route Route, rawQuery string) (string, string) {
	// Route stripping: only the first declared prefix counts, and only an
	// exact match at the start of the path. No partial matching.
	if route.StripPath && len(route.Paths) > 0 {
		prefix := route.Paths[0]
		if prefix != "" && strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			if path == "" {
				path = "/"
			}
		}
	}

	// Secondary strip pattern, applied once at the start of the string.
	if r.stripRe != nil {
		if m := r.stripRe.FindStringIndex(path); m != nil {
			path = path[m[1]:]
		}
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	if r.bucket != "" {
		bucketPrefix := "/" + r.bucket
		if hasBucketSegment(path, bucketPrefix) {
			path = r.servicePath + path
		} else {
			path = r.servicePath + bucketPrefix + path
		}
	} else {
		path = r.servicePath + path
	}

	path = collapseSlashes(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	uri := path
	if rawQuery != "" {
		uri += "?" + rawQuery
	}
	return path, uri
}

// hasBucketSegment reports whether path already starts with the bucket as
// a whole path segment. Bucket "abc" must not match "/abcdef".
func hasBucketSegment(path, bucketPrefix string) bool {
	if !strings.HasPrefix(path, bucketPrefix) {
		return false
	}
	rest := path[len(bucketPrefix):]
	return rest == "" || strings.HasPrefix(rest, "/")
}

// collapseSlashes reduces any run of consecutive slashes to a single one.
func collapseSlashes(s string) string {
	if !strings.Contains(s, "//") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev byte
	for i := 0; i < len(s); i++ {
		if s[i] == '/' && prev == '/' {
			continue
		}
		b.WriteByte(s[i])
		prev = s[i]
	}
	return b.String()
}
