package classify

import (
	"errors"
	"net"
	"net/url"
	"path/filepath"
	"strings"
)

var (
	// ErrNoHost is returned when a URL has no recoverable host.
	ErrNoHost = errors.New("url has no host")

	// ErrUnsafeFilename is returned when a URL would map to a path outside
	// the directory it is stored under.
	ErrUnsafeFilename = errors.New("url does not map to a local file name")
)

// URLParts holds the pieces of a URL the classifier works with.
type URLParts struct {
	Host  string // lowercased, without port
	Path  string // always begins with "/"
	Query string
}

// SplitURL splits a URL into host, path, and query. Scheme-less input such as
// "example.com/page" is accepted when the first segment looks like a host.
func SplitURL(raw string) (URLParts, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return URLParts{}, ErrNoHost
	}

	if !strings.Contains(raw, "://") {
		first := raw
		if i := strings.IndexAny(first, "/?#"); i >= 0 {
			first = first[:i]
		}
		if !strings.Contains(first, ".") && first != "localhost" {
			return URLParts{}, ErrNoHost
		}
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return URLParts{}, err
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return URLParts{}, ErrNoHost
	}

	path := u.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return URLParts{Host: host, Path: path, Query: u.RawQuery}, nil
}

// Host returns the lowercased hostname of a URL, or "" if it has none.
func Host(raw string) string {
	parts, err := SplitURL(raw)
	if err != nil {
		return ""
	}
	return parts.Host
}

// CleanDomain returns the second-level label of a host, ignoring a leading
// "www.". "blog.example.co" becomes "example".
func CleanDomain(host string) string {
	host = strings.TrimPrefix(host, "www.")
	labels := strings.Split(host, ".")
	if len(labels) >= 2 {
		return labels[len(labels)-2]
	}
	return host
}

// isIP reports whether the host is an IPv4 or IPv6 literal.
func isIP(host string) bool {
	return net.ParseIP(strings.Trim(host, "[]")) != nil
}

// MakeFilename maps a URL to a relative markdown path of the form
// "<domain>/<path_with_underscores>.md". The root path maps to
// "<domain>/<domain>.md".
func MakeFilename(raw string) (string, error) {
	parts, err := SplitURL(raw)
	if err != nil {
		return "", err
	}

	domain := strings.TrimPrefix(parts.Host, "www.")
	path := strings.TrimSuffix(parts.Path, "/")

	var name string
	if path == "" {
		name = domain + "/" + domain + ".md"
	} else {
		path = strings.ReplaceAll(strings.TrimPrefix(path, "/"), "/", "_")
		name = domain + "/" + path + ".md"
	}

	// Hosts such as ".." parse but would climb out of the storage directory
	if domain == "." || domain == ".." || !filepath.IsLocal(filepath.FromSlash(name)) {
		return "", ErrUnsafeFilename
	}
	return name, nil
}
