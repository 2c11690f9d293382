package handle

import (
	"fmt"
	"net/url"
	"postwatch/internal/domain"
	"regexp"
	"slices"
	"strings"

	"mvdan.cc/xurls/v2"
)

var handleRe = regexp.MustCompile(`^\w{1,15}$`)

var defaultProfileHosts = []string{"x.com", "twitter.com"}

// Normalize turns operator input into a stored handle. It accepts "alice",
// "@alice" and profile URLs such as "https://x.com/alice". URLs are only
// read on x.com, twitter.com and the hosts of profileBases (for example the
// permalink base and the Nitter instance). Case is kept as typed because the
// watch-set is case-sensitive.
func Normalize(raw string, profileBases ...string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", domain.ErrInvalidHandle)
	}

	candidate := raw
	if u := xurls.Strict().FindString(raw); u != "" {
		fromURL, err := fromProfileURL(u, profileHosts(profileBases))
		if err != nil {
			return "", err
		}
		candidate = fromURL
	}

	candidate = strings.ReplaceAll(candidate, "@", "")
	candidate = strings.TrimSpace(candidate)

	if !handleRe.MatchString(candidate) {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidHandle, raw)
	}

	return candidate, nil
}

func fromProfileURL(raw string, hosts []string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: parse URL: %w", domain.ErrInvalidHandle, err)
	}

	if !slices.Contains(hosts, canonicalHost(u.Hostname())) {
		return "", fmt.Errorf("%w: unsupported host (URL = %s)", domain.ErrInvalidHandle, raw)
	}

	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "", fmt.Errorf("%w: URL has no path (URL = %s)", domain.ErrInvalidHandle, raw)
	}

	first, _, _ := strings.Cut(path, "/")

	return first, nil
}

func profileHosts(bases []string) []string {
	hosts := slices.Clone(defaultProfileHosts)

	for _, base := range bases {
		base = strings.TrimSpace(base)
		if base == "" {
			continue
		}

		host := base
		if u, err := url.Parse(base); err == nil && u.Hostname() != "" {
			host = u.Hostname()
		}

		hosts = append(hosts, canonicalHost(host))
	}

	return hosts
}

func canonicalHost(host string) string {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	for _, prefix := range []string{"www.", "mobile."} {
		host = strings.TrimPrefix(host, prefix)
	}
	return host
}
