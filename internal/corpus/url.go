package corpus

import (
	"net/url"
	"strings"
)

// Defrag drops the fragment from raw.
func Defrag(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// Normalize removes tracking query parameters ("share" and any "utm_*",
// case-insensitive) from raw. Unparseable input is returned unchanged.
func Normalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.RawQuery == "" {
		return u.String()
	}
	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if lower == "share" || strings.HasPrefix(lower, "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Canonical is the form used to key documents: normalized, then
// de-fragmented.
func Canonical(raw string) string {
	return Defrag(Normalize(strings.TrimSpace(raw)))
}

// Resolve turns href found on the page at base into a canonical absolute
// URL. ok is false when either side cannot be parsed or the result is not
// http(s).
func Resolve(base, href string) (string, bool) {
	b, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := b.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return Canonical(abs.String()), true
}
