package retailer

import (
	"net/url"
	"regexp"
	"strings"
)

// maxRedirectDepth bounds how many url= redirect layers Canonicalize unwraps.
const maxRedirectDepth = 2

var asinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/dp/([A-Z0-9]{10})`),
	regexp.MustCompile(`/gp/product/([A-Z0-9]{10})`),
	regexp.MustCompile(`/gp/aw/d/([A-Z0-9]{10})`),
}

// Canonicalize returns the stable form of a product URL for retailer id.
// Canonicalize(Canonicalize(u)) == Canonicalize(u) for every retailer.
//
// Amazon URLs are rebuilt as https://<host>/dp/<ASIN>, where the ASIN may
// come from the path or from a URL-encoded url= redirect parameter (as used
// by sponsored-listing links). Redirects are only followed to relative paths
// and to the retailer's own domains. Everything else loses its query and
// fragment.
// Unknown retailers and unparseable URLs are returned unchanged.
func (r *Registry) Canonicalize(rawURL string, id ID) string {
	rt, ok := r.Get(id)
	if !ok {
		return rawURL
	}
	rawURL = strings.TrimSpace(rawURL)

	switch rt.Scheme {
	case ASIN:
		return canonicalASIN(rt, rawURL, Host(rawURL), 0)
	default:
		return stripQuery(rawURL)
	}
}

func canonicalASIN(rt Retailer, rawURL, host string, depth int) string {
	if asin := findASIN(rawURL); asin != "" {
		if host == "" {
			host = "www.amazon.com"
		}
		return "https://" + host + "/dp/" + asin
	}

	if depth < maxRedirectDepth {
		if inner, ok := redirectTarget(rt, rawURL, host); ok {
			return canonicalASIN(rt, inner, Host(inner), depth+1)
		}
	}

	return stripQuery(rawURL)
}

// redirectTarget returns the url= parameter of rawURL when it is safe to
// follow: a root-relative path, resolved against host, or an absolute
// http(s) URL on one of the retailer's own domains.
func redirectTarget(rt Retailer, rawURL, host string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	// Query().Get decodes the parameter exactly once.
	inner := u.Query().Get("url")
	if inner == "" {
		return "", false
	}
	target, err := url.Parse(inner)
	if err != nil {
		return "", false
	}

	switch {
	case target.Scheme == "" && target.Host == "" && strings.HasPrefix(target.Path, "/") && !strings.HasPrefix(inner, "//"):
		if host == "" {
			host = "www.amazon.com"
		}
		target.Scheme = "https"
		target.Host = host
		return target.String(), true
	case (target.Scheme == "http" || target.Scheme == "https") && rt.Owns(target.Hostname()):
		return inner, true
	}
	return "", false
}

func findASIN(s string) string {
	for _, re := range asinPatterns {
		if m := re.FindStringSubmatch(s); m != nil {
			return m[1]
		}
	}
	return ""
}

func stripQuery(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// Tag appends the retailer's affiliate parameter to rawURL, joining with "?"
// when the URL has no query string and with "&" otherwise. The fragment, if
// any, stays at the end. Tag does not detect an already-tagged URL.
func (r *Registry) Tag(rawURL string, id ID) string {
	rt, ok := r.Get(id)
	if !ok || rt.AffiliateParam == "" {
		return rawURL
	}
	param := strings.TrimLeft(rt.AffiliateParam, "?&")

	base, fragment, hasFragment := strings.Cut(rawURL, "#")

	var sep string
	switch {
	case !strings.Contains(base, "?"):
		sep = "?"
	case strings.HasSuffix(base, "?"), strings.HasSuffix(base, "&"):
		sep = ""
	default:
		sep = "&"
	}

	tagged := base + sep + param
	if hasFragment {
		tagged += "#" + fragment
	}
	return tagged
}
