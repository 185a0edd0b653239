// Package cookies provides an [http.CookieJar] that can also enumerate,
// search and clear everything it holds.
//
// Matching and domain rules are delegated to [net/http/cookiejar] with
// the [publicsuffix] list. The jar additionally keeps the full cookie
// records it accepted so they can be listed, which the standard jar
// does not expose.
package cookies

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Jar is safe for concurrent use.
type Jar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	entries map[entryKey]entry
	seq     uint64
	now     func() time.Time
}

type entryKey struct {
	domain string
	path   string
	name   string
}

type entry struct {
	cookie  http.Cookie
	expires time.Time
	seq     uint64
}

// New returns an empty Jar.
func New() *Jar {
	j := &Jar{now: time.Now}
	j.reset()
	return j
}

func (j *Jar) reset() {
	// cookiejar.New never returns a non-nil error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	j.jar = jar
	j.entries = make(map[entryKey]entry)
}

// Cookies implements [http.CookieJar].
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.jar.Cookies(u)
}

// SetCookies implements [http.CookieJar]. Only cookies the underlying
// jar actually retains are recorded for listing.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	now := j.now()
	for _, c := range cookies {
		key := keyFor(u, c)

		expires, expired := expiry(c, now)
		if expired {
			delete(j.entries, key)
			continue
		}

		if !containsName(j.jar.Cookies(key.probe()), c.Name) {
			continue
		}

		j.seq++
		j.entries[key] = entry{
			cookie:  normalized(c, key, expires),
			expires: expires,
			seq:     j.seq,
		}
	}
}

// List returns every unexpired cookie in the jar, oldest first.
func (j *Jar) List() []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.listLocked()
}

func (j *Jar) listLocked() []*http.Cookie {
	now := j.now()

	live := make([]entry, 0, len(j.entries))
	for key, e := range j.entries {
		if !e.expires.IsZero() && !e.expires.After(now) {
			delete(j.entries, key)
			continue
		}
		live = append(live, e)
	}

	slices.SortFunc(live, func(a, b entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		default:
			return 0
		}
	})

	out := make([]*http.Cookie, len(live))
	for i, e := range live {
		c := e.cookie
		out[i] = &c
	}

	return out
}

// Find returns the first cookie named name regardless of the URL it
// belongs to.
func (j *Jar) Find(name string) (*http.Cookie, bool) {
	all := j.FindAll(name)
	if len(all) == 0 {
		return nil, false
	}

	return all[0], true
}

// FindAll returns every cookie named name.
func (j *Jar) FindAll(name string) []*http.Cookie {
	var out []*http.Cookie
	for _, c := range j.List() {
		if c.Name == name {
			out = append(out, c)
		}
	}

	return out
}

// URLs returns the http and https origin of every domain holding at
// least one cookie.
func (j *Jar) URLs() []*url.URL {
	seen := make(map[string]bool)

	var out []*url.URL
	for _, c := range j.List() {
		domain := strings.TrimPrefix(c.Domain, ".")
		if seen[domain] {
			continue
		}
		seen[domain] = true

		out = append(out,
			&url.URL{Scheme: "http", Host: domain},
			&url.URL{Scheme: "https", Host: domain},
		)
	}

	return out
}

// Clear removes every cookie.
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.reset()
}

// Len reports the number of unexpired cookies.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	return len(j.listLocked())
}

func keyFor(u *url.URL, c *http.Cookie) entryKey {
	domain := strings.ToLower(strings.TrimPrefix(c.Domain, "."))
	if domain == "" {
		domain = strings.ToLower(u.Hostname())
	}

	path := c.Path
	if path == "" || path[0] != '/' {
		path = defaultPath(u.Path)
	}

	return entryKey{domain: domain, path: path, name: c.Name}
}

// defaultPath is the RFC 6265 section 5.1.4 default-path of a request path.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}

	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}

	return p[:i]
}

// probe is a URL the stored cookie is guaranteed to be sent to.
func (k entryKey) probe() *url.URL {
	host := k.domain
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	return &url.URL{Scheme: "https", Host: host, Path: k.path}
}

func expiry(c *http.Cookie, now time.Time) (time.Time, bool) {
	switch {
	case c.MaxAge < 0:
		return time.Time{}, true
	case c.MaxAge > 0:
		return now.Add(time.Duration(c.MaxAge) * time.Second), false
	case !c.Expires.IsZero():
		return c.Expires, !c.Expires.After(now)
	default:
		return time.Time{}, false
	}
}

func normalized(c *http.Cookie, key entryKey, expires time.Time) http.Cookie {
	out := *c
	out.Domain = key.domain
	out.Path = key.path
	out.Expires = expires
	out.Raw = ""
	out.Unparsed = nil

	return out
}

func containsName(cookies []*http.Cookie, name string) bool {
	return slices.ContainsFunc(cookies, func(c *http.Cookie) bool {
		return c.Name == name
	})
}
