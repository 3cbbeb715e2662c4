package client

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// cookieCacheKey is the single key the client uses in the persistent
// store.
const cookieCacheKey = "COOKIE_CACHE"

// CookieJar is an in-memory cookie store that writes through to a
// user-supplied persistent backend under cookieCacheKey. It is shared
// between the HTTP client and the socket dialer and is safe for
// concurrent use.
type CookieJar struct {
	mu     sync.Mutex
	store  PersistentStore
	logger *slog.Logger
	// cookies are grouped per host; this client only needs host-scoped
	// token cookies, so path and domain matching stay simple.
	cookies map[string][]*persistedCookie
}

type persistedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// NewCookieJar loads any persisted cookies from store; store may be nil,
// in which case cookies live only in memory.
func NewCookieJar(store PersistentStore, logger *slog.Logger) *CookieJar {
	jar := &CookieJar{
		store:   store,
		logger:  logger.With("component", "cookies"),
		cookies: make(map[string][]*persistedCookie),
	}
	if store == nil {
		jar.logger.Warn("no persistence provider, cookies will not be persisted")
		return jar
	}
	if blob := store.Get(cookieCacheKey); blob != nil {
		if err := json.Unmarshal(blob, &jar.cookies); err != nil {
			jar.logger.Error("failed to load cookie store, defaulting to empty", "error", err)
			jar.cookies = make(map[string][]*persistedCookie)
		}
	}
	return jar
}

// SetCookies implements http.CookieJar.
func (j *CookieJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	host := u.Hostname()
	for _, c := range cookies {
		j.setLocked(host, c)
	}
	j.mu.Unlock()
	j.Save()
}

func (j *CookieJar) setLocked(host string, c *http.Cookie) {
	list := j.cookies[host]
	for i, existing := range list {
		if existing.Name == c.Name {
			if c.MaxAge < 0 {
				j.cookies[host] = append(list[:i], list[i+1:]...)
				return
			}
			existing.Value = c.Value
			existing.Path = c.Path
			existing.Expires = c.Expires
			return
		}
	}
	if c.MaxAge < 0 {
		return
	}
	j.cookies[host] = append(list, &persistedCookie{
		Name:    c.Name,
		Value:   c.Value,
		Path:    c.Path,
		Expires: c.Expires,
	})
}

// Cookies implements http.CookieJar.
func (j *CookieJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	var out []*http.Cookie
	for _, c := range j.cookies[u.Hostname()] {
		if !c.Expires.IsZero() && c.Expires.Before(now) {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// CookieList renders the cookies for u as `name=value` pairs for the
// websocket upgrade request.
func (j *CookieJar) CookieList(u *url.URL) []string {
	var out []string
	for _, c := range j.Cookies(u) {
		out = append(out, c.Name+"="+c.Value)
	}
	return out
}

// Save serializes the jar through the persistent store. It is called on
// every change and at shutdown.
func (j *CookieJar) Save() {
	if j.store == nil {
		return
	}
	j.mu.Lock()
	blob, err := json.Marshal(j.cookies)
	j.mu.Unlock()
	if err != nil {
		j.logger.Warn("failed to serialize cookie store", "error", err)
		return
	}
	j.store.Set(cookieCacheKey, blob)
}
