package goSession

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HTTPCookieJar adapts a request/response pair to [CookieJar]. Writes go to the
// response immediately and shadow the request's cookies for later Get calls, so a
// handler running after the guard sees the renewed values.
type HTTPCookieJar struct {
	w       http.ResponseWriter
	r       *http.Request
	mu      sync.Mutex
	written map[string]*http.Cookie
}

// NewHTTPCookieJar returns a jar reading r's cookies and writing Set-Cookie headers to w.
func NewHTTPCookieJar(w http.ResponseWriter, r *http.Request) *HTTPCookieJar {
	return &HTTPCookieJar{w: w, r: r, written: make(map[string]*http.Cookie, 3)}
}

func (j *HTTPCookieJar) Get(name string) (string, bool) {
	j.mu.Lock()
	c, ok := j.written[name]
	j.mu.Unlock()
	if ok {
		return liveValue(c)
	}
	if j.r == nil {
		return "", false
	}
	rc, err := j.r.Cookie(name)
	if err != nil || rc.Value == "" {
		return "", false
	}
	return rc.Value, true
}

// Set replaces any Set-Cookie header already written for the same name.
func (j *HTTPCookieJar) Set(c *http.Cookie) {
	if c == nil || c.Name == "" {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.w != nil {
		h := j.w.Header()
		kept := h["Set-Cookie"][:0]
		for _, line := range h["Set-Cookie"] {
			if !strings.HasPrefix(line, c.Name+"=") {
				kept = append(kept, line)
			}
		}
		if len(kept) == 0 {
			h.Del("Set-Cookie")
		} else {
			h["Set-Cookie"] = kept
		}
		http.SetCookie(j.w, c)
	}
	j.written[c.Name] = c
}

// MemoryCookieJar is a standalone [CookieJar] for tests, load generators and
// non-HTTP transports.
type MemoryCookieJar struct {
	mu      sync.Mutex
	cookies map[string]*http.Cookie
}

// NewMemoryCookieJar seeds a jar with name/value pairs as if they came from a request.
func NewMemoryCookieJar(values map[string]string) *MemoryCookieJar {
	j := &MemoryCookieJar{cookies: make(map[string]*http.Cookie, len(values))}
	for name, value := range values {
		j.cookies[name] = &http.Cookie{Name: name, Value: value}
	}
	return j
}

func (j *MemoryCookieJar) Get(name string) (string, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	if !ok {
		return "", false
	}
	return liveValue(c)
}

func (j *MemoryCookieJar) Set(c *http.Cookie) {
	if c == nil || c.Name == "" {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	cp := *c
	j.cookies[c.Name] = &cp
}

// Cookie returns a copy of the last cookie set or seeded under name.
func (j *MemoryCookieJar) Cookie(name string) (*http.Cookie, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	c, ok := j.cookies[name]
	if !ok {
		return nil, false
	}
	cp := *c
	return &cp, true
}

func liveValue(c *http.Cookie) (string, bool) {
	if c == nil || c.MaxAge < 0 || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// EncodeUserCookie renders u as the display-only user cookie value.
func EncodeUserCookie(u *User) (string, error) {
	if u == nil {
		return "", errors.New("nil user")
	}
	data, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeUserCookie parses a user cookie value. The result is for display only and
// must never be used for authorization.
func DecodeUserCookie(value string) (*User, error) {
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, err
	}
	var u User
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (e *Engine) baseCookie(name, value string, maxAge time.Duration, httpOnly bool) *http.Cookie {
	cfg := e.config.Cookie
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		Secure:   cfg.Secure,
		HttpOnly: httpOnly,
		SameSite: cfg.SameSite,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge / time.Second)
		c.Expires = e.now().Add(maxAge).UTC()
	} else {
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0).UTC()
	}
	return c
}

func (e *Engine) writeSessionCookies(jar CookieJar, pair *TokenPair, user *User) error {
	ttl := time.Duration(pair.ExpiresIn) * time.Second
	jar.Set(e.baseCookie(e.config.Cookie.AccessName, pair.AccessToken, ttl, true))
	jar.Set(e.baseCookie(e.config.Cookie.RefreshName, pair.RefreshToken, e.config.Cookie.RefreshMaxAge, true))

	if user == nil {
		return nil
	}
	value, err := EncodeUserCookie(user)
	if err != nil {
		return err
	}
	jar.Set(e.baseCookie(e.config.Cookie.UserName, value, ttl, false))
	return nil
}

func (e *Engine) clearSessionCookies(jar CookieJar) {
	jar.Set(e.baseCookie(e.config.Cookie.AccessName, "", 0, true))
	jar.Set(e.baseCookie(e.config.Cookie.RefreshName, "", 0, true))
	jar.Set(e.baseCookie(e.config.Cookie.UserName, "", 0, false))
}
