package session

import (
	"fmt"
	"net/http"
	"net/url"
)

// JarStore keeps tokens as cookies for the API base URL, the way the
// browser frontend does. Share the jar with the http.Client so the
// cookies travel with requests.
type JarStore struct {
	jar  http.CookieJar
	base *url.URL
}

func NewJarStore(jar http.CookieJar, baseURL string) (*JarStore, error) {
	const op = "session.NewJarStore"

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%s: base url %q has no host", op, baseURL)
	}
	return &JarStore{jar: jar, base: u}, nil
}

func (s *JarStore) Jar() http.CookieJar { return s.jar }

func (s *JarStore) Token(realm Realm) (string, bool) {
	name := realm.CookieName()
	for _, c := range s.jar.Cookies(s.base) {
		if c.Name == name && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

func (s *JarStore) SetToken(realm Realm, token string) error {
	if !realm.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRealm, realm)
	}
	s.jar.SetCookies(s.base, []*http.Cookie{{
		Name:  realm.CookieName(),
		Value: token,
		Path:  "/",
	}})
	return nil
}

func (s *JarStore) Clear(realm Realm) error {
	s.jar.SetCookies(s.base, []*http.Cookie{{
		Name:   realm.CookieName(),
		Path:   "/",
		MaxAge: -1,
	}})
	return nil
}

var _ Store = (*JarStore)(nil)
