package cookies_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adamwoolhether/httpsession/client/cookies"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()

	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func names(cs []*http.Cookie) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

func TestJar_ListAcrossDomains(t *testing.T) {
	jar := cookies.New()

	jar.SetCookies(mustURL(t, "https://www.example.com/app/login"), []*http.Cookie{
		{Name: "session", Value: "abc"},
		{Name: "pref", Value: "dark", Path: "/"},
	})
	jar.SetCookies(mustURL(t, "http://api.example.org/"), []*http.Cookie{
		{Name: "token", Value: "t1", Domain: "example.org"},
	})

	all := jar.List()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"session", "pref", "token"}, names(all))

	assert.Equal(t, "www.example.com", all[0].Domain)
	assert.Equal(t, "/app", all[0].Path)
	assert.Equal(t, "/", all[1].Path)
	assert.Equal(t, "example.org", all[2].Domain)
	assert.Equal(t, 3, jar.Len())
}

func TestJar_CookiesDelegates(t *testing.T) {
	jar := cookies.New()
	u := mustURL(t, "https://example.com/")

	jar.SetCookies(u, []*http.Cookie{{Name: "a", Value: "1"}})

	got := jar.Cookies(u)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Name)
	assert.Empty(t, jar.Cookies(mustURL(t, "https://other.com/")))
}

func TestJar_RejectedCookiesAreNotListed(t *testing.T) {
	jar := cookies.New()

	jar.SetCookies(mustURL(t, "https://www.example.com/"), []*http.Cookie{
		{Name: "foreign", Value: "x", Domain: "other.com"},
		{Name: "suffix", Value: "x", Domain: "com"},
	})

	assert.Empty(t, jar.List())
}

func TestJar_ReplaceAndExpire(t *testing.T) {
	jar := cookies.New()
	u := mustURL(t, "https://example.com/")

	jar.SetCookies(u, []*http.Cookie{{Name: "a", Value: "1"}})
	jar.SetCookies(u, []*http.Cookie{{Name: "a", Value: "2"}})

	c, ok := jar.Find("a")
	require.True(t, ok)
	assert.Equal(t, "2", c.Value)
	assert.Equal(t, 1, jar.Len())

	jar.SetCookies(u, []*http.Cookie{{Name: "a", MaxAge: -1}})
	_, ok = jar.Find("a")
	assert.False(t, ok)
	assert.Empty(t, jar.Cookies(u))
}

func TestJar_ExpiresInPastIsDropped(t *testing.T) {
	jar := cookies.New()
	u := mustURL(t, "https://example.com/")

	jar.SetCookies(u, []*http.Cookie{
		{Name: "old", Value: "1", Expires: time.Now().Add(-time.Hour)},
		{Name: "new", Value: "1", Expires: time.Now().Add(time.Hour)},
	})

	assert.Equal(t, []string{"new"}, names(jar.List()))
}

func TestJar_FindAll(t *testing.T) {
	jar := cookies.New()
	jar.SetCookies(mustURL(t, "https://a.test/"), []*http.Cookie{{Name: "id", Value: "a"}})
	jar.SetCookies(mustURL(t, "https://b.test/"), []*http.Cookie{{Name: "id", Value: "b"}})
	jar.SetCookies(mustURL(t, "https://b.test/"), []*http.Cookie{{Name: "other", Value: "c"}})

	all := jar.FindAll("id")
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Value)
	assert.Equal(t, "b", all[1].Value)

	first, ok := jar.Find("id")
	require.True(t, ok)
	assert.Equal(t, "a", first.Value)

	_, ok = jar.Find("missing")
	assert.False(t, ok)
}

func TestJar_URLs(t *testing.T) {
	jar := cookies.New()
	jar.SetCookies(mustURL(t, "https://a.test/"), []*http.Cookie{{Name: "x", Value: "1"}, {Name: "y", Value: "2"}})

	urls := jar.URLs()
	require.Len(t, urls, 2)
	assert.Equal(t, "http://a.test", urls[0].String())
	assert.Equal(t, "https://a.test", urls[1].String())
}

func TestJar_Clear(t *testing.T) {
	jar := cookies.New()
	u := mustURL(t, "https://example.com/")
	jar.SetCookies(u, []*http.Cookie{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}})

	jar.Clear()

	assert.Empty(t, jar.List())
	assert.Empty(t, jar.Cookies(u))
	assert.Zero(t, jar.Len())
}

func TestJar_ListReturnsCopies(t *testing.T) {
	jar := cookies.New()
	jar.SetCookies(mustURL(t, "https://example.com/"), []*http.Cookie{{Name: "a", Value: "1"}})

	jar.List()[0].Value = "mutated"

	c, _ := jar.Find("a")
	assert.Equal(t, "1", c.Value)
}
