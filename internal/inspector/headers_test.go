package inspector

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaders(t *testing.T) {
	t.Parallel()

	raw := http.Header{}
	raw.Add("host", "a.example")
	raw.Add("X-Canary", "1")
	raw.Add("x-canary", "2")
	h := NewHeaders(raw)

	assert.Equal(t, "a.example", h.Get("HOST"))
	assert.Equal(t, "1", h.Get("x-CANARY"))
	assert.Equal(t, []string{"1", "2"}, h.Values("X-Canary"))
	assert.True(t, h.Has("host"))
	assert.False(t, h.Has("Cookie"))
	assert.Nil(t, h.Values("Cookie"))
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, []string{"Host", "X-Canary"}, h.Names())
	assert.Equal(t, map[string]string{"host": "a.example", "x-canary": "1"}, h.Map())

	vals := h.Values("X-Canary")
	vals[0] = "mutated"
	assert.Equal(t, "1", h.Get("X-Canary"))
}

func TestHeadersFromPairs(t *testing.T) {
	t.Parallel()

	h := HeadersFromPairs("Host", "b.example", "X-User", "42", "dangling")
	assert.Equal(t, "b.example", h.Get("host"))
	assert.Equal(t, "42", h.Get("x-user"))
	assert.Equal(t, 2, h.Len())
}

func TestDecision(t *testing.T) {
	t.Parallel()

	catalog := testCatalog(t, "http://a.example")

	assert.False(t, NoOpinion.Chosen())
	assert.Nil(t, NoOpinion.Vector())
	assert.False(t, Choose(nil).Chosen())

	d := Choose(catalog.At(0))
	assert.True(t, d.Chosen())
	assert.Same(t, catalog.At(0), d.Vector())
}
