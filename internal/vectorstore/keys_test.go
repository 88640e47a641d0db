package vectorstore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKey_Deterministic(t *testing.T) {
	opts := SearchOptions{Limit: 10, Filter: SearchFilter{SiteID: "site-1"}}

	k1 := GenerateKey("vector_search", []float32{0.1, 0.2, 0.3}, opts)
	k2 := GenerateKey("vector_search", []float32{0.1, 0.2, 0.3}, opts)
	assert.Equal(t, k1, k2, "identical inputs must yield the identical key")
}

func TestGenerateKey_MapOrderIndependent(t *testing.T) {
	// encoding/json sorts map keys, so insertion order must not matter.
	a := map[string]any{"siteId": "site-1", "teamId": "team-1", "timeframe": "30d"}
	b := map[string]any{"timeframe": "30d", "teamId": "team-1", "siteId": "site-1"}

	assert.Equal(t, GenerateKey("op", a, nil), GenerateKey("op", b, nil))
}

func TestGenerateKey_DistinguishesInputs(t *testing.T) {
	base := GenerateKey("vector_search", "params", SearchOptions{Limit: 10})

	assert.NotEqual(t, base, GenerateKey("text_search", "params", SearchOptions{Limit: 10}),
		"operation is part of the key")
	assert.NotEqual(t, base, GenerateKey("vector_search", "other", SearchOptions{Limit: 10}),
		"params are part of the key")
	assert.NotEqual(t, base, GenerateKey("vector_search", "params", SearchOptions{Limit: 20}),
		"options are part of the key")
}

func TestGenerateKey_OperationPrefixStaysClear(t *testing.T) {
	key := GenerateKey("vector_search", "q", nil)
	assert.True(t, strings.HasPrefix(key, "vector_search:"),
		"write paths invalidate by operation substring, so the prefix must stay readable")
}

func TestGenerateKey_NilsAreStable(t *testing.T) {
	assert.Equal(t, GenerateKey("op", nil, nil), GenerateKey("op", nil, nil))
	assert.NotEqual(t, GenerateKey("op", nil, nil), GenerateKey("op", "x", nil))
}
