package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryCatalog(t *testing.T) {
	cat := QueryCatalog(t)
	assert.Len(t, cat.Types(), 5)
	assert.Len(t, cat.Observed(), 2)

	q := Query(t, cat, 1, "10.0.0.1", "10.0.0.53")
	assert.Equal(t, "Query: dns.id=1 ip.src=10.0.0.1 ip.dst=10.0.0.53", q.String())
}
