package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/peanuts-pos/internal/fpn"
)

func TestDemoCatalogIsSaveable(t *testing.T) {
	c, err := demoCatalog()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, fpn.Encode(&buf, c))

	decoded, err := fpn.Decode(&buf)
	require.NoError(t, err)
	assert.Len(t, decoded.Items(), len(c.Items()))
	assert.Equal(t, []string{"Bulk Goods", "Snacks"}, decoded.Deals().Active())
}
