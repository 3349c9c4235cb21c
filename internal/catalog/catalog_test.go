package catalog

import (
	"testing"
	"time"

	"nimproxy/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_ListContainsEveryClientModel(t *testing.T) {
	table := map[string]string{
		"deepseek-r1-0528": "deepseek-ai/deepseek-r1-0528",
		"deepseek-v3.1":    "deepseek-ai/deepseek-v3.1",
		"GLM 4.7":          "z-ai/glm4.7",
	}
	now := time.Unix(1735689600, 0)

	list := New(core.NewModelMapping(table)).List(now)

	assert.Equal(t, core.ModelListObjectType, list.Object)
	require.Len(t, list.Data, len(table))

	seen := make(map[string]bool)
	for _, m := range list.Data {
		seen[m.ID] = true
		assert.Equal(t, core.ModelObjectType, m.Object)
		assert.Equal(t, core.ModelOwner, m.OwnedBy)
		assert.Equal(t, now.Unix(), m.Created)
	}
	for client := range table {
		assert.True(t, seen[client], "missing %q", client)
	}
}

func TestCatalog_NeverExposesBackendIDs(t *testing.T) {
	list := New(core.NewModelMapping(map[string]string{"deepseek-v3.2": "deepseek-ai/deepseek-v3.2"})).List(time.Now())

	require.Len(t, list.Data, 1)
	assert.Equal(t, "deepseek-v3.2", list.Data[0].ID)
}

func TestCatalog_CreatedIsFreshPerCall(t *testing.T) {
	c := New(core.NewModelMapping(map[string]string{"a": "vendor/a"}))

	first := c.List(time.Unix(100, 0))
	second := c.List(time.Unix(200, 0))

	assert.Equal(t, int64(100), first.Data[0].Created)
	assert.Equal(t, int64(200), second.Data[0].Created)
}

func TestCatalog_EmptyTable(t *testing.T) {
	list := New(core.NewModelMapping(nil)).List(time.Now())

	assert.NotNil(t, list.Data)
	assert.Empty(t, list.Data)
}
