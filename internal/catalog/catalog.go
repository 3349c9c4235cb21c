// Package catalog answers the model listing endpoint from the mapping table.
package catalog

import (
	"time"

	"nimproxy/internal/core"
)

// Catalog lists client-facing model ids.
type Catalog struct {
	models *core.ModelMapping
}

// New creates a catalog over an immutable mapping.
func New(models *core.ModelMapping) *Catalog {
	return &Catalog{models: models}
}

// List builds the model list. created is stamped from now on every call.
func (c *Catalog) List(now time.Time) core.ModelList {
	names := c.models.Names()
	created := now.Unix()

	data := make([]core.ModelInfo, 0, len(names))
	for _, name := range names {
		data = append(data, core.ModelInfo{
			ID:      name,
			Object:  core.ModelObjectType,
			Created: created,
			OwnedBy: core.ModelOwner,
		})
	}

	return core.ModelList{
		Object: core.ModelListObjectType,
		Data:   data,
	}
}
