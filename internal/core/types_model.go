package core

import "sort"

// ModelInfo represents a single model entry in the models list.
type ModelInfo struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the OpenAI-compatible model list response.
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelInfo `json:"data"`
}

// ModelsConfig holds the model ID mapping configuration from a models file.
type ModelsConfig struct {
	Models map[string]string `json:"models" yaml:"models"`
}

// ModelMapping maps client-facing model ids to backend ids. It is built once
// and never mutated, so concurrent lookups need no locking.
type ModelMapping struct {
	backend map[string]string
	names   []string
}

// NewModelMapping copies models into an immutable mapping.
func NewModelMapping(models map[string]string) *ModelMapping {
	m := &ModelMapping{
		backend: make(map[string]string, len(models)),
		names:   make([]string, 0, len(models)),
	}
	for client, backend := range models {
		m.backend[client] = backend
		m.names = append(m.names, client)
	}
	sort.Strings(m.names)
	return m
}

// Lookup returns the backend model id for a client-facing id.
func (m *ModelMapping) Lookup(client string) (string, bool) {
	if m == nil {
		return "", false
	}
	backend, ok := m.backend[client]
	return backend, ok
}

// Names returns the client-facing ids in sorted order.
func (m *ModelMapping) Names() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Len returns the number of mapped models.
func (m *ModelMapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.names)
}
