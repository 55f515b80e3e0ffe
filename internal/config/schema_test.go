// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/identity/internal/config"
)

func TestGenerateSchema(t *testing.T) {
	raw, err := config.GenerateSchema()
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(raw, &schema))

	assert.Equal(t, config.SchemaID, schema["$id"])
	assert.Equal(t, false, schema["additionalProperties"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"http", "metrics", "log", "session", "redis", "directory", "tracing"} {
		assert.Contains(t, props, key)
	}
	assert.NotContains(t, schema, "required", "every key is optional")
}

func TestValidateYAML(t *testing.T) {
	require.NoError(t, config.ValidateYAML([]byte("")))
	require.NoError(t, config.ValidateYAML([]byte("log:\n  level: debug\nsession:\n  ttl: 1h30m\n")))

	assert.Error(t, config.ValidateYAML([]byte("log: [unterminated")))
	assert.Error(t, config.ValidateYAML([]byte("log:\n  level: verbose\n")))
}
