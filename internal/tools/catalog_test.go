package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Names(t *testing.T) {
	assert.Equal(t, []string{
		ListEvents,
		GetEvent,
		CreateEvent,
		UpdateEvent,
		DeleteEvent,
		ListCalendars,
		QueryFreeBusy,
		FindAvailableTime,
	}, Names())
}

func TestCatalog_HasDescriptions(t *testing.T) {
	for _, tool := range Catalog() {
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
}

func TestFunctions_Schema(t *testing.T) {
	functions := Functions(Catalog())
	require.Len(t, functions, len(Catalog()))

	var create map[string]any
	for _, fn := range functions {
		if fn.Name == CreateEvent {
			create = fn.Parameters
		}
	}
	require.NotNil(t, create)
	assert.Equal(t, "object", create["type"])

	props, ok := create["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "summary")
	assert.Contains(t, props, "start")

	required, ok := create["required"].([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"summary", "start", "end"}, required)
}

func TestFunctions_NoParameters(t *testing.T) {
	for _, fn := range Functions(Catalog()) {
		if fn.Name == ListCalendars {
			assert.Equal(t, map[string]any{}, fn.Parameters["properties"])
		}
	}
}
