package jsonrecover_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/guideforge/engine/jsonrecover"
)

func TestExtractBalancedObjectIgnoresBracesInStrings(t *testing.T) {
	input := `Sure, here is the plan: {"type":"click","label":"Submit {button}"} -- hope that helps`
	got, ok := jsonrecover.ExtractBalancedObject(input)
	require.True(t, ok)
	require.Equal(t, `{"type":"click","label":"Submit {button}"}`, got)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(got), &decoded))
	require.Equal(t, "click", decoded["type"])
}

func TestExtractBalancedObjectNoObject(t *testing.T) {
	_, ok := jsonrecover.ExtractBalancedObject("no json here")
	require.False(t, ok)
}

func TestCleanTrailingCommasRemovesBeforeClosers(t *testing.T) {
	input := `{"a":1,"b":[1,2,],}`
	cleaned := jsonrecover.CleanTrailingCommas(input)
	require.Equal(t, `{"a":1,"b":[1,2]}`, cleaned)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(cleaned), &decoded))
}

func TestCleanTrailingCommasCollapsesDuplicates(t *testing.T) {
	input := `{"a":1,,,"b":2}`
	cleaned := jsonrecover.CleanTrailingCommas(input)
	require.Equal(t, `{"a":1,"b":2}`, cleaned)
}
