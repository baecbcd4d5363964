package codec

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON_Object(t *testing.T) {
	payloads, err := JSON{}.Decode([]byte(`{"ProbeGuid":"abc","Count":3}`))
	require.NoError(t, err)
	require.Len(t, payloads, 1)

	m, ok := payloads[0].Value.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "abc", m["ProbeGuid"])
	assert.Equal(t, json.Number("3"), m["Count"])
	assert.Empty(t, payloads[0].Tags)
}

func TestJSON_ArrayYieldsOnePayloadPerElement(t *testing.T) {
	payloads, err := JSON{}.Decode([]byte(`[{"a":1},{"a":2},{"a":3}]`))
	require.NoError(t, err)
	require.Len(t, payloads, 3)

	assert.Equal(t, json.Number("2"), payloads[1].Value.(map[string]any)["a"])
}

func TestJSON_EmptyArrayYieldsNothing(t *testing.T) {
	payloads, err := JSON{}.Decode([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, payloads)
}

func TestJSON_ParseFailure(t *testing.T) {
	payloads, err := JSON{}.Decode([]byte(`<html>oops</html>`))
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, map[string]any{"message": "<html>oops</html>"}, payloads[0].Value)
	assert.Equal(t, []string{JSONParseFailureTag}, payloads[0].Tags)
}

func TestJSON_TrailingDataIsParseFailure(t *testing.T) {
	for _, body := range []string{`{"a":1}{"b":2}`, `{"a":1} garbage`, `[1,2] [3]`} {
		payloads, err := JSON{}.Decode([]byte(body))
		require.NoError(t, err, body)
		require.Len(t, payloads, 1, body)
		assert.Equal(t, map[string]any{"message": body}, payloads[0].Value, body)
		assert.Equal(t, []string{JSONParseFailureTag}, payloads[0].Tags, body)
	}
}

func TestJSON_TrailingWhitespaceIsAllowed(t *testing.T) {
	payloads, err := JSON{}.Decode([]byte("{\"a\":1}\n  \n"))
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Empty(t, payloads[0].Tags)
}

func TestJSONLines(t *testing.T) {
	body := []byte("{\"n\":1}\n\n{\"n\":2}\nnot json\n")
	payloads, err := JSONLines{}.Decode(body)
	require.NoError(t, err)
	require.Len(t, payloads, 3)
	assert.Equal(t, []string{JSONParseFailureTag}, payloads[2].Tags)
}

func TestPlain(t *testing.T) {
	payloads, err := Plain{}.Decode([]byte("raw text"))
	require.NoError(t, err)
	require.Len(t, payloads, 1)
	assert.Equal(t, map[string]any{"message": "raw text"}, payloads[0].Value)
}

func TestByName(t *testing.T) {
	for name, want := range map[string]string{"": "json", "json": "json", "JSON_LINES": "json_lines", "plain": "plain"} {
		c, err := ByName(name)
		require.NoError(t, err)
		assert.Equal(t, want, c.Name())
	}

	_, err := ByName("xml")
	assert.Error(t, err)
}
