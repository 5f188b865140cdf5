package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePairs(t *testing.T) {
	v, err := parsePairs([]string{"city=Lisbon", "type=land", "type=house", "empty="})
	require.NoError(t, err)
	assert.Equal(t, "Lisbon", v.Get("city"))
	assert.Equal(t, []string{"land", "house"}, v["type"])
	assert.Equal(t, "", v.Get("empty"))

	_, err = parsePairs([]string{"novalue"})
	assert.Error(t, err)
	_, err = parsePairs([]string{"=x"})
	assert.Error(t, err)
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, json.RawMessage(`{"id":42}`)))
	assert.Equal(t, "{\n  \"id\": 42\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, printJSON(&buf, json.RawMessage(`not json`)))
	assert.Equal(t, "not json", buf.String())
}

func TestInitAppCommands(t *testing.T) {
	app := InitApp()
	var names []string
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"serve", "get", "login", "logout", "upload"}, names)
}
