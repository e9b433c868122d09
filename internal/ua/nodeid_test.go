package ua

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNodeIdValid(t *testing.T) {
	cases := []struct {
		text string
		want NodeId
	}{
		{"i=13", NewNumericNodeId(0, 13)},
		{"ns=99;i=35", NewNumericNodeId(99, 35)},
		{"ns=1;s=Hello World", NewStringNodeId(1, "Hello World")},
		{"s=No NS this time", NewStringNodeId(0, "No NS this time")},
	}
	for _, c := range cases {
		got, err := ParseNodeId(c.text)
		require.NoError(t, err, c.text)
		assert.True(t, got.Equal(c.want), "parsing %q: got %+v want %+v", c.text, got, c.want)
	}

	g, err := ParseNodeId("g=72962B91-FA75-4AE6-8D28-B404DC7DAF63")
	require.NoError(t, err)
	assert.Equal(t, IdentifierGuid, g.Kind)

	b, err := ParseNodeId("ns=1;b=M/RbKBsRVkePCePcx24oRA==")
	require.NoError(t, err)
	assert.Equal(t, IdentifierByteString, b.Kind)
	assert.EqualValues(t, 1, b.Namespace)
}

func TestParseNodeIdInvalid(t *testing.T) {
	cases := []string{
		"ns=99 ;i=35",
		"ns=99;i=x",
		"ns=99;s=",
		"ns=;s=x",
		"ns=65537;s=x",
	}
	for _, c := range cases {
		_, err := ParseNodeId(c)
		assert.Error(t, err, c)
	}
}

func TestNodeIdRoundTrip(t *testing.T) {
	ids := []NodeId{
		NewNumericNodeId(0, 5),
		NewNumericNodeId(12, 300),
		NewNumericNodeId(4000, 70000),
		NewStringNodeId(2, "Temperature"),
		NewGuidNodeId(3, NewGuid()),
		NewByteStringNodeId(1, []byte{1, 2, 3, 4}),
	}
	for _, id := range ids {
		var buf bytes.Buffer
		e := NewEncoder(&buf)
		id.encode(e)
		require.NoError(t, e.Err())
		assert.Equal(t, id.byteLen(), buf.Len())

		d := NewDecoder(&buf)
		got, err := decodeNodeId(d)
		require.NoError(t, err)
		assert.True(t, got.Equal(id))
	}
}

func TestExpandedNodeIdRoundTrip(t *testing.T) {
	e1 := ExpandedNodeId{NodeId: NewNumericNodeId(1, 42), HasNamespaceURI: true, NamespaceURI: "urn:test", ServerIndex: 7}
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	e1.encode(enc)
	require.NoError(t, enc.Err())
	assert.Equal(t, e1.byteLen(), buf.Len())

	dec := NewDecoder(&buf)
	got, err := decodeExpandedNodeId(dec)
	require.NoError(t, err)
	assert.True(t, got.NodeId.Equal(e1.NodeId))
	assert.Equal(t, e1.NamespaceURI, got.NamespaceURI)
	assert.Equal(t, e1.ServerIndex, got.ServerIndex)
}
