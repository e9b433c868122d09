package ua

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTripVariant(t *testing.T, v Variant) Variant {
	t.Helper()
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	v.encode(e)
	require.NoError(t, e.Err())
	assert.Equal(t, v.byteLen(), buf.Len())

	d := NewDecoder(&buf)
	got, err := decodeVariant(d)
	require.NoError(t, err)
	return got
}

func TestVariantScalarRoundTrip(t *testing.T) {
	assert.Equal(t, TypeNull, roundTripVariant(t, NullVariant).Type)

	got := roundTripVariant(t, NewVariant(int32(-42)))
	assert.Equal(t, TypeInt32, got.Type)
	assert.Equal(t, int32(-42), got.Value)

	got = roundTripVariant(t, NewVariant("hello"))
	assert.Equal(t, TypeString, got.Type)
	assert.Equal(t, "hello", got.Value)

	got = roundTripVariant(t, NewVariant(float64(3.25)))
	assert.Equal(t, 3.25, got.Value)

	id := NewNumericNodeId(2, 99)
	got = roundTripVariant(t, NewVariant(id))
	assert.True(t, got.Value.(NodeId).Equal(id))
}

func TestVariantArrayRoundTrip(t *testing.T) {
	v := Variant{Type: TypeInt32, IsArray: true, Array: []interface{}{int32(1), int32(2), int32(3)}}
	got := roundTripVariant(t, v)
	assert.True(t, got.IsArray)
	assert.Equal(t, []interface{}{int32(1), int32(2), int32(3)}, got.Array)
}

func TestVariantNullArray(t *testing.T) {
	v := Variant{Type: TypeString, IsArray: true, Array: nil}
	got := roundTripVariant(t, v)
	assert.True(t, got.IsArray)
	assert.Nil(t, got.Array)
}

func TestDataValueRoundTrip(t *testing.T) {
	dv := DataValue{
		Value:              NewVariant(int32(7)),
		HasValue:           true,
		HasStatus:          true,
		Status:             Good,
		HasSourceTimestamp: true,
		SourceTimestamp:    Now(),
	}
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	dv.encode(e)
	require.NoError(t, e.Err())
	assert.Equal(t, dv.byteLen(), buf.Len())

	d := NewDecoder(&buf)
	got, err := decodeDataValue(d)
	require.NoError(t, err)
	assert.True(t, got.HasValue)
	assert.Equal(t, int32(7), got.Value.Value)
	assert.Equal(t, Good, got.Status)
	assert.Equal(t, dv.SourceTimestamp, got.SourceTimestamp)
}
