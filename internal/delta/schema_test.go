package delta

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchema(t *testing.T) {
	raw := `{"type":"struct","fields":[
		{"name":"id","type":"long","nullable":false,"metadata":{}},
		{"name":"price","type":"decimal(10,2)","nullable":true,"metadata":{}},
		{"name":"tags","type":{"type":"array","elementType":"string","containsNull":true},"nullable":true,"metadata":{}},
		{"name":"attrs","type":{"type":"map","keyType":"string","valueType":"integer","valueContainsNull":false},"nullable":true,"metadata":{}},
		{"name":"nested","type":{"type":"struct","fields":[{"name":"x","type":"double","nullable":true,"metadata":{"comment":"c"}}]},"nullable":true,"metadata":{}}
	]}`

	st, err := ParseSchema(raw)
	require.NoError(t, err)
	require.Len(t, st.Fields, 5)

	assert.Equal(t, "long", st.Fields[0].Type.TypeName())
	assert.False(t, st.Fields[0].Nullable)
	assert.Equal(t, &DecimalType{Precision: 10, Scale: 2}, st.Fields[1].Type)

	arr := st.Fields[2].Type.(*ArrayType)
	assert.Equal(t, "string", arr.ElementType.TypeName())
	assert.True(t, arr.ContainsNull)

	m := st.Fields[3].Type.(*MapType)
	assert.Equal(t, "integer", m.ValueType.TypeName())

	nested, ok := st.Field("nested")
	require.True(t, ok)
	assert.Equal(t, "c", nested.Type.(*StructType).Fields[0].Metadata["comment"])

	_, ok = st.Field("missing")
	assert.False(t, ok)
}

func TestSchemaRoundTrip(t *testing.T) {
	st, err := ParseSchema(`{"type":"struct","fields":[{"name":"a","type":{"type":"array","elementType":"decimal(5,1)","containsNull":false},"nullable":true,"metadata":{}}]}`)
	require.NoError(t, err)

	data, err := json.Marshal(st)
	require.NoError(t, err)
	again, err := ParseSchema(string(data))
	require.NoError(t, err)
	assert.Equal(t, st, again)
}

func TestParseSchemaErrors(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":           `{`,
		"not a struct":       `"string"`,
		"unknown type":       `{"type":"struct","fields":[{"name":"a","type":"variant2"}]}`,
		"bad decimal":        `{"type":"struct","fields":[{"name":"a","type":"decimal(50,2)"}]}`,
		"field without name": `{"type":"struct","fields":[{"type":"string"}]}`,
		"array element":      `{"type":"struct","fields":[{"name":"a","type":{"type":"array"}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSchema(raw)
			assert.Error(t, err)
		})
	}
}

func TestCapabilitiesCheck(t *testing.T) {
	caps, err := NewCapabilities(3, []string{"timestampNtz"})
	require.NoError(t, err)

	assert.NoError(t, caps.Check(&Protocol{MinReaderVersion: 1}))
	assert.NoError(t, caps.Check(&Protocol{MinReaderVersion: 3, ReaderFeatures: []string{"timestampNtz"}}))
	assert.NoError(t, caps.Check(nil))

	err = caps.Check(&Protocol{MinReaderVersion: 3, ReaderFeatures: []string{"v2Checkpoint", "timestampNtz", "deletionVectors"}})
	var up *UnsupportedProtocolError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, []string{"deletionVectors", "v2Checkpoint"}, up.MissingFeatures)
	assert.Contains(t, err.Error(), "deletionVectors")

	err = caps.Check(&Protocol{MinReaderVersion: 2, MinWriterVersion: 5})
	require.ErrorAs(t, err, &up)
	assert.Equal(t, []string{"columnMapping"}, up.MissingFeatures)

	unimplemented := Capabilities{MaxReaderVersion: 3, ReaderFeatures: []string{"columnMapping"}}
	assert.False(t, unimplemented.Supports("columnMapping"))
	assert.ErrorIs(t, unimplemented.Check(&Protocol{MinReaderVersion: 3, ReaderFeatures: []string{"columnMapping"}}), ErrUnsupportedProtocol)

	err = DefaultCapabilities().Check(&Protocol{MinReaderVersion: 2, MinWriterVersion: 5})
	assert.ErrorIs(t, err, ErrUnsupportedProtocol)
	assert.Contains(t, err.Error(), "reader version 2")
}

func TestStructTypeJSON(t *testing.T) {
	schema, err := ParseSchema(`{"type":"struct","fields":[` +
		`{"name":"id","type":"long","nullable":false,"metadata":{}},` +
		`{"name":"tags","type":{"type":"map","keyType":"string","valueType":"string","valueContainsNull":true},"nullable":true,"metadata":{}},` +
		`{"name":"price","type":"decimal(10,2)","nullable":true,"metadata":{}}]}`)
	require.NoError(t, err)

	data, err := json.Marshal(struct {
		Schema *StructType `json:"schema"`
	}{schema})
	require.NoError(t, err)

	var decoded struct {
		Schema *StructType `json:"schema"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, schema, decoded.Schema)

	var bad StructType
	assert.Error(t, json.Unmarshal([]byte(`"long"`), &bad))
}
