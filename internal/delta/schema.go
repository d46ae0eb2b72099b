package delta

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"strconv"
)

// DataType is a column type of a table schema.
type DataType interface {
	TypeName() string
	jsonValue() interface{}
}

// PrimitiveType is a scalar type such as long or string.
type PrimitiveType struct {
	Name string
}

// DecimalType is a fixed precision decimal.
type DecimalType struct {
	Precision int
	Scale     int
}

// ArrayType is a list of elements.
type ArrayType struct {
	ElementType  DataType
	ContainsNull bool
}

// MapType is a key/value map.
type MapType struct {
	KeyType           DataType
	ValueType         DataType
	ValueContainsNull bool
}

// StructField is one named field of a struct.
type StructField struct {
	Name     string
	Type     DataType
	Nullable bool
	Metadata map[string]interface{}
}

// StructType is an ordered list of fields. The table schema is a StructType.
type StructType struct {
	Fields []StructField
}

var primitiveTypes = map[string]bool{
	"string": true, "long": true, "integer": true, "short": true, "byte": true,
	"float": true, "double": true, "boolean": true, "binary": true,
	"date": true, "timestamp": true, "timestamp_ntz": true,
}

var decimalPattern = regexp.MustCompile(`^decimal\(\s*(\d+)\s*,\s*(\d+)\s*\)$`)

func (t *PrimitiveType) TypeName() string { return t.Name }
func (t *DecimalType) TypeName() string {
	return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
}
func (t *ArrayType) TypeName() string  { return "array" }
func (t *MapType) TypeName() string    { return "map" }
func (t *StructType) TypeName() string { return "struct" }

func (t *PrimitiveType) jsonValue() interface{} { return t.Name }
func (t *DecimalType) jsonValue() interface{}   { return t.TypeName() }

func (t *ArrayType) jsonValue() interface{} {
	return map[string]interface{}{
		"type":         "array",
		"elementType":  t.ElementType.jsonValue(),
		"containsNull": t.ContainsNull,
	}
}

func (t *MapType) jsonValue() interface{} {
	return map[string]interface{}{
		"type":              "map",
		"keyType":           t.KeyType.jsonValue(),
		"valueType":         t.ValueType.jsonValue(),
		"valueContainsNull": t.ValueContainsNull,
	}
}

func (t *StructType) jsonValue() interface{} {
	fields := make([]interface{}, len(t.Fields))
	for i, f := range t.Fields {
		md := f.Metadata
		if md == nil {
			md = map[string]interface{}{}
		}
		fields[i] = map[string]interface{}{
			"name":     f.Name,
			"type":     f.Type.jsonValue(),
			"nullable": f.Nullable,
			"metadata": md,
		}
	}
	return map[string]interface{}{"type": "struct", "fields": fields}
}

// MarshalJSON encodes the schema in the log's schemaString form.
func (t *StructType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.jsonValue())
}

// UnmarshalJSON decodes a schema in the log's schemaString form.
func (t *StructType) UnmarshalJSON(b []byte) error {
	st, err := ParseSchema(string(b))
	if err != nil {
		return err
	}
	*t = *st
	return nil
}

// Clone returns a deep copy of the schema.
func (t *StructType) Clone() *StructType {
	if t == nil {
		return nil
	}
	return cloneType(t).(*StructType)
}

func cloneType(dt DataType) DataType {
	switch t := dt.(type) {
	case *PrimitiveType:
		c := *t
		return &c
	case *DecimalType:
		c := *t
		return &c
	case *ArrayType:
		return &ArrayType{ElementType: cloneType(t.ElementType), ContainsNull: t.ContainsNull}
	case *MapType:
		return &MapType{KeyType: cloneType(t.KeyType), ValueType: cloneType(t.ValueType), ValueContainsNull: t.ValueContainsNull}
	case *StructType:
		fields := make([]StructField, len(t.Fields))
		for i, f := range t.Fields {
			f.Type = cloneType(f.Type)
			f.Metadata = maps.Clone(f.Metadata)
			fields[i] = f
		}
		return &StructType{Fields: fields}
	}
	return dt
}

// Field returns the field with the given name.
func (t *StructType) Field(name string) (StructField, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return StructField{}, false
}

// ParseSchema decodes a schemaString.
func ParseSchema(schemaString string) (*StructType, error) {
	dt, err := parseDataType(json.RawMessage(schemaString))
	if err != nil {
		return nil, err
	}
	st, ok := dt.(*StructType)
	if !ok {
		return nil, fmt.Errorf("schema must be a struct, got %s", dt.TypeName())
	}
	return st, nil
}

type rawType struct {
	Type              string          `json:"type"`
	Fields            []rawField      `json:"fields"`
	ElementType       json.RawMessage `json:"elementType"`
	ContainsNull      bool            `json:"containsNull"`
	KeyType           json.RawMessage `json:"keyType"`
	ValueType         json.RawMessage `json:"valueType"`
	ValueContainsNull bool            `json:"valueContainsNull"`
}

type rawField struct {
	Name     string                 `json:"name"`
	Type     json.RawMessage        `json:"type"`
	Nullable bool                   `json:"nullable"`
	Metadata map[string]interface{} `json:"metadata"`
}

func parseDataType(raw json.RawMessage) (DataType, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing type")
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return parsePrimitive(name)
	}

	var rt rawType
	if err := json.Unmarshal(raw, &rt); err != nil {
		return nil, fmt.Errorf("invalid type %s: %w", raw, err)
	}
	switch rt.Type {
	case "struct":
		st := &StructType{Fields: make([]StructField, 0, len(rt.Fields))}
		for _, f := range rt.Fields {
			if f.Name == "" {
				return nil, fmt.Errorf("struct field without a name")
			}
			ft, err := parseDataType(f.Type)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", f.Name, err)
			}
			st.Fields = append(st.Fields, StructField{Name: f.Name, Type: ft, Nullable: f.Nullable, Metadata: f.Metadata})
		}
		return st, nil
	case "array":
		elem, err := parseDataType(rt.ElementType)
		if err != nil {
			return nil, fmt.Errorf("array element: %w", err)
		}
		return &ArrayType{ElementType: elem, ContainsNull: rt.ContainsNull}, nil
	case "map":
		key, err := parseDataType(rt.KeyType)
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		value, err := parseDataType(rt.ValueType)
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		return &MapType{KeyType: key, ValueType: value, ValueContainsNull: rt.ValueContainsNull}, nil
	}
	return nil, fmt.Errorf("unknown type %q", rt.Type)
}

func parsePrimitive(name string) (DataType, error) {
	if primitiveTypes[name] {
		return &PrimitiveType{Name: name}, nil
	}
	if m := decimalPattern.FindStringSubmatch(name); m != nil {
		p, _ := strconv.Atoi(m[1])
		s, _ := strconv.Atoi(m[2])
		if p < 1 || p > 38 || s > p {
			return nil, fmt.Errorf("invalid decimal precision/scale in %q", name)
		}
		return &DecimalType{Precision: p, Scale: s}, nil
	}
	if name == "decimal" {
		return &DecimalType{Precision: 10, Scale: 0}, nil
	}
	return nil, fmt.Errorf("unknown primitive type %q", name)
}
