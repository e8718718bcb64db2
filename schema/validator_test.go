package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "queue": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "backend": {"type": "string", "enum": ["file", "sqlite"]},
        "batch_size": {"type": "integer", "minimum": 1}
      }
    }
  }
}`

func TestValidate(t *testing.T) {
	v, err := NewValidator("test.json", []byte(testSchema))
	require.NoError(t, err)

	tests := []struct {
		name     string
		doc      interface{}
		wantErr  bool
		contains string
	}{
		{
			name: "valid",
			doc:  map[string]interface{}{"queue": map[string]interface{}{"backend": "sqlite", "batch_size": 5}},
		},
		{
			name:     "bad enum",
			doc:      map[string]interface{}{"queue": map[string]interface{}{"backend": "redis"}},
			wantErr:  true,
			contains: "/queue/backend",
		},
		{
			name:     "below minimum",
			doc:      map[string]interface{}{"queue": map[string]interface{}{"batch_size": 0}},
			wantErr:  true,
			contains: "/queue/batch_size",
		},
		{
			name:    "unknown section",
			doc:     map[string]interface{}{"printer": true},
			wantErr: true,
		},
		{
			name: "struct input",
			doc: struct {
				Queue struct {
					Backend string `json:"backend"`
				} `json:"queue"`
			}{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.doc)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.contains != "" {
				assert.Contains(t, err.Error(), tt.contains)
			}
		})
	}
}

func TestNewValidatorRejectsBadSchema(t *testing.T) {
	_, err := NewValidator("bad.json", []byte(`{"type": 12}`))
	assert.Error(t, err)
}

func TestComposeEmbedsExtensions(t *testing.T) {
	ext := `{"$schema": "http://json-schema.org/draft-07/schema#", "type": "object", "properties": {"level": {"type": "string"}}}`
	out, err := Compose([]byte(testSchema), map[string][]byte{"logging": []byte(ext)})
	require.NoError(t, err)

	v, err := NewValidator("composed.json", out)
	require.NoError(t, err)

	assert.NoError(t, v.Validate(map[string]interface{}{"logging": map[string]interface{}{"level": "debug"}}))
	assert.Error(t, v.Validate(map[string]interface{}{"logging": map[string]interface{}{"level": 3}}))
	assert.Error(t, v.Validate(map[string]interface{}{"printer": true}))
}

func TestComposeRejectsBadInput(t *testing.T) {
	_, err := Compose([]byte("{"), nil)
	assert.Error(t, err)

	_, err = Compose([]byte(testSchema), map[string][]byte{"logging": []byte("nope")})
	assert.Error(t, err)
}
