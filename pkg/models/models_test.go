package models

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestQueueItemFileFormat(t *testing.T) {
	item := QueueItem{
		SessionID:  "a1b2c3d4e5",
		PhotoPath:  "/pics/selfie_20261016_120000.jpg",
		EnqueuedAt: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
	}
	data, err := yaml.Marshal([]QueueItem{item})
	require.NoError(t, err)

	var raw []map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	assert.ElementsMatch(t, []string{"session_id", "photo_path", "enqueued_at"}, keysOf(raw[0]))
}

func TestModelTagsAreSerializationOnly(t *testing.T) {
	for _, v := range []interface{}{QueueItem{}, Session{}, Photo{}, QRPayload{}, UploadResult{}} {
		typ := reflect.TypeOf(v)
		for i := 0; i < typ.NumField(); i++ {
			f := typ.Field(i)
			_, hasDB := f.Tag.Lookup("db")
			assert.False(t, hasDB, "%s.%s", typ.Name(), f.Name)
		}
	}
}

func TestSessionCloneIsDeep(t *testing.T) {
	sess := &Session{ID: "s", Photos: []Photo{{LocalPath: "/a.jpg"}}}
	c := sess.Clone()
	c.Photos[0].Uploaded = true
	assert.False(t, sess.Photos[0].Uploaded)
}

func keysOf(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
