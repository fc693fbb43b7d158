package mailshake

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawEvents(t *testing.T, js string) []json.RawMessage {
	t.Helper()
	var out []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(js), &out))
	return out
}

func TestCountUniqueOpens(t *testing.T) {
	events := rawEvents(t, `[
		{"recipient":{"emailAddress":"X@a.com"}},
		{"recipient":{"emailAddress":"x@a.com"}},
		{"id":7}
	]`)
	assert.Equal(t, 2, CountUniqueOpens(events))
}

func TestCountUniqueOpens_IgnoresAnonymousAndBroken(t *testing.T) {
	events := rawEvents(t, `[
		{"recipient":{}},
		"not an object",
		{"lead":{"emailAddress":"a@b.com"}},
		{"emailAddress":"A@B.com"}
	]`)
	assert.Equal(t, 1, CountUniqueOpens(events))
}

func TestActivityDedupKey(t *testing.T) {
	tests := []struct {
		name string
		js   string
		want string
		ok   bool
	}{
		{"recipient email wins", `{"recipient":{"emailAddress":"R@x.com"},"lead":{"emailAddress":"l@x.com"},"emailAddress":"t@x.com"}`, "r@x.com", true},
		{"lead email next", `{"recipient":{"emailAddress":""},"lead":{"emailAddress":"L@x.com"}}`, "l@x.com", true},
		{"top-level email last", `{"emailAddress":"T@x.com","id":3}`, "t@x.com", true},
		{"recipient id", `{"recipient":{"id":11},"lead":{"id":12},"id":13}`, "id:11", true},
		{"lead id", `{"lead":{"id":"12"},"recipientID":14}`, "id:12", true},
		{"recipientID", `{"recipientID":14,"leadID":15,"id":16}`, "id:14", true},
		{"leadID", `{"leadID":15,"id":16}`, "id:15", true},
		{"id", `{"id":16}`, "id:16", true},
		{"zero ids ignored", `{"id":0,"recipientID":null}`, "", false},
		{"nothing", `{}`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a Activity
			require.NoError(t, json.Unmarshal([]byte(tt.js), &a))
			key, ok := a.DedupKey()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestFlexID(t *testing.T) {
	var v struct {
		A, B, C, D, E FlexID
	}
	require.NoError(t, json.Unmarshal([]byte(`{"A":1472607,"B":"42","C":null,"D":{"x":1},"E":0}`), &v))
	assert.Equal(t, int64(1472607), v.A.Int64())
	assert.Equal(t, FlexID("42"), v.B)
	assert.Equal(t, FlexID(""), v.C)
	assert.Equal(t, FlexID(""), v.D)
	assert.Equal(t, FlexID(""), v.E)
	assert.Equal(t, int64(0), FlexID("abc").Int64())
}
