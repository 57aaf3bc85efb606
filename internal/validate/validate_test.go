package validate

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func payloadJSON(t *testing.T, m map[string]any) []byte {
	t.Helper()
	b, err := json.Marshal(m)
	require.NoError(t, err)
	return b
}

func repeat(n int, v string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestValidate_FullPayload(t *testing.T) {
	res := Validate(payloadJSON(t, map[string]any{
		"name":           "Jane Doe",
		"email":          "jane@example.com",
		"phone":          "(555) 123-4567",
		"prayer_request": "For my family",
		"visit_status":   "first time",
		"interests":      []string{"volunteer", "youth"},
		"keywords":       []string{"Impacted"},
	}))
	require.True(t, res.Success, res.Errors)
	require.NotNil(t, res.Data)
	assert.Equal(t, "Jane Doe", *res.Data.Name)
	assert.Equal(t, []string{"Impacted"}, res.Data.Keywords)
	assert.NoError(t, res.Err())
}

func TestValidate_AnonymousCard(t *testing.T) {
	res := Validate([]byte(`{"name":null,"email":null,"phone":null,"prayer_request":"Pray for healing","visit_status":null,"interests":null,"keywords":null}`))
	require.True(t, res.Success, res.Errors)
	assert.Nil(t, res.Data.Name)
	assert.Nil(t, res.Data.Email)
	assert.Equal(t, "Pray for healing", *res.Data.PrayerRequest)
}

func TestValidate_AllFieldsOmitted(t *testing.T) {
	res := Validate([]byte(`{}`))
	assert.True(t, res.Success)
}

func TestValidate_KeywordBounds(t *testing.T) {
	ok := Validate(payloadJSON(t, map[string]any{"keywords": []string{strings.Repeat("k", 50)}}))
	assert.True(t, ok.Success)

	tooLong := Validate(payloadJSON(t, map[string]any{"keywords": []string{strings.Repeat("k", 51)}}))
	require.False(t, tooLong.Success)
	assert.Equal(t, "max", tooLong.Errors[0].Rule)
	assert.Contains(t, tooLong.Errors[0].Field, "keywords")

	ten := Validate(payloadJSON(t, map[string]any{"keywords": repeat(10, "k")}))
	assert.True(t, ten.Success)

	eleven := Validate(payloadJSON(t, map[string]any{"keywords": repeat(11, "k")}))
	require.False(t, eleven.Success)
	assert.Contains(t, eleven.Errors[0].Message, "at most 10 entries")
}

func TestValidate_InterestBounds(t *testing.T) {
	assert.True(t, Validate(payloadJSON(t, map[string]any{"interests": repeat(20, strings.Repeat("i", 100))})).Success)
	assert.False(t, Validate(payloadJSON(t, map[string]any{"interests": repeat(21, "i")})).Success)
	assert.False(t, Validate(payloadJSON(t, map[string]any{"interests": []string{strings.Repeat("i", 101)}})).Success)
}

func TestValidate_StringBounds(t *testing.T) {
	tests := []struct {
		field string
		limit int
	}{
		{"name", MaxNameLen},
		{"prayer_request", MaxPrayerRequestLen},
		{"phone", MaxPhoneLen},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.True(t, Validate(payloadJSON(t, map[string]any{tt.field: strings.Repeat("a", tt.limit)})).Success)
			res := Validate(payloadJSON(t, map[string]any{tt.field: strings.Repeat("a", tt.limit+1)}))
			require.False(t, res.Success)
			assert.Equal(t, tt.field, res.Errors[0].Field)
		})
	}
}

func TestValidate_NameCountsCharactersNotBytes(t *testing.T) {
	res := Validate(payloadJSON(t, map[string]any{"name": strings.Repeat("é", MaxNameLen)}))
	assert.True(t, res.Success)
}

func TestValidate_Email(t *testing.T) {
	assert.False(t, Validate([]byte(`{"email":"not-an-email"}`)).Success)
	assert.False(t, Validate([]byte(`{"email":""}`)).Success)

	long := strings.Repeat("a", 250) + "@x.com"
	res := Validate(payloadJSON(t, map[string]any{"email": long}))
	assert.False(t, res.Success)
}

func TestValidate_TypeViolations(t *testing.T) {
	cases := []string{
		`{"name": 42}`,
		`{"interests": "volunteer"}`,
		`{"keywords": [1, 2]}`,
		`{"email": true}`,
		`{"prayer_request": {"text": "x"}}`,
	}
	for _, c := range cases {
		res := Validate([]byte(c))
		require.False(t, res.Success, c)
		assert.Equal(t, "type", res.Errors[0].Rule, c)
		err := res.Err()
		require.Error(t, err)
		assert.True(t, eris.Is(err, ErrInvalidPayload), c)
		assert.Contains(t, err.Error(), res.Errors[0].Message, c)
	}
}

func TestValidate_NotAnObject(t *testing.T) {
	for _, c := range []string{``, `null`, `[]`, `"name"`, `{"name":"a"} {"name":"b"}`, `{"name":`} {
		assert.False(t, Validate([]byte(c)).Success, c)
	}
}

func TestValidate_RoundTripIdempotent(t *testing.T) {
	inputs := [][]byte{
		[]byte(`{"name":"Sam","email":"sam@example.org","interests":["kids"],"keywords":["Coffee Oasis"]}`),
		[]byte(`{"prayer_request":"Anonymous"}`),
		[]byte(`{"keywords":[]}`),
	}
	for _, in := range inputs {
		first := Validate(in)
		require.True(t, first.Success)

		again, err := json.Marshal(first.Data)
		require.NoError(t, err)
		second := Validate(again)
		require.True(t, second.Success, string(again))
		assert.Equal(t, first.Data, second.Data)
	}
}

func TestStruct_Nil(t *testing.T) {
	assert.False(t, Struct(nil).Success)
}
