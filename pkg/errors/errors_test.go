package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	const fallback = "Failed to send alert. Please try again."

	cases := []struct {
		name string
		body string
		want string
	}{
		{"empty body", ``, fallback},
		{"html page", `<html>502</html>`, fallback},
		{"bare string", `"Service unavailable"`, "Service unavailable"},
		{"detail wins", `{"latitude":["bad"],"detail":"Not found."}`, "Not found."},
		{"error key", `{"error":"Assignment not found"}`, "Assignment not found"},
		{"errors map keeps server order", `{"errors":{"priority_level":["Invalid choice."],"alert_type":["Required."]}}`, "priority_level: Invalid choice."},
		{"field map", `{"alert_type":["\"X\" is not a valid choice."]}`, `alert_type: "X" is not a valid choice.`},
		{"field string", `{"status":"Only RESPONDING or RESOLVED allowed"}`, "status: Only RESPONDING or RESOLVED allowed"},
		{"numeric value", `{"rating":5}`, "rating: 5"},
		{"nested object", `{"location":{"latitude":["out of range"]}}`, "location: out of range"},
		{"form-wide errors unprefixed", `{"non_field_errors":["Invalid email or password."]}`, "Invalid email or password."},
		{"skips empty fields", `{"a":[],"b":null,"c":["third"]}`, "c: third"},
		{"empty detail falls through", `{"detail":"","name":["x"]}`, "name: x"},
		{"empty object", `{}`, fallback},
		{"array body", `["oops"]`, fallback},
		{"broken json", `{"detail":`, fallback},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseMessage([]byte(tc.body), fallback))
		})
	}
}

func TestFromResponse(t *testing.T) {
	t.Run("server rejection keeps fields", func(t *testing.T) {
		e := FromResponse(400, []byte(`{"alert_type":["Required."],"priority_level":["Required."]}`), "fallback")
		assert.Equal(t, KindServer, e.Kind)
		assert.Equal(t, 400, e.Code)
		assert.Equal(t, "alert_type: Required.", e.Error())
		require.Len(t, e.Fields, 2)
		assert.Equal(t, "Required.", e.Field("priority_level"))
	})

	t.Run("401 is auth", func(t *testing.T) {
		e := FromResponse(401, []byte(`{"detail":"Token is invalid or expired"}`), "fallback")
		assert.True(t, IsAuth(e))
		assert.Equal(t, "Token is invalid or expired", GetMessage(e))
	})
}

func TestKinds(t *testing.T) {
	root := stderrors.New("dial tcp: connection refused")
	te := Transport(root, "Failed to fetch history")

	wrapped := fmt.Errorf("fetch history: %w", te)
	assert.True(t, IsTransport(wrapped))
	assert.False(t, IsAuth(wrapped))
	assert.True(t, Is(wrapped, root))
	assert.Equal(t, root, Cause(te))

	v := Validation(FieldError{Field: "alert_type", Message: "Please select an emergency type"})
	assert.True(t, IsValidation(v))
	assert.Equal(t, "Please select an emergency type", v.Error())

	w := Wrap(te, "history unavailable")
	assert.Equal(t, KindTransport, w.Kind)
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestWithContextCopies(t *testing.T) {
	base := New("boom").WithContext("alert_id", "1")
	next := base.WithContext("route", "status")
	assert.Len(t, base.Context, 1)
	assert.Len(t, next.Context, 2)
	assert.Contains(t, fmt.Sprintf("%+v", next), "boom")
}
