package validator

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=6"`
	FirstName string  `json:"firstName" validate:"required,notblank,max=100"`
	Role      *string `json:"role,omitempty" validate:"omitempty,oneof=admin manager dev guest"`
}

func TestValidate_Success(t *testing.T) {
	s := signup{Email: "alice@example.com", Password: "Password123", FirstName: "Alice"}
	assert.NoError(t, Validate(s))
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := Validate(signup{Password: "Password123", FirstName: "Alice"})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, map[string]string{"email": "is required"}, valErr.Fields())
}

func TestValidate_Messages(t *testing.T) {
	role := "owner"
	err := Validate(signup{Email: "nope", Password: "abc", FirstName: "   ", Role: &role})
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Equal(t, "must be a valid email address", fields["email"])
	assert.Equal(t, "must be at least 6 characters", fields["password"])
	assert.Equal(t, "must not be blank", fields["firstName"])
	assert.Equal(t, "must be one of: admin manager dev guest", fields["role"])
	assert.Contains(t, valErr.Error(), "field 'email'")
}

func TestDecodeAndValidate(t *testing.T) {
	body := `{"email":"alice@example.com","password":"Password123","firstName":"Alice"}`
	r := httptest.NewRequest("POST", "/", strings.NewReader(body))
	w := httptest.NewRecorder()

	var dst signup
	require.NoError(t, DecodeAndValidate(w, r, &dst, false))
	assert.Equal(t, "Alice", dst.FirstName)
}

func TestDecodeAndValidate_MalformedJSON(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"email":`))
	w := httptest.NewRecorder()

	var dst signup
	err := DecodeAndValidate(w, r, &dst, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_EmptyBody(t *testing.T) {
	type optional struct {
		RefreshToken string `json:"refreshToken"`
	}

	var dst optional
	r := httptest.NewRequest("POST", "/", strings.NewReader(""))
	assert.NoError(t, DecodeAndValidate(httptest.NewRecorder(), r, &dst, true))

	r = httptest.NewRequest("POST", "/", strings.NewReader(""))
	assert.Error(t, DecodeAndValidate(httptest.NewRecorder(), r, &dst, false))
}

func TestDecodeAndValidate_BodyTooLarge(t *testing.T) {
	big := `{"email":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	r := httptest.NewRequest("POST", "/", strings.NewReader(big))

	var dst signup
	assert.Error(t, DecodeAndValidate(httptest.NewRecorder(), r, &dst, false))
}
