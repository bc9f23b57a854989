package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "aegis/pkg/domain-errors"
)

type updateProfileBody struct {
	DisplayName string `validate:"required,notblank,max=100"`
	Email       string `validate:"omitempty,email"`
	Website     string `validate:"omitempty,url"`
}

func TestValidate(t *testing.T) {
	t.Run("valid body passes", func(t *testing.T) {
		err := Validate(updateProfileBody{
			DisplayName: "Ada",
			Email:       "ada@example.com",
			Website:     "https://example.com",
		})
		assert.NoError(t, err)
	})

	t.Run("missing required field", func(t *testing.T) {
		err := Validate(updateProfileBody{})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.ErrorContains(t, err, "display_name is required")
	})

	t.Run("blank required field", func(t *testing.T) {
		err := Validate(updateProfileBody{DisplayName: "   "})
		assert.ErrorContains(t, err, "display_name must not be blank")
	})

	t.Run("bad email", func(t *testing.T) {
		err := Validate(updateProfileBody{DisplayName: "Ada", Email: "not-an-email"})
		assert.ErrorContains(t, err, "email must be a valid email")
	})

	t.Run("acronym field names stay intact", func(t *testing.T) {
		type body struct {
			CSRFToken string `validate:"required"`
		}
		err := Validate(body{})
		assert.ErrorContains(t, err, "csrf_token is required")
	})

	t.Run("bad url", func(t *testing.T) {
		err := Validate(updateProfileBody{DisplayName: "Ada", Website: "::bad::"})
		assert.ErrorContains(t, err, "website must be a valid url")
	})
}
