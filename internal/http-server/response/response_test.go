package response_test

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheBrit007/rork-shield-watch/internal/http-server/response"
)

func TestOK(t *testing.T) {
	resp := response.OK()
	assert.Equal(t, response.StatusOK, resp.Status)
	assert.Empty(t, resp.Error)
}

func TestError(t *testing.T) {
	resp := response.Error("something broke")
	assert.Equal(t, response.StatusError, resp.Status)
	assert.Equal(t, "something broke", resp.Error)
}

func TestStatusOKWithData(t *testing.T) {
	resp := response.StatusOKWithData(map[string]any{"upvotes": 3})
	assert.Equal(t, response.StatusOK, resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestValidationError(t *testing.T) {
	type req struct {
		Username string `validate:"required"`
		Email    string `validate:"required,email"`
	}

	err := validator.New().Struct(req{Email: "not-an-email"})
	require.Error(t, err)
	validateErrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)

	resp := response.ValidationError(validateErrs)
	assert.Equal(t, response.StatusError, resp.Status)
	assert.Contains(t, resp.Error, "Username is a required field")
	assert.Contains(t, resp.Error, "Email must be a valid email")
}
