package errutil

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestValidationDetails(t *testing.T) {
	type query struct {
		Limit int `validate:"gte=0"`
	}

	err := validator.New().Struct(query{Limit: -1})
	require.Error(t, err)

	details := ValidationDetails(err)
	require.Equal(t, []Detail{{Field: "Limit", Message: "failed on gte=0"}}, details)

	require.Nil(t, ValidationDetails(errors.New("plain")))
}

func TestFrom(t *testing.T) {
	be := From(Timeout("upstream timed out", errors.New("deadline")))
	require.Equal(t, StatusTimeout, be.Code)
	require.Equal(t, 504, be.Code.HTTPStatus())

	be = From(Internal("failed", errors.New("db down")))
	require.Equal(t, 500, be.Code.HTTPStatus())
	require.Equal(t, "failed", be.Message)
}
