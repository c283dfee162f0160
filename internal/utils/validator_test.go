package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Phone    string   `json:"phone_number" validate:"required,e164"`
	Password string   `json:"password" validate:"required,min=6"`
	Members  []string `validate:"dive,mongodb"`
}

func TestValidate(t *testing.T) {
	fields, err := Validate(signup{Phone: "+15550001", Password: "secret1"})
	require.NoError(t, err)
	assert.Nil(t, fields)

	fields, err = Validate(signup{Phone: "555", Password: "x", Members: []string{"zz"}})
	require.Error(t, err)
	require.Len(t, fields, 3)
	assert.Equal(t, "e164", fields[0].Tag)
	assert.Contains(t, err.Error(), "Password must be at least 6")
}
