package render

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestValidator_ZipCode(t *testing.T) {
	v := validator.New()
	configureValidator(v)

	type address struct {
		ZipCode string `json:"zipCode" validate:"omitempty,zipcode"`
	}

	tests := []struct {
		value string
		valid bool
	}{
		{"01310-100", true},
		{"01310100", true},
		{"", true},
		{"0131-0100", false},
		{"01310-10", false},
		{"abcde-fgh", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			err := v.Struct(address{ZipCode: tt.value})

			if tt.valid {
				require.NoError(t, err)
				return
			}
			var errs validator.ValidationErrors
			require.ErrorAs(t, err, &errs)
			require.Equal(t, "zipCode", errs[0].Field(), "json name should be used")
		})
	}
}
