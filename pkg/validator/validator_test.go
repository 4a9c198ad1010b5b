package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleInput struct {
	Username string `validate:"required,min=3"`
	Email    string `validate:"required,email"`
	Schedule string `validate:"omitempty,cron"`
	Driver   string `validate:"omitempty,db_driver"`
	Type     string `validate:"omitempty,migration_type"`
}

func TestValidate(t *testing.T) {
	v := New()

	t.Run("valid input passes", func(t *testing.T) {
		err := v.Validate(sampleInput{
			Username: "alice",
			Email:    "alice@example.com",
			Schedule: "0 6 * * *",
			Driver:   "postgres",
			Type:     "users",
		})
		assert.NoError(t, err)
	})

	t.Run("reports snake_case fields with readable messages", func(t *testing.T) {
		err := v.Validate(sampleInput{Username: "al", Email: "nope"})
		require.Error(t, err)

		var verrs ValidationErrors
		require.True(t, errors.As(err, &verrs))
		require.Len(t, verrs, 2)
		assert.Equal(t, "username", verrs[0].Field)
		assert.Equal(t, "must be at least 3 characters", verrs[0].Message)
		assert.Equal(t, "email", verrs[1].Field)
		assert.Equal(t, "must be a valid email address", verrs[1].Message)
	})

	t.Run("custom validators", func(t *testing.T) {
		tests := []struct {
			name  string
			input sampleInput
			field string
		}{
			{
				name:  "bad cron expression",
				input: sampleInput{Username: "alice", Email: "a@b.co", Schedule: "not a cron"},
				field: "schedule",
			},
			{
				name:  "unknown driver",
				input: sampleInput{Username: "alice", Email: "a@b.co", Driver: "mongodb"},
				field: "driver",
			},
			{
				name:  "unknown migration type",
				input: sampleInput{Username: "alice", Email: "a@b.co", Type: "groups"},
				field: "type",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := v.Validate(tt.input)
				require.Error(t, err)

				var verrs ValidationErrors
				require.True(t, errors.As(err, &verrs))
				require.Len(t, verrs, 1)
				assert.Equal(t, tt.field, verrs[0].Field)
			})
		}
	})
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Username", "username"},
		{"FullName", "full_name"},
		{"OwnerEmail", "owner_email"},
		{"URL", "u_r_l"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, toSnakeCase(tt.in))
	}
}
