package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/modernapi/identity-system/internal/core/domain"
)

func TestValidateRole(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *domain.Role)
		want   []string
	}{
		{
			name:   "valid",
			mutate: func(r *domain.Role) {},
			want:   []string{},
		},
		{
			name:   "nil id",
			mutate: func(r *domain.Role) { r.ID = uuid.Nil },
			want:   []string{"Role.Id can't be equal Guid.Empty"},
		},
		{
			name:   "name shorter than 4",
			mutate: func(r *domain.Role) { r.Name = r.Name[:3] },
			want: []string{
				"Role.Name can't have less than 4 characters",
				"Role.NormalizedName must be equal Role.Name in UpperCase",
			},
		},
		{
			name:   "name longer than 10",
			mutate: func(r *domain.Role) { r.Name = "MasterAdminFinalVersion" },
			want: []string{
				"Role.Name can't be greater than 10 characters",
				"Role.NormalizedName must be equal Role.Name in UpperCase",
			},
		},
		{
			name:   "empty name renamed through UpdateName",
			mutate: func(r *domain.Role) { r.UpdateName("") },
			want: []string{
				"Role.Name can't be empty",
				"Role.Name can't have less than 4 characters",
				"Role.NormalizedName can't be empty",
				"Role.NormalizedName can't have less than 4 characters",
			},
		},
		{
			name:   "empty normalized name",
			mutate: func(r *domain.Role) { r.NormalizedName = "" },
			want: []string{
				"Role.NormalizedName can't be empty",
				"Role.NormalizedName must be equal Role.Name in UpperCase",
				"Role.NormalizedName can't have less than 4 characters",
			},
		},
		{
			name:   "normalized name longer than 10",
			mutate: func(r *domain.Role) { r.NormalizedName = strings.ToUpper("MasterAdminFinalVersion") },
			want: []string{
				"Role.NormalizedName must be equal Role.Name in UpperCase",
				"Role.NormalizedName can't be greater than 10 characters",
			},
		},
		{
			name:   "empty concurrency stamp",
			mutate: func(r *domain.Role) { r.ConcurrencyStamp = "" },
			want:   []string{"Role.ConcurrencyStamp can't be empty"},
		},
		{
			name:   "nil concurrency stamp",
			mutate: func(r *domain.Role) { r.ConcurrencyStamp = uuid.Nil.String() },
			want:   []string{"Role.ConcurrencyStamp can't be equal Guid.Empty"},
		},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role := domain.NewRole("Admin")
			tt.mutate(role)
			require.Equal(t, tt.want, v.ValidateRole(role))
		})
	}
}

func TestValidateUser(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(u *domain.User)
		want   []string
	}{
		{
			name:   "valid",
			mutate: func(u *domain.User) {},
			want:   []string{},
		},
		{
			name:   "nil id",
			mutate: func(u *domain.User) { u.ID = uuid.Nil },
			want:   []string{"User.Id can't be equal Guid.Empty"},
		},
		{
			name:   "user name shorter than 4",
			mutate: func(u *domain.User) { u.UpdateUserName("bob") },
			want: []string{
				"User.UserName can't have less than 4 characters",
				"User.NormalizedUserName can't have less than 4 characters",
			},
		},
		{
			name:   "user name longer than 16",
			mutate: func(u *domain.User) { u.UserName = "a_very_long_user_name" },
			want: []string{
				"User.UserName can't be greater than 16 characters",
				"User.NormalizedUserName must be equal User.UserName in UpperCase",
			},
		},
		{
			name:   "normalized user name out of sync",
			mutate: func(u *domain.User) { u.NormalizedUserName = "janedoe" },
			want:   []string{"User.NormalizedUserName must be equal User.UserName in UpperCase"},
		},
		{
			name:   "invalid email",
			mutate: func(u *domain.User) { u.UpdateEmail("not-an-email") },
			want: []string{
				"User.Email must be a valid email",
				"User.NormalizedEmail must be a valid email",
			},
		},
		{
			name:   "empty email",
			mutate: func(u *domain.User) { u.UpdateEmail("") },
			want: []string{
				"User.Email can't be empty",
				"User.Email must be a valid email",
				"User.NormalizedEmail can't be empty",
				"User.NormalizedEmail must be a valid email",
			},
		},
		{
			name:   "normalized email out of sync",
			mutate: func(u *domain.User) { u.NormalizedEmail = "OTHER@EXAMPLE.COM" },
			want:   []string{"User.NormalizedEmail must be equal User.NormalizedEmail in UpperCase"},
		},
		{
			name:   "empty concurrency stamp",
			mutate: func(u *domain.User) { u.ConcurrencyStamp = "" },
			want:   []string{"User.ConcurrencyStamp can't be empty"},
		},
		{
			name:   "nil concurrency stamp",
			mutate: func(u *domain.User) { u.ConcurrencyStamp = uuid.Nil.String() },
			want:   []string{"User.ConcurrencyStamp can't be equal Guid.Empty"},
		},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user := domain.NewUser("johndoe", "john.doe@example.com")
			tt.mutate(user)
			require.Equal(t, tt.want, v.ValidateUser(user))
		})
	}
}

func TestValidateIsDeterministic(t *testing.T) {
	v := New()
	user := domain.NewUser("", "")
	user.ID = uuid.Nil
	user.ConcurrencyStamp = ""

	first := v.ValidateUser(user)
	second := v.ValidateUser(user)

	require.NotEmpty(t, first)
	require.Equal(t, first, second)
}
