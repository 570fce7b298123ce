package user_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/authz"
	"github.com/trezcool/conservatoire/core/user"
	"github.com/trezcool/conservatoire/testutil"
)

const pwd = "Gr4nd-Pi4no!"

func fieldErrors(t *testing.T, err error) map[string]string {
	vErr, ok := err.(*core.ValidationError)
	if !ok {
		t.Fatalf("expected a *core.ValidationError, got %T: %v", err, err)
	}
	flds := make(map[string]string, len(vErr.Fields))
	for _, f := range vErr.Fields {
		flds[f.Field] = f.Error
	}
	return flds
}

func TestService_Create(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	testutil.CreateUser(t, svcs.UserRepo, "Robert", "robert", "robert@schumann.de", pwd, user.RoleAdmin, "", true)

	tests := []struct {
		name       string
		nu         user.NewUser
		wantFields []string
	}{
		{
			name:       "no username nor email",
			nu:         user.NewUser{Name: "Clara", Role: "admin", Password: pwd, PasswordConfirm: pwd},
			wantFields: []string{"username", "email"},
		},
		{
			name:       "teacher without subject",
			nu:         user.NewUser{Name: "Clara", Username: "clara", Role: "teacher", Password: pwd, PasswordConfirm: pwd},
			wantFields: []string{"subject_id"},
		},
		{
			name:       "unknown role",
			nu:         user.NewUser{Name: "Clara", Username: "clara", Role: "janitor", SubjectID: "j1", Password: pwd, PasswordConfirm: pwd},
			wantFields: []string{"role"},
		},
		{
			name:       "weak password",
			nu:         user.NewUser{Name: "Clara", Username: "clara", Role: "admin", Password: "password", PasswordConfirm: "password"},
			wantFields: []string{"password"},
		},
		{
			name:       "password mismatch",
			nu:         user.NewUser{Name: "Clara", Username: "clara", Role: "admin", Password: pwd, PasswordConfirm: pwd + "?"},
			wantFields: []string{"password_confirm"},
		},
		{
			name:       "username taken",
			nu:         user.NewUser{Name: "Clara", Username: " Robert ", Role: "admin", Password: pwd, PasswordConfirm: pwd},
			wantFields: []string{"username"},
		},
		{
			name:       "email taken",
			nu:         user.NewUser{Name: "Clara", Email: "Robert@Schumann.de", Role: "admin", Password: pwd, PasswordConfirm: pwd},
			wantFields: []string{"email"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svcs.User.Create(ctx, tt.nu)
			require.Error(t, err)
			flds := fieldErrors(t, err)
			for _, f := range tt.wantFields {
				assert.Contains(t, flds, f)
			}
		})
	}

	usr, err := svcs.User.Create(ctx, user.NewUser{
		Name:            "Clara",
		Username:        "Clara",
		Role:            "Student",
		SubjectID:       "s1",
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	require.NoError(t, err)
	assert.Equal(t, "clara", usr.Username)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword(pwd))

	role, err := usr.AuthzRole()
	require.NoError(t, err)
	assert.Equal(t, authz.Student("s1"), role)
}

func TestService_Authenticate(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	active := testutil.CreateUser(t, svcs.UserRepo, "Clara", "clara", "clara@wieck.de", pwd, user.RoleTeacher, "t1", true)
	testutil.CreateUser(t, svcs.UserRepo, "Robert", "robert", "robert@schumann.de", pwd, user.RoleTeacher, "t2", false)

	tests := []struct {
		name    string
		uname   string
		pwd     string
		wantErr error
	}{
		{"unknown account", "johannes", pwd, user.ErrInvalidCredentials},
		{"wrong password", "clara", "lol", user.ErrInvalidCredentials},
		{"deactivated", "robert", pwd, user.ErrAccountDeactivated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svcs.User.Authenticate(ctx, tt.uname, tt.pwd)
			assert.Equal(t, tt.wantErr, err)
		})
	}

	for _, uname := range []string{"clara", " CLARA@wieck.de "} {
		usr, err := svcs.User.Authenticate(ctx, uname, pwd)
		require.NoError(t, err)
		assert.Equal(t, active.ID, usr.ID)
		assert.NotNil(t, usr.LastLogin)
	}
}

func TestService_ResetPassword(t *testing.T) {
	svcs := testutil.NewServices()
	ctx := context.Background()
	testutil.CreateUser(t, svcs.UserRepo, "Clara", "clara", "clara@wieck.de", pwd, user.RoleAdmin, "", true)

	err := svcs.User.ResetPassword(ctx, "johannes", "n3w-Passw0rd")
	assert.True(t, core.IsNotFound(err), "unexpected error: %v", err)

	require.NoError(t, svcs.User.ResetPassword(ctx, "clara", "n3w-Passw0rd"))

	_, err = svcs.User.Authenticate(ctx, "clara", pwd)
	assert.Equal(t, user.ErrInvalidCredentials, err)
	_, err = svcs.User.Authenticate(ctx, "clara", "n3w-Passw0rd")
	assert.NoError(t, err)
}
