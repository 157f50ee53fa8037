package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/user"
	sqlxrepos "github.com/trezcool/kinderhub/storage/database/sqlx"
	testutil "github.com/trezcool/kinderhub/tests"
)

var (
	usrRepo   user.Repository
	childRepo child.Repository
)

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	db := testutil.PrepareDB(t)
	usrRepo = sqlxrepos.NewUserRepository(db)
	childRepo = sqlxrepos.NewChildRepository(db)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	child.InitValidators(validate, translator)

	// start CLI
	return &commandLine{
		db:       db,
		usrRepo:  usrRepo,
		childSvc: child.NewService(childRepo, user.NewService(usrRepo)),
		validate: validate,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Equal(t, tt.wantErrStr, err.Error())
		}
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(db *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "badge", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		tt := tt
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	existing := testutil.CreateUser(t, usrRepo, "Old Name", "awe", "awe@test.cd", "", []string{user.RoleParent}, false)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no email", args: []string{"adduser", "-username", "jdoe"}, extra: extra{pwd: "lol"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "jdoe", "-email", "jdoe@test.cd"}, wantErr: errHelp},
		{name: "unknown role", args: []string{"adduser", "-username", "jdoe", "-email", "jdoe@test.cd", "-role", "lol"}, extra: extra{pwd: "lol"}, wantErrStr: "unknown role \"lol\""},
		{name: "create admin", args: []string{"adduser", "-username", "jdoe", "-email", "jdoe@test.cd"}, extra: extra{pwd: "lol"}},
		{name: "create parent", args: []string{"adduser", "-username", "amina", "-email", "amina@test.cd", "-name", "Amina", "-phone", "+243810000000", "-role", "parent"}, extra: extra{pwd: "lol"}},
		{name: "update existing", args: []string{"adduser", "-username", "AWE", "-email", "awe@test.cd", "-name", "New Name", "-role", "staff"}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		tt := tt
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	ctx := context.Background()
	t.Run("admin created", func(t *testing.T) {
		usr, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "jdoe"})
		require.NoError(t, err)
		assert.True(t, usr.IsAdmin())
		assert.True(t, usr.Active())
		assert.NoError(t, usr.CheckPassword("lol"))
	})
	t.Run("parent created", func(t *testing.T) {
		usr, err := usrRepo.GetUser(ctx, user.GetFilter{Email: "amina@test.cd"})
		require.NoError(t, err)
		assert.True(t, usr.IsParent())
		assert.Equal(t, "Amina", usr.Name)
		assert.Equal(t, "+243810000000", usr.Phone)
	})
	t.Run("existing updated", func(t *testing.T) {
		usr, err := usrRepo.GetUser(ctx, user.GetFilter{ID: existing.ID})
		require.NoError(t, err)
		assert.True(t, usr.IsStaff())
		assert.False(t, usr.IsParent())
		assert.True(t, usr.Active())
		assert.Equal(t, "New Name", usr.Name)
		assert.NoError(t, usr.CheckPassword("lmao"))
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "awe", "awe@test.cd", "", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		tt := tt
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addChild(t *testing.T) {
	cli := setup(t)

	parent := testutil.CreateUser(t, usrRepo, "Amina", "amina", "amina@test.cd", "", []string{user.RoleParent}, true)
	testutil.CreateUser(t, usrRepo, "Staff", "staff", "staff@test.cd", "", []string{user.RoleStaff}, true)

	tests := []cliTest{
		{name: "no args", args: []string{"addchild"}, wantErr: errHelp},
		{name: "no parent", args: []string{"addchild", "-name", "Lina"}, wantErr: errHelp},
		{name: "parent not found", args: []string{"addchild", "-name", "Lina", "-parent", "lol"}, wantErr: user.ErrNotFound},
		{
			name:    "not a parent",
			args:    []string{"addchild", "-name", "Lina", "-parent", "staff"},
			wantErr: core.NewValidationError(nil, core.FieldError{Field: "parent_id", Error: "user is not a parent"}),
		},
		{name: "by username", args: []string{"addchild", "-name", "Lina", "-parent", "amina"}},
		{name: "by email", args: []string{"addchild", "-name", "Tom", "-parent", "AMINA@test.cd"}},
	}
	for _, tt := range tests {
		tt := tt
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	children, err := childRepo.QueryChildren(context.Background(), &child.QueryFilter{ParentID: parent.ID}, nil)
	require.NoError(t, err)
	require.Len(t, children, 2)
	for _, c := range children {
		assert.Equal(t, child.StatusAbsent, c.Status)
		assert.NotEmpty(t, c.QRCode)
	}
}

func Test_commandLine_resetStatuses(t *testing.T) {
	cli := setup(t)

	parent := testutil.CreateUser(t, usrRepo, "Amina", "amina", "amina@test.cd", "", []string{user.RoleParent}, true)
	testutil.CreateChild(t, childRepo, "Lina", parent.ID, child.StatusPresent)
	testutil.CreateChild(t, childRepo, "Tom", parent.ID, child.StatusPickedUp)
	testutil.CreateChild(t, childRepo, "Zoe", parent.ID, child.StatusAbsent)

	require.NoError(t, cli.run([]string{"admin", "resetstatuses"}))

	children, err := childRepo.QueryChildren(context.Background(), &child.QueryFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, children, 3)
	for _, c := range children {
		assert.Equal(t, child.StatusAbsent, c.Status, c.Name)
	}
}
