package child_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/user"
	"github.com/trezcool/kinderhub/tests"
)

func TestService_Register(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	parent := testutil.CreateUser(t, env.UserRepo, "Amina", "amina", "amina@test.cd", "", []string{user.RoleParent}, true)
	staff := testutil.CreateUser(t, env.UserRepo, "Gate", "gate01", "", "", []string{user.RoleStaff}, true)

	c, err := env.ChildSvc.Register(ctx, child.NewChild{Name: "Lina", ParentID: parent.ID})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, child.StatusAbsent, c.Status)
	assert.Len(t, c.QRCode, 32)
	assert.Equal(t, parent.ID, c.ParentID)

	tests := []struct {
		name      string
		parentID  string
		wantField string
	}{
		{name: "unknown parent", parentID: "7b4b6f1e-3c2a-4d8e-9f10-2a3b4c5d6e7f", wantField: "parent_id"},
		{name: "not a parent", parentID: staff.ID, wantField: "parent_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.ChildSvc.Register(ctx, child.NewChild{Name: "Tom", ParentID: tt.parentID})
			vErr, ok := errors.Cause(err).(*core.ValidationError)
			require.True(t, ok, "want a validation error, got %v", err)
			require.Len(t, vErr.Fields, 1)
			assert.Equal(t, tt.wantField, vErr.Fields[0].Field)
		})
	}
}

func TestService_GetByQRCode(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	parent := testutil.CreateUser(t, env.UserRepo, "Amina", "amina", "", "", []string{user.RoleParent}, true)
	lina := testutil.CreateChild(t, env.ChildRepo, "Lina", parent.ID, child.StatusAbsent)

	c, err := env.ChildSvc.GetByQRCode(ctx, " "+lina.QRCode+" ")
	require.NoError(t, err)
	assert.Equal(t, lina.ID, c.ID)

	_, err = env.ChildSvc.GetByQRCode(ctx, "")
	assert.Equal(t, child.ErrNotFound, errors.Cause(err))

	// a regenerated badge invalidates the previous one
	regen, err := env.ChildSvc.RegenerateQRCode(ctx, lina.ID)
	require.NoError(t, err)
	assert.NotEqual(t, lina.QRCode, regen.QRCode)

	_, err = env.ChildSvc.GetByQRCode(ctx, lina.QRCode)
	assert.Equal(t, child.ErrNotFound, errors.Cause(err))
	c, err = env.ChildSvc.GetByQRCode(ctx, regen.QRCode)
	require.NoError(t, err)
	assert.Equal(t, lina.ID, c.ID)
}

func TestService_OverrideStatus_and_ResetStatuses(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	parent := testutil.CreateUser(t, env.UserRepo, "Amina", "amina", "", "", []string{user.RoleParent}, true)
	lina := testutil.CreateChild(t, env.ChildRepo, "Lina", parent.ID, child.StatusAbsent)
	tom := testutil.CreateChild(t, env.ChildRepo, "Tom", parent.ID, child.StatusPresent)
	testutil.CreateChild(t, env.ChildRepo, "Zoe", parent.ID, child.StatusAbsent)

	c, err := env.ChildSvc.OverrideStatus(ctx, lina.ID, child.StatusPickupRequested)
	require.NoError(t, err)
	assert.Equal(t, child.StatusPickupRequested, c.Status)

	_, err = env.ChildSvc.OverrideStatus(ctx, "7b4b6f1e-3c2a-4d8e-9f10-2a3b4c5d6e7f", child.StatusAbsent)
	assert.Equal(t, child.ErrNotFound, errors.Cause(err))

	n, err := env.ChildSvc.ResetStatuses(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{lina.ID, tom.ID} {
		c, err := env.ChildSvc.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, child.StatusAbsent, c.Status)
	}
}

func TestService_Query(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	amina := testutil.CreateUser(t, env.UserRepo, "Amina", "amina", "", "", []string{user.RoleParent}, true)
	omar := testutil.CreateUser(t, env.UserRepo, "Omar", "omar01", "", "", []string{user.RoleParent}, true)
	lina := testutil.CreateChild(t, env.ChildRepo, "Lina", amina.ID, child.StatusAbsent)
	tom := testutil.CreateChild(t, env.ChildRepo, "Tom", omar.ID, child.StatusPresent)

	tests := []struct {
		name   string
		filter *child.QueryFilter
		want   []string
	}{
		{name: "all", want: []string{lina.ID, tom.ID}},
		{name: "by parent", filter: &child.QueryFilter{ParentID: omar.ID}, want: []string{tom.ID}},
		{name: "by status", filter: &child.QueryFilter{Status: child.StatusAbsent}, want: []string{lina.ID}},
		{name: "by name", filter: &child.QueryFilter{Search: "LIN"}, want: []string{lina.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			children, err := env.ChildSvc.Query(ctx, tt.filter, nil)
			require.NoError(t, err)
			ids := make([]string, 0, len(children))
			for _, c := range children {
				ids = append(ids, c.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}
