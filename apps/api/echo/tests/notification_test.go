package tests

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/kinderhub/apps/api/echo"
	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/notification"
	"github.com/trezcool/kinderhub/core/user"
	"github.com/trezcool/kinderhub/tests"
)

func Test_notificationApi(t *testing.T) {
	a := setup(t)
	env := a.env
	ctx := context.Background()

	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin1", "", "", []string{user.RoleAdmin}, true)
	staff := testutil.CreateUser(t, env.UserRepo, "Gate", "gate01", "", "", []string{user.RoleStaff}, true)
	parent := testutil.CreateUser(t, env.UserRepo, "Amina", "amina", "", "", []string{user.RoleParent}, true)
	lina := testutil.CreateChild(t, env.ChildRepo, "Lina", parent.ID, child.StatusAbsent)
	tom := testutil.CreateChild(t, env.ChildRepo, "Tom", parent.ID, child.StatusAbsent)

	for _, c := range []child.Child{lina, tom} {
		_, err := env.AttendanceSvc.ProcessScan(ctx, c.QRCode, staff.ID)
		require.NoError(t, err)
	}
	all, err := env.NotificationSvc.QueryForRecipient(ctx, notification.QueryFilter{RecipientID: admin.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	var linaNotif notification.Notification
	for _, n := range all {
		if n.ChildID == lina.ID {
			linaNotif = n
		}
	}

	adminToken := getToken(t, env.Conf, admin)
	tests := []httpTest{
		{name: "staff", method: http.MethodGet, path: "/v1/notifications", token: getToken(t, env.Conf, staff), wantCode: http.StatusForbidden, wantData: marshallObj(t, errForbidden)},
		{name: "all", method: http.MethodGet, path: "/v1/notifications", token: adminToken, wantCode: http.StatusOK, wantData: marshallObj(t, all)},
		{name: "by child", method: http.MethodGet, path: "/v1/notifications?child_id=" + lina.ID, token: adminToken, wantCode: http.StatusOK, wantData: marshallObj(t, []notification.Notification{linaNotif})},
		{name: "unread count", method: http.MethodGet, path: "/v1/notifications/unread-count", token: adminToken, wantCode: http.StatusOK, wantData: marshallObj(t, CountResponse{Count: 2})},
		{name: "mark read: no ids", method: http.MethodPost, path: "/v1/notifications/read", token: adminToken, body: []byte(`{"ids":[]}`), wantCode: http.StatusBadRequest},
		{name: "mark read", method: http.MethodPost, path: "/v1/notifications/read", token: adminToken, body: marshallObj(t, notification.MarkReadRequest{IDs: []string{linaNotif.ID}}), wantCode: http.StatusOK, wantData: marshallObj(t, CountResponse{Count: 1})},
		{name: "unread count after read", method: http.MethodGet, path: "/v1/notifications/unread-count", token: adminToken, wantCode: http.StatusOK, wantData: marshallObj(t, CountResponse{Count: 1})},
		{name: "unread only", method: http.MethodGet, path: "/v1/notifications?unread=true&child_id=" + lina.ID, token: adminToken, wantCode: http.StatusOK, wantData: []byte("[]")},
		{name: "mark all read", method: http.MethodPost, path: "/v1/notifications/read-all", token: adminToken, wantCode: http.StatusOK, wantData: marshallObj(t, CountResponse{Count: 1})},
		{name: "clear", method: http.MethodDelete, path: "/v1/notifications", token: adminToken, wantCode: http.StatusNoContent},
		{name: "cleared", method: http.MethodGet, path: "/v1/notifications", token: adminToken, wantCode: http.StatusOK, wantData: []byte("[]")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, a.do(tt))
		})
	}
}

func Test_notificationApi_live(t *testing.T) {
	a := setup(t)
	env := a.env

	admin := testutil.CreateUser(t, env.UserRepo, "Admin", "admin1", "", "", []string{user.RoleAdmin}, true)
	staff := testutil.CreateUser(t, env.UserRepo, "Gate", "gate01", "", "", []string{user.RoleStaff}, true)
	parent := testutil.CreateUser(t, env.UserRepo, "Amina", "amina", "", "", []string{user.RoleParent}, true)
	lina := testutil.CreateChild(t, env.ChildRepo, "Lina", parent.ID, child.StatusAbsent)

	srv := httptest.NewServer(a)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/notifications/live?token="

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+getToken(t, env.Conf, staff), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	wc, _, err := websocket.DefaultDialer.Dial(wsURL+getToken(t, env.Conf, admin), nil)
	require.NoError(t, err)
	defer wc.Close()

	require.Eventually(t, func() bool { return env.Hub.Subscribers(admin.ID) == 1 }, time.Second, 10*time.Millisecond)

	_, err = env.AttendanceSvc.ProcessScan(context.Background(), lina.QRCode, staff.ID)
	require.NoError(t, err)

	var n notification.Notification
	require.NoError(t, wc.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, wc.ReadJSON(&n))
	assert.Equal(t, admin.ID, n.RecipientID)
	assert.Equal(t, lina.ID, n.ChildID)
	assert.Equal(t, notification.TypeCheckIn, n.Type)

	require.NoError(t, wc.Close())
	assert.Eventually(t, func() bool { return env.Hub.Subscribers(admin.ID) == 0 }, time.Second, 10*time.Millisecond)
}
