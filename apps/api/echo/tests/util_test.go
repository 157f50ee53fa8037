package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/kinderhub/apps/api/echo"
	"github.com/trezcool/kinderhub/core"
	"github.com/trezcool/kinderhub/core/attendance"
	"github.com/trezcool/kinderhub/core/child"
	"github.com/trezcool/kinderhub/core/user"
	"github.com/trezcool/kinderhub/tests"
)

var (
	morning = time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)

	errMissingToken = httpErr{Error: "missing or malformed jwt", Code: core.KindUnauthorized}
	errForbidden    = httpErr{Error: "permission denied", Code: core.KindForbidden}
	errNotFound     = httpErr{Error: "not found", Code: core.KindNotFound}
)

type app struct {
	*Server
	env *testutil.Env
}

func setup(t *testing.T) *app {
	env := testutil.NewEnv(t)
	env.AttendanceSvc.SetClock(func() time.Time { return morning })

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	child.InitValidators(validate, translator)
	attendance.InitValidators(validate, translator)

	server := NewServer(ServerDeps{
		Conf:            env.Conf,
		Logger:          env.Logger,
		Validate:        validate,
		Translator:      translator,
		UserSvc:         env.UserSvc,
		ChildSvc:        env.ChildSvc,
		AttendanceSvc:   env.AttendanceSvc,
		NotificationSvc: env.NotificationSvc,
		Hub:             env.Hub,
	})
	return &app{Server: server, env: env}
}

type httpErr struct {
	Error  string            `json:"error"`
	Code   core.ErrorKind    `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (a *app) do(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	a.ServeHTTP(rec, req)
	return rec
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, NewClaims(conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	if _, ok := j2.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
