package echoapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/conservatoire/core"
	"github.com/trezcool/conservatoire/core/authz"
	"github.com/trezcool/conservatoire/core/user"
	midtranssvc "github.com/trezcool/conservatoire/services/gateway/midtrans"
	logsvc "github.com/trezcool/conservatoire/services/logger"
	"github.com/trezcool/conservatoire/testutil"
)

const midtransServerKey = "SB-Mid-server-test"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

func testConfig() *core.Config {
	return &core.Config{
		Env:       "TEST",
		AppName:   "Conservatoire",
		TestMode:  true,
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Midtrans: core.MidtransConfig{ServerKey: midtransServerKey},
		Ledger:   core.LedgerConfig{DefaultPaymentMethod: testutil.DefaultPaymentMethod},
	}
}

// fixture holds a server on a fresh in-memory store, with one account per role.
type fixture struct {
	app  *Server
	svcs *testutil.Services

	teacherID string
	admin     user.User
	teacher   user.User
	other     user.User // teacher of no batch
	student   user.User // acts as studentID
	studentID string
}

func setup(t *testing.T) *fixture {
	svcs := testutil.NewServices()
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	conf := testConfig()

	app := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logsvc.NewDiscardLogger(),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
		UserSvc:        svcs.User,
		RosterSvc:      svcs.Roster,
		CreditSvc:      svcs.Credit,
		AttendanceSvc:  svcs.Attendance,
		FeeSvc:         svcs.Fee,
		PaymentSvc:     svcs.Payment,
		ResourceSvc:    svcs.Resource,
		Accounting:     svcs.Accounting,
		Gateway:        midtranssvc.New(conf),
	})

	fx := &fixture{app: app, svcs: svcs, teacherID: core.NewID()}
	s := testutil.CreateStudent(t, svcs.Roster, "Hero")
	fx.studentID = s.ID
	fx.admin = testutil.CreateUser(t, svcs.UserRepo, "Admin", "admin", "admin@test.cd", "Adm1n-Pwd!", authz.KindAdmin, "", true)
	fx.teacher = testutil.CreateUser(t, svcs.UserRepo, "Teacher", "teacher", "teacher@test.cd", "", authz.KindTeacher, fx.teacherID, true)
	fx.other = testutil.CreateUser(t, svcs.UserRepo, "Other", "other", "other@test.cd", "", authz.KindTeacher, core.NewID(), true)
	fx.student = testutil.CreateUser(t, svcs.UserRepo, "Hero", "hero", "hero@test.cd", "", authz.KindStudent, s.ID, true)
	return fx
}

func (fx *fixture) token(t *testing.T, usr user.User) string {
	token, err := fx.app.auth.generateToken(fx.app.auth.userClaims(usr))
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

func (fx *fixture) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	fx.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
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

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshall(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, "body: %s", rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if assert.NoError(t, err, "jsonBytesEqual() failed to compare") {
		assert.True(t, ok, "data = %s; wantData %s", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *Server, tests []httpTest) {
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
