package endpoint_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/hcc/clinic-api/endpoint"
	"github.com/hcc/clinic-api/middleware"
	"github.com/hcc/clinic-api/model"
	"github.com/hcc/clinic-api/util"
)

// newTestDB creates an in-memory sqlite DB with every table migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "failed to create test database")

	// Every pooled connection to :memory: is its own database; pin the pool
	// to one connection so all queries see the same schema.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Slot{},
		&model.Appointment{},
		&model.Drug{},
		&model.Prescription{},
		&model.PrescriptionDrug{},
		&model.SecurityLog{},
	), "auto migrate failed")
	return db
}

// newAPIRouter builds a gin engine with the full route surface, mirroring the
// wiring in main, against the given DB.
func newAPIRouter(t *testing.T, db *gorm.DB) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	util.SetJWTSecret("test-secret-123")

	r := gin.New()
	r.Use(middleware.DatabaseMiddleware(db))

	r.POST("/auth/register", endpoint.Register)
	r.POST("/auth/login", endpoint.Login)
	r.GET("/auth/me", middleware.Auth(), endpoint.Me)

	r.GET("/doctors", middleware.Auth(), endpoint.ListDoctors)
	r.POST("/doctors/slots", middleware.Auth(model.RoleDoctor, model.RoleReceptionist), endpoint.CreateSlots)
	r.PATCH("/doctors/slots/:id", middleware.Auth(model.RoleDoctor, model.RoleReceptionist), endpoint.UpdateSlot)
	r.GET("/doctors/:id/slots", endpoint.ListDoctorSlots)
	r.GET("/doctors/:id/appointments", middleware.Auth(model.RoleDoctor, model.RoleReceptionist), endpoint.ListDoctorAppointments)

	r.POST("/appointments", middleware.Auth(model.RoleStudent), endpoint.BookAppointment)
	r.GET("/appointments/all", middleware.Auth(model.RoleReceptionist), endpoint.ListAllAppointments)
	r.GET("/appointments/student/:id", middleware.Auth(model.RoleStudent), endpoint.ListStudentAppointments)
	r.GET("/appointments/doctor/:id", middleware.Auth(model.RoleDoctor), endpoint.ListDoctorOwnAppointments)
	r.PATCH("/appointments/:id/complete", middleware.Auth(model.RoleDoctor, model.RoleReceptionist), endpoint.CompleteAppointment)
	r.DELETE("/appointments/:id", middleware.Auth(model.RoleStudent), endpoint.CancelAppointment)

	r.GET("/drugs", middleware.Auth(), endpoint.ListDrugs)
	r.POST("/drugs", middleware.Auth(model.RoleDrugstoreManager), endpoint.CreateDrug)
	r.GET("/drugs/recent-prescriptions", middleware.Auth(model.RoleDrugstoreManager), endpoint.RecentPrescriptions)
	r.PATCH("/drugs/prescription-drugs/:id/sold", middleware.Auth(model.RoleDrugstoreManager), endpoint.DispensePrescriptionDrug)
	r.PATCH("/drugs/:id", middleware.Auth(model.RoleDrugstoreManager), endpoint.UpdateDrug)
	r.DELETE("/drugs/:id", middleware.Auth(model.RoleDrugstoreManager), endpoint.DeleteDrug)

	r.POST("/prescriptions", middleware.Auth(model.RoleDoctor), endpoint.CreatePrescription)
	r.GET("/prescriptions/pending", middleware.Auth(model.RoleDrugstoreManager), endpoint.ListPendingPrescriptions)
	r.GET("/prescriptions/patient/:id", middleware.Auth(), endpoint.ListPatientPrescriptions)
	r.GET("/prescriptions/doctor/:id", middleware.Auth(model.RoleDoctor), endpoint.ListDoctorPrescriptions)
	r.PATCH("/prescriptions/:id/reject", middleware.Auth(model.RoleDrugstoreManager), endpoint.RejectPrescription)
	r.GET("/prescriptions/:id", middleware.Auth(), endpoint.GetPrescription)

	r.POST("/users", middleware.Auth(model.RoleReceptionist), endpoint.CreateUser)
	r.GET("/users", middleware.Auth(model.RoleReceptionist, model.RoleDoctor), endpoint.ListUsers)
	r.GET("/users/:id", middleware.Auth(), endpoint.GetUser)
	r.PATCH("/users/:id", middleware.Auth(), endpoint.UpdateUser)
	r.DELETE("/users/:id", middleware.Auth(model.RoleReceptionist), endpoint.DeleteUser)

	return r
}

// createTestUser inserts a user with the given role and password "password123".
func createTestUser(t *testing.T, db *gorm.DB, name, email, role string) model.User {
	t.Helper()
	salt, err := util.GenerateSalt()
	require.NoError(t, err)
	hashed, err := util.HashPasswordArgon2("password123", salt)
	require.NoError(t, err)

	user := model.User{
		Name:         name,
		Email:        email,
		Password:     hashed,
		PasswordSalt: salt,
		Role:         role,
	}
	require.NoError(t, db.Create(&user).Error, "failed to create test user")
	return user
}

// tokenFor issues a bearer token for the user.
func tokenFor(t *testing.T, user model.User) string {
	t.Helper()
	token, err := util.CreateToken(user.ID, user.Role)
	require.NoError(t, err)
	return token
}

// doRequest performs an HTTP request against the router, optionally with a
// JSON body and bearer token, and returns the recorder.
func doRequest(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decodeResponse unmarshals the API envelope from the recorder.
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) util.APIResponse {
	t.Helper()
	var resp util.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "failed to decode response: %s", w.Body.String())
	return resp
}

// dataAsMap returns the response data as a JSON object.
func dataAsMap(t *testing.T, resp util.APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "expected data to be an object, got %T", resp.Data)
	return m
}

// dataAsSlice returns the response data as a JSON array.
func dataAsSlice(t *testing.T, resp util.APIResponse) []interface{} {
	t.Helper()
	s, ok := resp.Data.([]interface{})
	require.True(t, ok, "expected data to be an array, got %T", resp.Data)
	return s
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	require.Equal(t, expected, w.Code, "unexpected status, body: %s", w.Body.String())
}
