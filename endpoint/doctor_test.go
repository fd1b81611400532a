package endpoint_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/hcc/clinic-api/model"
)

// createSlot inserts a slot directly, bypassing the API.
func createSlot(t *testing.T, db *gorm.DB, doctorID uint, date, timeOfDay string, available bool) model.Slot {
	t.Helper()
	slot := model.Slot{DoctorID: doctorID, Date: date, Time: timeOfDay, IsAvailable: available}
	require.NoError(t, db.Create(&slot).Error)
	return slot
}

func TestListDoctorsReturnsOnlyDoctors(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	createTestUser(t, db, "Zara Doctor", "zara@example.com", model.RoleDoctor)
	createTestUser(t, db, "Arun Doctor", "arun@example.com", model.RoleDoctor)
	student := createTestUser(t, db, "Student", "student@example.com", model.RoleStudent)

	w := doRequest(t, r, http.MethodGet, "/doctors", tokenFor(t, student), nil)
	assertStatus(t, w, http.StatusOK)

	doctors := dataAsSlice(t, decodeResponse(t, w))
	require.Len(t, doctors, 2)
	// Ordered by name.
	first := doctors[0].(map[string]interface{})
	assert.Equal(t, "Arun Doctor", first["name"])
}

func TestDoctorCreatesOwnSlots(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)

	w := doRequest(t, r, http.MethodPost, "/doctors/slots", tokenFor(t, doctor), map[string]interface{}{
		"date":  "2026-09-10",
		"slots": []map[string]string{{"time": "09:00"}, {"time": "09:30"}},
	})
	assertStatus(t, w, http.StatusCreated)

	var slots []model.Slot
	require.NoError(t, db.Find(&slots).Error)
	require.Len(t, slots, 2)
	for _, slot := range slots {
		assert.Equal(t, doctor.ID, slot.DoctorID)
		assert.True(t, slot.IsAvailable)
	}

	// Slot browsing is public.
	w = doRequest(t, r, http.MethodGet, fmt.Sprintf("/doctors/%d/slots?date=2026-09-10", doctor.ID), "", nil)
	assertStatus(t, w, http.StatusOK)
	assert.Len(t, dataAsSlice(t, decodeResponse(t, w)), 2)
}

func TestCreateSlotsDuplicateConflict(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)

	body := map[string]interface{}{
		"date":  "2026-09-10",
		"slots": []map[string]string{{"time": "09:00"}},
	}
	w := doRequest(t, r, http.MethodPost, "/doctors/slots", tokenFor(t, doctor), body)
	assertStatus(t, w, http.StatusCreated)

	w = doRequest(t, r, http.MethodPost, "/doctors/slots", tokenFor(t, doctor), body)
	assertStatus(t, w, http.StatusConflict)

	// The failed request must not leave partial rows behind.
	var count int64
	require.NoError(t, db.Model(&model.Slot{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestReceptionistCreatesSlotsForDoctor(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	receptionist := createTestUser(t, db, "Front Desk", "desk@example.com", model.RoleReceptionist)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)
	student := createTestUser(t, db, "Student", "student@example.com", model.RoleStudent)

	// Receptionists must name the doctor.
	w := doRequest(t, r, http.MethodPost, "/doctors/slots", tokenFor(t, receptionist), map[string]interface{}{
		"date":  "2026-09-10",
		"slots": []map[string]string{{"time": "10:00"}},
	})
	assertStatus(t, w, http.StatusBadRequest)

	// The named id must belong to a doctor-role user.
	w = doRequest(t, r, http.MethodPost, "/doctors/slots", tokenFor(t, receptionist), map[string]interface{}{
		"date":      "2026-09-10",
		"doctor_id": student.ID,
		"slots":     []map[string]string{{"time": "10:00"}},
	})
	assertStatus(t, w, http.StatusNotFound)

	w = doRequest(t, r, http.MethodPost, "/doctors/slots", tokenFor(t, receptionist), map[string]interface{}{
		"date":      "2026-09-10",
		"doctor_id": doctor.ID,
		"slots":     []map[string]string{{"time": "10:00"}},
	})
	assertStatus(t, w, http.StatusCreated)

	var slot model.Slot
	require.NoError(t, db.First(&slot).Error)
	assert.Equal(t, doctor.ID, slot.DoctorID)
}

func TestCreateSlotsValidation(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)

	cases := []struct {
		name string
		body map[string]interface{}
	}{
		{"bad date", map[string]interface{}{
			"date": "10-09-2026", "slots": []map[string]string{{"time": "09:00"}},
		}},
		{"bad time", map[string]interface{}{
			"date": "2026-09-10", "slots": []map[string]string{{"time": "25:99"}},
		}},
		{"empty slots", map[string]interface{}{
			"date": "2026-09-10", "slots": []map[string]string{},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(t, r, http.MethodPost, "/doctors/slots", tokenFor(t, doctor), tc.body)
			assertStatus(t, w, http.StatusBadRequest)
		})
	}
}

func TestUpdateSlotOwnership(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	owner := createTestUser(t, db, "Owner", "owner@example.com", model.RoleDoctor)
	other := createTestUser(t, db, "Other", "other@example.com", model.RoleDoctor)
	receptionist := createTestUser(t, db, "Front Desk", "desk@example.com", model.RoleReceptionist)
	slot := createSlot(t, db, owner.ID, "2026-09-10", "09:00", true)

	body := map[string]interface{}{"is_available": false}
	path := fmt.Sprintf("/doctors/slots/%d", slot.ID)

	w := doRequest(t, r, http.MethodPatch, path, tokenFor(t, other), body)
	assertStatus(t, w, http.StatusForbidden)

	w = doRequest(t, r, http.MethodPatch, path, tokenFor(t, owner), body)
	assertStatus(t, w, http.StatusOK)

	var fresh model.Slot
	require.NoError(t, db.First(&fresh, slot.ID).Error)
	assert.False(t, fresh.IsAvailable)

	// Receptionists may toggle any slot.
	w = doRequest(t, r, http.MethodPatch, path, tokenFor(t, receptionist), map[string]interface{}{"is_available": true})
	assertStatus(t, w, http.StatusOK)
	require.NoError(t, db.First(&fresh, slot.ID).Error)
	assert.True(t, fresh.IsAvailable)
}

func TestListDoctorSlotsRequiresDate(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)

	w := doRequest(t, r, http.MethodGet, fmt.Sprintf("/doctors/%d/slots", doctor.ID), "", nil)
	assertStatus(t, w, http.StatusBadRequest)

	w = doRequest(t, r, http.MethodGet, fmt.Sprintf("/doctors/%d/slots?date=not-a-date", doctor.ID), "", nil)
	assertStatus(t, w, http.StatusBadRequest)
}
