package endpoint_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hcc/clinic-api/model"
)

func TestBookAppointment(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)
	student := createTestUser(t, db, "Student", "student@example.com", model.RoleStudent)
	slot := createSlot(t, db, doctor.ID, "2026-09-10", "09:00", true)

	w := doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, student), map[string]interface{}{
		"slot_id": slot.ID,
	})
	assertStatus(t, w, http.StatusCreated)

	data := dataAsMap(t, decodeResponse(t, w))
	assert.Equal(t, model.AppointmentScheduled, data["status"])
	assert.Equal(t, "2026-09-10", data["date"])
	assert.Equal(t, "09:00", data["time"])

	// Booking closes the slot.
	var fresh model.Slot
	require.NoError(t, db.First(&fresh, slot.ID).Error)
	assert.False(t, fresh.IsAvailable)
}

func TestBookAppointmentSlotTakenOrMissing(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)
	first := createTestUser(t, db, "First", "first@example.com", model.RoleStudent)
	second := createTestUser(t, db, "Second", "second@example.com", model.RoleStudent)
	slot := createSlot(t, db, doctor.ID, "2026-09-10", "09:00", true)

	w := doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, first), map[string]interface{}{
		"slot_id": slot.ID,
	})
	assertStatus(t, w, http.StatusCreated)

	// The slot is now closed, so a later attempt reads as unavailable.
	w = doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, second), map[string]interface{}{
		"slot_id": slot.ID,
	})
	assertStatus(t, w, http.StatusNotFound)

	// Even if availability were flipped back by hand, the live appointment
	// still blocks a second booking.
	require.NoError(t, db.Model(&model.Slot{}).Where("id = ?", slot.ID).Update("is_available", true).Error)
	w = doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, second), map[string]interface{}{
		"slot_id": slot.ID,
	})
	assertStatus(t, w, http.StatusConflict)

	var count int64
	require.NoError(t, db.Model(&model.Appointment{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	// Unknown slot.
	w = doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, second), map[string]interface{}{
		"slot_id": 9999,
	})
	assertStatus(t, w, http.StatusNotFound)
}

func TestBookAppointmentRoleScoping(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)
	slot := createSlot(t, db, doctor.ID, "2026-09-10", "09:00", true)

	// Only students book appointments.
	w := doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, doctor), map[string]interface{}{
		"slot_id": slot.ID,
	})
	assertStatus(t, w, http.StatusForbidden)

	w = doRequest(t, r, http.MethodPost, "/appointments", "", map[string]interface{}{
		"slot_id": slot.ID,
	})
	assertStatus(t, w, http.StatusUnauthorized)
}

func TestCancelAppointment(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)
	student := createTestUser(t, db, "Student", "student@example.com", model.RoleStudent)
	intruder := createTestUser(t, db, "Intruder", "intruder@example.com", model.RoleStudent)
	slot := createSlot(t, db, doctor.ID, "2026-09-10", "09:00", true)

	w := doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, student), map[string]interface{}{
		"slot_id": slot.ID,
	})
	assertStatus(t, w, http.StatusCreated)
	appointmentID := uint(dataAsMap(t, decodeResponse(t, w))["ID"].(float64))

	path := fmt.Sprintf("/appointments/%d", appointmentID)

	// Someone else's appointment reads as not found.
	w = doRequest(t, r, http.MethodDelete, path, tokenFor(t, intruder), nil)
	assertStatus(t, w, http.StatusNotFound)

	w = doRequest(t, r, http.MethodDelete, path, tokenFor(t, student), nil)
	assertStatus(t, w, http.StatusOK)

	var appointment model.Appointment
	require.NoError(t, db.First(&appointment, appointmentID).Error)
	assert.Equal(t, model.AppointmentCancelled, appointment.Status)
	assert.Nil(t, appointment.Active)

	// Cancelling re-opens the slot for the next booking.
	var fresh model.Slot
	require.NoError(t, db.First(&fresh, slot.ID).Error)
	assert.True(t, fresh.IsAvailable)

	// A cancelled appointment stays cancelled.
	w = doRequest(t, r, http.MethodDelete, path, tokenFor(t, student), nil)
	assertStatus(t, w, http.StatusConflict)

	// And the freed slot is bookable again.
	w = doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, intruder), map[string]interface{}{
		"slot_id": slot.ID,
	})
	assertStatus(t, w, http.StatusCreated)
}

func TestCompleteAppointment(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)
	other := createTestUser(t, db, "Other Doc", "other@example.com", model.RoleDoctor)
	receptionist := createTestUser(t, db, "Front Desk", "desk@example.com", model.RoleReceptionist)
	student := createTestUser(t, db, "Student", "student@example.com", model.RoleStudent)
	slot := createSlot(t, db, doctor.ID, "2026-09-10", "09:00", true)

	w := doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, student), map[string]interface{}{
		"slot_id": slot.ID,
	})
	assertStatus(t, w, http.StatusCreated)
	appointmentID := uint(dataAsMap(t, decodeResponse(t, w))["ID"].(float64))

	path := fmt.Sprintf("/appointments/%d/complete", appointmentID)

	// Another doctor cannot complete it.
	w = doRequest(t, r, http.MethodPatch, path, tokenFor(t, other), nil)
	assertStatus(t, w, http.StatusForbidden)

	w = doRequest(t, r, http.MethodPatch, path, tokenFor(t, doctor), nil)
	assertStatus(t, w, http.StatusOK)

	var appointment model.Appointment
	require.NoError(t, db.First(&appointment, appointmentID).Error)
	assert.Equal(t, model.AppointmentCompleted, appointment.Status)

	// Completed is terminal.
	w = doRequest(t, r, http.MethodPatch, path, tokenFor(t, receptionist), nil)
	assertStatus(t, w, http.StatusConflict)
}

func TestListStudentAppointments(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)
	student := createTestUser(t, db, "Student", "student@example.com", model.RoleStudent)
	other := createTestUser(t, db, "Other", "other@example.com", model.RoleStudent)
	slotA := createSlot(t, db, doctor.ID, "2026-09-10", "09:00", true)
	slotB := createSlot(t, db, doctor.ID, "2026-09-10", "09:30", true)

	w := doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, student), map[string]interface{}{"slot_id": slotA.ID})
	assertStatus(t, w, http.StatusCreated)
	w = doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, student), map[string]interface{}{"slot_id": slotB.ID})
	assertStatus(t, w, http.StatusCreated)
	cancelledID := uint(dataAsMap(t, decodeResponse(t, w))["ID"].(float64))

	w = doRequest(t, r, http.MethodDelete, fmt.Sprintf("/appointments/%d", cancelledID), tokenFor(t, student), nil)
	assertStatus(t, w, http.StatusOK)

	// Cancelled appointments are hidden from the student's own view.
	w = doRequest(t, r, http.MethodGet, fmt.Sprintf("/appointments/student/%d", student.ID), tokenFor(t, student), nil)
	assertStatus(t, w, http.StatusOK)
	appointments := dataAsSlice(t, decodeResponse(t, w))
	require.Len(t, appointments, 1)
	entry := appointments[0].(map[string]interface{})
	assert.Equal(t, "Doc", entry["doctor_name"])

	// One student cannot read another's schedule.
	w = doRequest(t, r, http.MethodGet, fmt.Sprintf("/appointments/student/%d", student.ID), tokenFor(t, other), nil)
	assertStatus(t, w, http.StatusForbidden)
}

func TestListDoctorAppointmentViews(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)
	other := createTestUser(t, db, "Other Doc", "other@example.com", model.RoleDoctor)
	receptionist := createTestUser(t, db, "Front Desk", "desk@example.com", model.RoleReceptionist)
	student := createTestUser(t, db, "Student", "student@example.com", model.RoleStudent)
	slot := createSlot(t, db, doctor.ID, "2026-09-10", "09:00", true)

	w := doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, student), map[string]interface{}{"slot_id": slot.ID})
	assertStatus(t, w, http.StatusCreated)

	// A doctor only sees their own schedule.
	w = doRequest(t, r, http.MethodGet, fmt.Sprintf("/appointments/doctor/%d", doctor.ID), tokenFor(t, other), nil)
	assertStatus(t, w, http.StatusForbidden)

	w = doRequest(t, r, http.MethodGet, fmt.Sprintf("/appointments/doctor/%d", doctor.ID), tokenFor(t, doctor), nil)
	assertStatus(t, w, http.StatusOK)
	appointments := dataAsSlice(t, decodeResponse(t, w))
	require.Len(t, appointments, 1)
	entry := appointments[0].(map[string]interface{})
	assert.Equal(t, "Student", entry["patient_name"])

	// The receptionist view via /doctors/:id/appointments works for any doctor.
	w = doRequest(t, r, http.MethodGet, fmt.Sprintf("/doctors/%d/appointments", doctor.ID), tokenFor(t, receptionist), nil)
	assertStatus(t, w, http.StatusOK)
	assert.Len(t, dataAsSlice(t, decodeResponse(t, w)), 1)
}

func TestListAllAppointmentsIncludesCancelled(t *testing.T) {
	db := newTestDB(t)
	r := newAPIRouter(t, db)
	doctor := createTestUser(t, db, "Doc", "doc@example.com", model.RoleDoctor)
	receptionist := createTestUser(t, db, "Front Desk", "desk@example.com", model.RoleReceptionist)
	student := createTestUser(t, db, "Student", "student@example.com", model.RoleStudent)
	slotA := createSlot(t, db, doctor.ID, "2026-09-10", "09:00", true)
	slotB := createSlot(t, db, doctor.ID, "2026-09-10", "09:30", true)

	w := doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, student), map[string]interface{}{"slot_id": slotA.ID})
	assertStatus(t, w, http.StatusCreated)
	w = doRequest(t, r, http.MethodPost, "/appointments", tokenFor(t, student), map[string]interface{}{"slot_id": slotB.ID})
	assertStatus(t, w, http.StatusCreated)
	cancelledID := uint(dataAsMap(t, decodeResponse(t, w))["ID"].(float64))
	w = doRequest(t, r, http.MethodDelete, fmt.Sprintf("/appointments/%d", cancelledID), tokenFor(t, student), nil)
	assertStatus(t, w, http.StatusOK)

	w = doRequest(t, r, http.MethodGet, "/appointments/all", tokenFor(t, receptionist), nil)
	assertStatus(t, w, http.StatusOK)
	assert.Len(t, dataAsSlice(t, decodeResponse(t, w)), 2)

	// The audit view is receptionist-only.
	w = doRequest(t, r, http.MethodGet, "/appointments/all", tokenFor(t, student), nil)
	assertStatus(t, w, http.StatusForbidden)
}
