package endpoint

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hcc/clinic-api/model"
	"github.com/hcc/clinic-api/util"
)

type BookAppointmentRequest struct {
	SlotID uint `json:"slot_id" binding:"required"`
}

// BookAppointment books a slot for the calling student. The whole protocol —
// slot lookup, conflict check, insert, availability flip — runs inside one
// transaction, and the unique (slot_id, active) index turns any race between
// two concurrent bookings into a duplicate-key error, so at most one commits.
func BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if !bindJSONOrRespond(c, &req, "Slot ID is required") {
		return
	}

	current, ok := currentUserOrRespond(c)
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var appointment model.Appointment
	err := db.Transaction(func(tx *gorm.DB) error {
		var slot model.Slot
		if err := tx.First(&slot, req.SlotID).Error; err != nil {
			return err
		}
		if !slot.IsAvailable {
			return gorm.ErrRecordNotFound
		}

		var count int64
		if err := tx.Model(&model.Appointment{}).
			Where("slot_id = ? AND active = ?", slot.ID, true).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return gorm.ErrDuplicatedKey
		}

		active := true
		appointment = model.Appointment{
			SlotID:    slot.ID,
			Active:    &active,
			PatientID: current.ID,
			DoctorID:  slot.DoctorID,
			Date:      slot.Date,
			Time:      slot.Time,
			Status:    model.AppointmentScheduled,
		}
		if err := tx.Create(&appointment).Error; err != nil {
			return err
		}

		return tx.Model(&slot).Update("is_available", false).Error
	})

	switch {
	case err == nil:
		util.CallCreated(c, util.APISuccessParams{Msg: "Appointment booked successfully", Data: appointment})
	case errors.Is(err, gorm.ErrRecordNotFound):
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Slot not found or not available", Err: errors.New("slot unavailable")})
	case errors.Is(err, gorm.ErrDuplicatedKey):
		util.CallConflict(c, util.APIErrorParams{Msg: "Slot is already booked", Err: errors.New("slot already booked")})
	default:
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to book appointment", Err: errors.New("database error")})
	}
}

// CancelAppointment soft-marks the caller's appointment cancelled and
// re-opens its slot. Cancelled rows stay visible to the receptionist view.
func CancelAppointment(c *gin.Context) {
	appointmentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	current, ok := currentUserOrRespond(c)
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var appointment model.Appointment
	err := db.Where("id = ? AND patient_id = ?", appointmentID, current.ID).First(&appointment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Appointment not found or access denied", Err: errors.New("appointment not found")})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch appointment", Err: errors.New("database error")})
		return
	}

	if appointment.Status == model.AppointmentCancelled {
		util.CallConflict(c, util.APIErrorParams{Msg: "Appointment is already cancelled", Err: errors.New("already cancelled")})
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{"status": model.AppointmentCancelled, "active": nil}
		if err := tx.Model(&appointment).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Model(&model.Slot{}).Where("id = ?", appointment.SlotID).
			Update("is_available", true).Error
	})
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to cancel appointment", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment cancelled successfully", Data: nil})
}

// CompleteAppointment marks a scheduled appointment completed, by the owning
// doctor or a receptionist.
func CompleteAppointment(c *gin.Context) {
	appointmentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	current, ok := currentUserOrRespond(c)
	if !ok {
		return
	}
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var appointment model.Appointment
	if err := db.First(&appointment, appointmentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Appointment not found", Err: errors.New("appointment not found")})
		} else {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch appointment", Err: errors.New("database error")})
		}
		return
	}

	if current.Role == model.RoleDoctor && appointment.DoctorID != current.ID {
		util.CallForbidden(c, util.APIErrorParams{Msg: "Access denied", Err: errors.New("appointment belongs to another doctor")})
		return
	}
	if appointment.Status != model.AppointmentScheduled {
		util.CallConflict(c, util.APIErrorParams{Msg: "Only scheduled appointments can be completed", Err: errors.New("invalid status transition")})
		return
	}

	if err := db.Model(&appointment).Update("status", model.AppointmentCompleted).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update appointment", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointment completed successfully", Data: appointment})
}

// ListStudentAppointments returns the calling student's own non-cancelled
// appointments with doctor details.
func ListStudentAppointments(c *gin.Context) {
	studentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	current, ok := currentUserOrRespond(c)
	if !ok {
		return
	}
	if current.ID != studentID {
		util.CallForbidden(c, util.APIErrorParams{Msg: "Access denied", Err: errors.New("not your appointments")})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var appointments []model.ListAppointmentResponse
	err := db.Table("appointments").
		Select("appointments.*, doctors.name as doctor_name, doctors.email as doctor_email").
		Joins("JOIN users doctors ON doctors.id = appointments.doctor_id").
		Where("appointments.patient_id = ? AND appointments.status <> ? AND appointments.deleted_at IS NULL", studentID, model.AppointmentCancelled).
		Order("appointments.date, appointments.time").
		Find(&appointments).Error
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch appointments", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointments fetched successfully", Data: appointments})
}

// ListDoctorOwnAppointments returns the calling doctor's own non-cancelled
// appointments with patient details.
func ListDoctorOwnAppointments(c *gin.Context) {
	doctorID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	current, ok := currentUserOrRespond(c)
	if !ok {
		return
	}
	if current.ID != doctorID {
		util.CallForbidden(c, util.APIErrorParams{Msg: "Access denied", Err: errors.New("not your appointments")})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	appointments, err := fetchDoctorAppointments(db, doctorID)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch appointments", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointments fetched successfully", Data: appointments})
}

// ListAllAppointments returns every appointment, all statuses included, for
// the receptionist's audit view.
func ListAllAppointments(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var appointments []model.ListAppointmentResponse
	err := db.Table("appointments").
		Select("appointments.*, patients.name as patient_name, patients.email as patient_email, patients.batch as batch, patients.branch as branch, doctors.name as doctor_name").
		Joins("JOIN users patients ON patients.id = appointments.patient_id").
		Joins("JOIN users doctors ON doctors.id = appointments.doctor_id").
		Where("appointments.deleted_at IS NULL").
		Order("appointments.date, appointments.time").
		Find(&appointments).Error
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch appointments", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Appointments fetched successfully", Data: appointments})
}

func fetchDoctorAppointments(db *gorm.DB, doctorID uint) ([]model.ListAppointmentResponse, error) {
	var appointments []model.ListAppointmentResponse
	err := db.Table("appointments").
		Select("appointments.*, patients.name as patient_name, patients.email as patient_email, patients.batch as batch, patients.branch as branch").
		Joins("JOIN users patients ON patients.id = appointments.patient_id").
		Where("appointments.doctor_id = ? AND appointments.status <> ? AND appointments.deleted_at IS NULL", doctorID, model.AppointmentCancelled).
		Order("appointments.date, appointments.time").
		Find(&appointments).Error
	return appointments, err
}
