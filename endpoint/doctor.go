package endpoint

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hcc/clinic-api/middleware"
	"github.com/hcc/clinic-api/model"
	"github.com/hcc/clinic-api/util"
)

type SlotEntry struct {
	Time string `json:"time" binding:"required"`
}

type CreateSlotsRequest struct {
	Date     string      `json:"date" binding:"required"`
	DoctorID uint        `json:"doctor_id"`
	Slots    []SlotEntry `json:"slots" binding:"required"`
}

type UpdateSlotRequest struct {
	IsAvailable *bool `json:"is_available" binding:"required"`
}

// ListDoctors returns the profiles of every doctor-role user.
func ListDoctors(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var doctors []model.User
	if err := db.Where("role = ?", model.RoleDoctor).Order("name").Find(&doctors).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch doctors", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Doctors fetched successfully", Data: doctors})
}

// CreateSlots bulk-creates availability slots for a date. A doctor creates
// slots for themselves; a receptionist must name the doctor.
func CreateSlots(c *gin.Context) {
	var req CreateSlotsRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
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

	if !validDate(req.Date) {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid date, expected YYYY-MM-DD", Err: errors.New("invalid date")})
		return
	}
	if len(req.Slots) == 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: "Slots must be a non-empty array", Err: errors.New("slots are required")})
		return
	}
	for _, slot := range req.Slots {
		if !validTimeOfDay(slot.Time) {
			util.CallUserError(c, util.APIErrorParams{Msg: fmt.Sprintf("Invalid time %q, expected HH:MM", slot.Time), Err: errors.New("invalid time")})
			return
		}
	}

	doctorID, ok := resolveDoctorID(c, db, current, req.DoctorID)
	if !ok {
		return
	}

	created := make([]model.Slot, 0, len(req.Slots))
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, entry := range req.Slots {
			slot := model.Slot{
				DoctorID:    doctorID,
				Date:        req.Date,
				Time:        entry.Time,
				IsAvailable: true,
			}
			if err := tx.Create(&slot).Error; err != nil {
				return err
			}
			created = append(created, slot)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			util.CallConflict(c, util.APIErrorParams{Msg: "A slot already exists at one of the given times", Err: errors.New("duplicate slot")})
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create slots", Err: errors.New("database error")})
		return
	}

	util.CallCreated(c, util.APISuccessParams{Msg: "Slots added successfully", Data: created})
}

// UpdateSlot toggles a slot's availability. Doctors may only toggle their own
// slots; receptionists may toggle any.
func UpdateSlot(c *gin.Context) {
	slotID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateSlotRequest
	if !bindJSONOrRespond(c, &req, "is_available must be a boolean") {
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

	var slot model.Slot
	if err := db.First(&slot, slotID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Slot not found", Err: errors.New("slot not found")})
		} else {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch slot", Err: errors.New("database error")})
		}
		return
	}

	if current.Role == model.RoleDoctor && slot.DoctorID != current.ID {
		util.CallForbidden(c, util.APIErrorParams{Msg: "Access denied", Err: errors.New("slot belongs to another doctor")})
		return
	}

	if err := db.Model(&slot).Update("is_available", *req.IsAvailable).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update slot", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Slot updated successfully", Data: slot})
}

// ListDoctorSlots returns a doctor's slots for one date, ordered by time.
func ListDoctorSlots(c *gin.Context) {
	doctorID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	date := c.Query("date")
	if date == "" {
		util.CallUserError(c, util.APIErrorParams{Msg: "Date is required", Err: errors.New("missing date query parameter")})
		return
	}
	if !validDate(date) {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid date, expected YYYY-MM-DD", Err: errors.New("invalid date")})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var slots []model.Slot
	if err := db.Where("doctor_id = ? AND date = ?", doctorID, date).Order("time").Find(&slots).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch slots", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Slots fetched successfully", Data: slots})
}

// ListDoctorAppointments returns a doctor's live appointments with patient
// details, for the doctor themselves or a receptionist.
func ListDoctorAppointments(c *gin.Context) {
	doctorID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	current, ok := currentUserOrRespond(c)
	if !ok {
		return
	}
	if current.Role == model.RoleDoctor && current.ID != doctorID {
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

// resolveDoctorID decides which doctor a slot operation targets: doctors act
// on themselves, receptionists must name an existing doctor.
func resolveDoctorID(c *gin.Context, db *gorm.DB, current middleware.AuthUser, requested uint) (uint, bool) {
	if current.Role == model.RoleDoctor {
		return current.ID, true
	}

	if requested == 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: "Doctor ID is required", Err: errors.New("doctor_id missing")})
		return 0, false
	}

	var doctor model.User
	err := db.Where("id = ? AND role = ?", requested, model.RoleDoctor).First(&doctor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Doctor not found", Err: errors.New("doctor not found")})
		return 0, false
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: errors.New("database error")})
		return 0, false
	}
	return doctor.ID, true
}
