package model

import "gorm.io/gorm"

// Appointment statuses. Cancellation is a soft mark so the receptionist view
// keeps history; cancelled rows release their slot claim (Active goes NULL).
const (
	AppointmentScheduled = "scheduled"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
)

// Appointment links a patient to a booked slot. Date, time and doctor are
// denormalized from the slot so listings do not need a join for them.
//
// Active backs the unique (slot_id, active) index: live appointments carry
// active=true, cancelled ones NULL. NULL entries never collide in a unique
// index, so the database enforces at most one live appointment per slot and
// a duplicate-key error on insert is the booking-conflict signal.
type Appointment struct {
	gorm.Model
	SlotID    uint   `json:"slot_id" gorm:"not null;uniqueIndex:uniq_slot_active"`
	Active    *bool  `json:"-" gorm:"uniqueIndex:uniq_slot_active"`
	PatientID uint   `json:"patient_id" gorm:"not null;index"`
	DoctorID  uint   `json:"doctor_id" gorm:"not null;index"`
	Date      string `json:"date" gorm:"type:varchar(10);not null"`
	Time      string `json:"time" gorm:"type:varchar(5);not null"`
	Status    string `json:"status" gorm:"type:varchar(16);not null"`
}

// ListAppointmentResponse is an appointment row joined with counterpart names
// for the student, doctor and receptionist listings.
type ListAppointmentResponse struct {
	Appointment
	PatientName  string `json:"patient_name,omitempty" gorm:"column:patient_name"`
	PatientEmail string `json:"patient_email,omitempty" gorm:"column:patient_email"`
	Batch        string `json:"batch,omitempty" gorm:"column:batch"`
	Branch       string `json:"branch,omitempty" gorm:"column:branch"`
	DoctorName   string `json:"doctor_name,omitempty" gorm:"column:doctor_name"`
	DoctorEmail  string `json:"doctor_email,omitempty" gorm:"column:doctor_email"`
}
