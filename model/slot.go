package model

import "gorm.io/gorm"

// Slot is a doctor-offered, bookable (date, time) unit of availability.
// DoctorID references the doctor's user id directly.
type Slot struct {
	gorm.Model
	DoctorID    uint   `json:"doctor_id" gorm:"not null;uniqueIndex:uniq_doctor_date_time"`
	Date        string `json:"date" gorm:"type:varchar(10);not null;uniqueIndex:uniq_doctor_date_time"`
	Time        string `json:"time" gorm:"type:varchar(5);not null;uniqueIndex:uniq_doctor_date_time"`
	IsAvailable bool   `json:"is_available" gorm:"default:true"`
}
