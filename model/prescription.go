package model

import "gorm.io/gorm"

// Prescription header statuses. The header is pending until every line item
// has been sold (then it flips to dispensed inside the dispensing
// transaction) or the drugstore rejects it before any line is sold.
const (
	PrescriptionPending   = "pending"
	PrescriptionDispensed = "dispensed"
	PrescriptionRejected  = "rejected"
)

// Prescription is the header a doctor writes for a patient. Line items live
// in PrescriptionDrug.
type Prescription struct {
	gorm.Model
	DoctorID  uint   `json:"doctor_id" gorm:"not null;index"`
	PatientID uint   `json:"patient_id" gorm:"not null;index"`
	Date      string `json:"date" gorm:"type:varchar(10);not null"`
	Notes     string `json:"notes,omitempty"`
	Status    string `json:"status" gorm:"type:varchar(16);not null"`
}

// PrescriptionDrug is one line item: a drug, its quantity, dosing-time flags
// and the one-way sold mark set by the dispensing workflow.
type PrescriptionDrug struct {
	gorm.Model
	PrescriptionID uint   `json:"prescription_id" gorm:"not null;index"`
	DrugID         uint   `json:"drug_id" gorm:"not null;index"`
	Quantity       int    `json:"quantity" gorm:"not null"`
	Morning        bool   `json:"morning" gorm:"default:false"`
	Noon           bool   `json:"noon" gorm:"default:false"`
	Evening        bool   `json:"evening" gorm:"default:false"`
	Night          bool   `json:"night" gorm:"default:false"`
	Notes          string `json:"notes,omitempty"`
	IsSold         bool   `json:"is_sold" gorm:"default:false"`
}

// PrescriptionLine is a line item joined with its drug name for nested
// prescription listings.
type PrescriptionLine struct {
	PrescriptionDrug
	DrugName string `json:"drug_name" gorm:"column:drug_name"`
}

// ListPrescriptionResponse is a header with counterpart names and its nested
// line items, assembled by the read paths.
type ListPrescriptionResponse struct {
	Prescription
	PatientName string             `json:"patient_name,omitempty" gorm:"column:patient_name"`
	DoctorName  string             `json:"doctor_name,omitempty" gorm:"column:doctor_name"`
	Drugs       []PrescriptionLine `json:"drugs" gorm:"-"`
}

// PendingLineResponse is one unsold line of a pending prescription, joined
// with everything the drugstore counter needs to fulfil it.
type PendingLineResponse struct {
	PrescriptionDrugID uint   `json:"prescription_drug_id" gorm:"column:prescription_drug_id"`
	PrescriptionID     uint   `json:"prescription_id" gorm:"column:prescription_id"`
	Date               string `json:"date" gorm:"column:date"`
	PatientName        string `json:"patient_name" gorm:"column:patient_name"`
	DoctorName         string `json:"doctor_name" gorm:"column:doctor_name"`
	DrugID             uint   `json:"drug_id" gorm:"column:drug_id"`
	DrugName           string `json:"drug_name" gorm:"column:drug_name"`
	Quantity           int    `json:"quantity" gorm:"column:quantity"`
	Morning            bool   `json:"morning" gorm:"column:morning"`
	Noon               bool   `json:"noon" gorm:"column:noon"`
	Evening            bool   `json:"evening" gorm:"column:evening"`
	Night              bool   `json:"night" gorm:"column:night"`
	Notes              string `json:"notes" gorm:"column:notes"`
	IsSold             bool   `json:"is_sold" gorm:"column:is_sold"`
}
