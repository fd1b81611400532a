package endpoint

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hcc/clinic-api/model"
	"github.com/hcc/clinic-api/util"
)

type PrescriptionLineRequest struct {
	DrugID   uint   `json:"drug_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
	Morning  bool   `json:"morning"`
	Noon     bool   `json:"noon"`
	Evening  bool   `json:"evening"`
	Night    bool   `json:"night"`
	Notes    string `json:"notes"`
}

type CreatePrescriptionRequest struct {
	PatientID uint                      `json:"patient_id" binding:"required"`
	Notes     string                    `json:"notes"`
	Drugs     []PrescriptionLineRequest `json:"drugs" binding:"required"`
}

// CreatePrescription inserts a header and all its line items atomically:
// either the full prescription is visible afterwards, or none of it is.
func CreatePrescription(c *gin.Context) {
	var req CreatePrescriptionRequest
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

	if len(req.Drugs) == 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: "Drugs must be a non-empty array", Err: errors.New("no line items")})
		return
	}
	for i, line := range req.Drugs {
		if line.Quantity < 1 {
			util.CallUserError(c, util.APIErrorParams{Msg: fmt.Sprintf("Quantity of line %d must be at least 1", i+1), Err: errors.New("invalid quantity")})
			return
		}
	}

	var patient model.User
	if err := db.First(&patient, req.PatientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Patient not found", Err: errors.New("patient not found")})
		} else {
			util.CallServerError(c, util.APIErrorParams{Msg: "Database error", Err: errors.New("database error")})
		}
		return
	}

	prescription := model.Prescription{
		DoctorID:  current.ID,
		PatientID: req.PatientID,
		Date:      today(),
		Notes:     req.Notes,
		Status:    model.PrescriptionPending,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&prescription).Error; err != nil {
			return err
		}
		for _, line := range req.Drugs {
			var drug model.Drug
			if err := tx.First(&drug, line.DrugID).Error; err != nil {
				return fmt.Errorf("drug %d: %w", line.DrugID, err)
			}
			item := model.PrescriptionDrug{
				PrescriptionID: prescription.ID,
				DrugID:         line.DrugID,
				Quantity:       line.Quantity,
				Morning:        line.Morning,
				Noon:           line.Noon,
				Evening:        line.Evening,
				Night:          line.Night,
				Notes:          line.Notes,
			}
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "One of the prescribed drugs does not exist", Err: errors.New("drug not found")})
			return
		}
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create prescription", Err: errors.New("database error")})
		return
	}

	util.CallCreated(c, util.APISuccessParams{
		Msg:  "Prescription created successfully",
		Data: map[string]interface{}{"id": prescription.ID},
	})
}

// ListPendingPrescriptions returns every unsold line of pending headers with
// drug, patient and doctor details, newest first, for the drugstore counter.
func ListPendingPrescriptions(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var lines []model.PendingLineResponse
	err := db.Table("prescription_drugs pd").
		Select(`pd.id as prescription_drug_id, p.id as prescription_id, p.date,
			patients.name as patient_name, doctors.name as doctor_name,
			d.id as drug_id, d.name as drug_name,
			pd.quantity, pd.morning, pd.noon, pd.evening, pd.night, pd.notes, pd.is_sold`).
		Joins("JOIN prescriptions p ON p.id = pd.prescription_id").
		Joins("JOIN drugs d ON d.id = pd.drug_id").
		Joins("JOIN users patients ON patients.id = p.patient_id").
		Joins("JOIN users doctors ON doctors.id = p.doctor_id").
		Where("pd.is_sold = ? AND p.status = ? AND pd.deleted_at IS NULL", false, model.PrescriptionPending).
		Order("p.date DESC").
		Find(&lines).Error
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch pending prescriptions", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Pending prescriptions fetched successfully", Data: lines})
}

// ListPatientPrescriptions returns a patient's prescriptions with nested
// lines, readable by the patient themselves or by doctors/receptionists.
func ListPatientPrescriptions(c *gin.Context) {
	patientID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	current, ok := currentUserOrRespond(c)
	if !ok {
		return
	}
	if current.ID != patientID && !util.Contains(current.Role, []string{model.RoleDoctor, model.RoleReceptionist}) {
		util.CallForbidden(c, util.APIErrorParams{Msg: "Access denied", Err: errors.New("not your prescriptions")})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	prescriptions, err := fetchPrescriptionsWithLines(db,
		"prescriptions.patient_id = ?", "doctors.name as doctor_name", "JOIN users doctors ON doctors.id = prescriptions.doctor_id", patientID)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch prescriptions", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Prescriptions fetched successfully", Data: prescriptions})
}

// ListDoctorPrescriptions returns the calling doctor's own prescriptions with
// nested lines.
func ListDoctorPrescriptions(c *gin.Context) {
	doctorID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	current, ok := currentUserOrRespond(c)
	if !ok {
		return
	}
	if current.ID != doctorID {
		util.CallForbidden(c, util.APIErrorParams{Msg: "Access denied", Err: errors.New("not your prescriptions")})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	prescriptions, err := fetchPrescriptionsWithLines(db,
		"prescriptions.doctor_id = ?", "patients.name as patient_name", "JOIN users patients ON patients.id = prescriptions.patient_id", doctorID)
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch prescriptions", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Prescriptions fetched successfully", Data: prescriptions})
}

// GetPrescription returns one prescription with patient/doctor names and
// nested lines.
func GetPrescription(c *gin.Context) {
	prescriptionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var header model.ListPrescriptionResponse
	err := db.Table("prescriptions").
		Select("prescriptions.*, patients.name as patient_name, doctors.name as doctor_name").
		Joins("JOIN users patients ON patients.id = prescriptions.patient_id").
		Joins("JOIN users doctors ON doctors.id = prescriptions.doctor_id").
		Where("prescriptions.id = ? AND prescriptions.deleted_at IS NULL", prescriptionID).
		First(&header).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Prescription not found", Err: errors.New("prescription not found")})
		return
	}
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch prescription", Err: errors.New("database error")})
		return
	}

	lines, err := fetchLinesForPrescriptions(db, []uint{header.ID})
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch prescription drugs", Err: errors.New("database error")})
		return
	}
	header.Drugs = lines[header.ID]
	if header.Drugs == nil {
		header.Drugs = []model.PrescriptionLine{}
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Prescription fetched successfully", Data: header})
}

// RejectPrescription marks a pending prescription rejected. Rejection is
// forbidden once any line has been sold: a partially dispensed prescription
// would otherwise leave inventory and status contradicting each other.
func RejectPrescription(c *gin.Context) {
	prescriptionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var prescription model.Prescription
	if err := db.First(&prescription, prescriptionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Prescription not found", Err: errors.New("prescription not found")})
		} else {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch prescription", Err: errors.New("database error")})
		}
		return
	}

	if prescription.Status != model.PrescriptionPending {
		util.CallConflict(c, util.APIErrorParams{Msg: "Only pending prescriptions can be rejected", Err: errors.New("invalid status transition")})
		return
	}

	var sold int64
	if err := db.Model(&model.PrescriptionDrug{}).
		Where("prescription_id = ? AND is_sold = ?", prescriptionID, true).
		Count(&sold).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to check prescription drugs", Err: errors.New("database error")})
		return
	}
	if sold > 0 {
		util.CallConflict(c, util.APIErrorParams{Msg: "Prescription has dispensed drugs and can no longer be rejected", Err: errors.New("dispensing already started")})
		return
	}

	if err := db.Model(&prescription).Update("status", model.PrescriptionRejected).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to reject prescription", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Prescription rejected successfully", Data: nil})
}

// fetchPrescriptionsWithLines loads headers matching the filter, then all
// their lines in one IN query, and groups the lines in memory. Two queries
// total regardless of result size.
func fetchPrescriptionsWithLines(db *gorm.DB, where, nameSelect, nameJoin string, id uint) ([]model.ListPrescriptionResponse, error) {
	var headers []model.ListPrescriptionResponse
	err := db.Table("prescriptions").
		Select("prescriptions.*, "+nameSelect).
		Joins(nameJoin).
		Where(where+" AND prescriptions.deleted_at IS NULL", id).
		Order("prescriptions.date DESC").
		Find(&headers).Error
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return []model.ListPrescriptionResponse{}, nil
	}

	ids := make([]uint, len(headers))
	for i, h := range headers {
		ids[i] = h.ID
	}

	grouped, err := fetchLinesForPrescriptions(db, ids)
	if err != nil {
		return nil, err
	}

	for i := range headers {
		if lines, ok := grouped[headers[i].ID]; ok {
			headers[i].Drugs = lines
		} else {
			headers[i].Drugs = []model.PrescriptionLine{}
		}
	}
	return headers, nil
}

func fetchLinesForPrescriptions(db *gorm.DB, ids []uint) (map[uint][]model.PrescriptionLine, error) {
	var lines []model.PrescriptionLine
	err := db.Table("prescription_drugs").
		Select("prescription_drugs.*, drugs.name as drug_name").
		Joins("JOIN drugs ON drugs.id = prescription_drugs.drug_id").
		Where("prescription_drugs.prescription_id IN ? AND prescription_drugs.deleted_at IS NULL", ids).
		Find(&lines).Error
	if err != nil {
		return nil, err
	}

	grouped := make(map[uint][]model.PrescriptionLine, len(ids))
	for _, line := range lines {
		grouped[line.PrescriptionID] = append(grouped[line.PrescriptionID], line)
	}
	return grouped, nil
}
