package endpoint

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hcc/clinic-api/model"
	"github.com/hcc/clinic-api/util"
)

type CreateDrugRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// UpdateDrugRequest carries the only fields a drugstore manager may change.
// Updates are applied column by column from this fixed set, never from an
// arbitrary request-body map.
type UpdateDrugRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Quantity    *int     `json:"quantity"`
	Price       *float64 `json:"price"`
}

// ListDrugs returns the whole inventory ordered by name.
func ListDrugs(c *gin.Context) {
	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var drugs []model.Drug
	if err := db.Order("name").Find(&drugs).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch drugs", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Drugs fetched successfully", Data: drugs})
}

// CreateDrug adds a new inventory entry.
func CreateDrug(c *gin.Context) {
	var req CreateDrugRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	if req.Quantity < 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: "Quantity must be a non-negative integer", Err: errors.New("negative quantity")})
		return
	}
	if req.Price < 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: "Price must be a non-negative number", Err: errors.New("negative price")})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	drug := model.Drug{
		Name:        util.NormalizeName(req.Name),
		Description: req.Description,
		Quantity:    req.Quantity,
		Price:       req.Price,
	}
	if err := db.Create(&drug).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to add drug", Err: errors.New("database error")})
		return
	}

	util.CallCreated(c, util.APISuccessParams{Msg: "Drug added successfully", Data: drug})
}

// UpdateDrug applies a whitelisted-field update to one inventory entry.
func UpdateDrug(c *gin.Context) {
	drugID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateDrugRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = util.NormalizeName(*req.Name)
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			util.CallUserError(c, util.APIErrorParams{Msg: "Quantity must be a non-negative integer", Err: errors.New("negative quantity")})
			return
		}
		updates["quantity"] = *req.Quantity
	}
	if req.Price != nil {
		if *req.Price < 0 {
			util.CallUserError(c, util.APIErrorParams{Msg: "Price must be a non-negative number", Err: errors.New("negative price")})
			return
		}
		updates["price"] = *req.Price
	}
	if len(updates) == 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: "No valid fields to update", Err: errors.New("empty update")})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var drug model.Drug
	if err := db.First(&drug, drugID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Drug not found", Err: errors.New("drug not found")})
		} else {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch drug", Err: errors.New("database error")})
		}
		return
	}

	if err := db.Model(&drug).Updates(updates).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update drug", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Drug updated successfully", Data: drug})
}

// DeleteDrug removes one inventory entry.
func DeleteDrug(c *gin.Context) {
	drugID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var drug model.Drug
	if err := db.First(&drug, drugID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Drug not found", Err: errors.New("drug not found")})
		} else {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch drug", Err: errors.New("database error")})
		}
		return
	}

	if err := db.Delete(&drug).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete drug", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Drug deleted successfully", Data: nil})
}

// RecentPrescriptions returns the 50 most recent prescription lines with
// their header, patient and drug details, for the drugstore dashboard.
func RecentPrescriptions(c *gin.Context) {
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
		Where("pd.deleted_at IS NULL").
		Order("p.date DESC").
		Limit(50).
		Find(&lines).Error
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch recent prescriptions", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Recent prescriptions fetched successfully", Data: lines})
}

// DispensePrescriptionDrug fulfils one prescription line from inventory:
// marks it sold, decrements stock, and recomputes the header status — all in
// one transaction. A line is only ever dispensed once, and never against
// insufficient stock.
func DispensePrescriptionDrug(c *gin.Context) {
	lineID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var line model.PrescriptionDrug
	if err := db.First(&line, lineID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "Prescription drug not found", Err: errors.New("line item not found")})
		} else {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch prescription drug", Err: errors.New("database error")})
		}
		return
	}

	if line.IsSold {
		util.CallConflict(c, util.APIErrorParams{Msg: "Drug already marked as sold", Err: errors.New("already dispensed")})
		return
	}

	var insufficientStock = errors.New("insufficient stock")

	err := db.Transaction(func(tx *gorm.DB) error {
		// Re-read inside the transaction so the idempotency guard holds
		// against a concurrent dispense of the same line.
		var fresh model.PrescriptionDrug
		if err := tx.First(&fresh, lineID).Error; err != nil {
			return err
		}
		if fresh.IsSold {
			return gorm.ErrDuplicatedKey
		}

		var drug model.Drug
		if err := tx.First(&drug, fresh.DrugID).Error; err != nil {
			return err
		}
		if drug.Quantity < fresh.Quantity {
			return insufficientStock
		}

		if err := tx.Model(&fresh).Update("is_sold", true).Error; err != nil {
			return err
		}
		if err := tx.Model(&drug).Update("quantity", drug.Quantity-fresh.Quantity).Error; err != nil {
			return err
		}

		return recomputePrescriptionStatus(tx, fresh.PrescriptionID)
	})

	switch {
	case err == nil:
		util.CallSuccessOK(c, util.APISuccessParams{Msg: "Drug marked as sold successfully", Data: nil})
	case errors.Is(err, gorm.ErrDuplicatedKey):
		util.CallConflict(c, util.APIErrorParams{Msg: "Drug already marked as sold", Err: errors.New("already dispensed")})
	case errors.Is(err, insufficientStock):
		util.CallConflict(c, util.APIErrorParams{Msg: "Insufficient stock to dispense this prescription", Err: insufficientStock})
	default:
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to dispense prescription drug", Err: errors.New("database error")})
	}
}

// recomputePrescriptionStatus derives the header status from its lines: once
// every line is sold, a pending header flips to dispensed. Runs inside the
// dispensing transaction so header and lines can never drift apart.
func recomputePrescriptionStatus(tx *gorm.DB, prescriptionID uint) error {
	var unsold int64
	if err := tx.Model(&model.PrescriptionDrug{}).
		Where("prescription_id = ? AND is_sold = ?", prescriptionID, false).
		Count(&unsold).Error; err != nil {
		return err
	}
	if unsold > 0 {
		return nil
	}
	return tx.Model(&model.Prescription{}).
		Where("id = ? AND status = ?", prescriptionID, model.PrescriptionPending).
		Update("status", model.PrescriptionDispensed).Error
}
