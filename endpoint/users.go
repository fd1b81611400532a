package endpoint

import (
	"errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hcc/clinic-api/model"
	"github.com/hcc/clinic-api/util"
)

// UpdateUserRequest carries the only profile fields that may change. Role is
// deliberately absent: it is immutable after registration.
type UpdateUserRequest struct {
	Name           *string `json:"name"`
	Phone          *string `json:"phone"`
	Batch          *string `json:"batch"`
	Branch         *string `json:"branch"`
	RollNumber     *string `json:"roll_number"`
	Specialization *string `json:"specialization"`
	Password       *string `json:"password"`
}

// CreateUser lets a receptionist register an account of any role.
func CreateUser(c *gin.Context) {
	var req RegisterRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	if !model.IsValidRole(req.Role) {
		util.CallUserError(c, util.APIErrorParams{Msg: "Invalid role", Err: errors.New("unknown role")})
		return
	}
	if !ensureEmailAvailable(c, db, req.Email) {
		return
	}

	hashedPassword, salt, ok := hashPasswordOrRespond(c, req.Password)
	if !ok {
		return
	}

	user := model.User{
		Name:           util.NormalizeName(req.Name),
		Email:          req.Email,
		Password:       hashedPassword,
		PasswordSalt:   salt,
		Role:           req.Role,
		Phone:          req.Phone,
		Batch:          req.Batch,
		Branch:         req.Branch,
		RollNumber:     req.RollNumber,
		Specialization: req.Specialization,
	}
	if err := db.Create(&user).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to create user", Err: errors.New("database error")})
		return
	}

	util.CallCreated(c, util.APISuccessParams{Msg: "User created successfully", Data: user})
}

// ListUsers returns users, optionally filtered by ?role=. Receptionists see
// everyone; doctors may only fetch students (to pick a patient when writing
// a prescription).
func ListUsers(c *gin.Context) {
	current, ok := currentUserOrRespond(c)
	if !ok {
		return
	}

	role := c.Query("role")
	if current.Role == model.RoleDoctor && role != model.RoleStudent {
		util.CallForbidden(c, util.APIErrorParams{Msg: "Access denied: doctors can only fetch student data", Err: errors.New("role filter not permitted")})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	query := db.Model(&model.User{}).Order("name")
	if role != "" {
		query = query.Where("role = ?", role)
	}

	var users []model.User
	if err := query.Find(&users).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch users", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "Users fetched successfully", Data: users})
}

// GetUser returns one profile, to the user themselves or a receptionist.
func GetUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	current, ok := currentUserOrRespond(c)
	if !ok {
		return
	}
	if current.ID != userID && current.Role != model.RoleReceptionist {
		util.CallForbidden(c, util.APIErrorParams{Msg: "Access denied", Err: errors.New("not your profile")})
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "User not found", Err: errors.New("user not found")})
		} else {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch user", Err: errors.New("database error")})
		}
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "User fetched successfully", Data: user})
}

// UpdateUser applies a whitelisted-field update to a profile, for the user
// themselves or a receptionist.
func UpdateUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	current, ok := currentUserOrRespond(c)
	if !ok {
		return
	}
	if current.ID != userID && current.Role != model.RoleReceptionist {
		util.CallForbidden(c, util.APIErrorParams{Msg: "Access denied", Err: errors.New("not your profile")})
		return
	}

	var req UpdateUserRequest
	if !bindJSONOrRespond(c, &req, "Invalid request payload") {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "User not found", Err: errors.New("user not found")})
		} else {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch user", Err: errors.New("database error")})
		}
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = util.NormalizeName(*req.Name)
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Batch != nil {
		updates["batch"] = *req.Batch
	}
	if req.Branch != nil {
		updates["branch"] = *req.Branch
	}
	if req.RollNumber != nil {
		updates["roll_number"] = *req.RollNumber
	}
	if req.Specialization != nil {
		updates["specialization"] = *req.Specialization
	}
	if req.Password != nil {
		if len(*req.Password) < 6 {
			util.CallUserError(c, util.APIErrorParams{Msg: "Password must be at least 6 characters", Err: errors.New("password too short")})
			return
		}
		hashed, salt, ok := hashPasswordOrRespond(c, *req.Password)
		if !ok {
			return
		}
		updates["password"] = hashed
		updates["password_salt"] = salt
	}
	if len(updates) == 0 {
		util.CallUserError(c, util.APIErrorParams{Msg: "No valid fields to update", Err: errors.New("empty update")})
		return
	}

	if err := db.Model(&user).Updates(updates).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to update user", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "User updated successfully", Data: user})
}

// DeleteUser removes an account. Receptionist accounts cannot be deleted.
func DeleteUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	db, ok := getDBOrRespond(c)
	if !ok {
		return
	}

	var user model.User
	if err := db.First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.CallErrorNotFound(c, util.APIErrorParams{Msg: "User not found", Err: errors.New("user not found")})
		} else {
			util.CallServerError(c, util.APIErrorParams{Msg: "Failed to fetch user", Err: errors.New("database error")})
		}
		return
	}

	if user.Role == model.RoleReceptionist {
		util.CallForbidden(c, util.APIErrorParams{Msg: "Cannot delete receptionist users", Err: errors.New("receptionists are protected")})
		return
	}

	if err := db.Delete(&user).Error; err != nil {
		util.CallServerError(c, util.APIErrorParams{Msg: "Failed to delete user", Err: errors.New("database error")})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{Msg: "User deleted successfully", Data: nil})
}
