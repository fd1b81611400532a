// main.go
package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/hcc/clinic-api/config"
	"github.com/hcc/clinic-api/endpoint"
	"github.com/hcc/clinic-api/middleware"
	"github.com/hcc/clinic-api/model"
	"github.com/hcc/clinic-api/util"
)

func main() {
	cfg := config.LoadConfig()

	// The signing secret must come from the environment. Refusing to start
	// beats shipping a hardcoded fallback.
	if cfg.JWTSecret == "" {
		log.Fatal("JWTSECRET is not set; refusing to start without a signing secret")
	}
	util.SetJWTSecret(cfg.JWTSecret)

	db, err := config.ConnectDatabase()
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Slot{},
		&model.Appointment{},
		&model.Drug{},
		&model.Prescription{},
		&model.PrescriptionDrug{},
		&model.SecurityLog{},
	); err != nil {
		log.Fatalf("Error migrating database: %v", err)
	}
	util.SetSecurityLoggerDB(db)

	if _, err := config.ConnectRedis(); err != nil {
		// Rate limiting degrades to allow-all without Redis.
		log.Printf("Redis unavailable: %v", err)
	}

	gin.SetMode(cfg.GinMode)
	router := setupRouter(db, cfg)

	address := fmt.Sprintf(":%d", cfg.AppPort)
	if err := router.Run(address); err != nil {
		log.Fatalf("error starting server: %v", err)
	}
}

func setupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.DatabaseMiddleware(db))
	router.Use(middleware.EndpointCallLogger())

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": fmt.Sprintf("Welcome to %s!", cfg.AppName),
		})
	})

	loginLimiter := middleware.RateLimiter(middleware.RateLimitConfig{})

	auth := router.Group("/auth")
	{
		auth.POST("/register", loginLimiter, endpoint.Register)
		auth.POST("/login", loginLimiter, endpoint.Login)
		auth.GET("/me", middleware.Auth(), endpoint.Me)
	}

	doctors := router.Group("/doctors")
	{
		doctors.GET("", middleware.Auth(), endpoint.ListDoctors)
		doctors.POST("/slots", middleware.Auth(model.RoleDoctor, model.RoleReceptionist), endpoint.CreateSlots)
		doctors.PATCH("/slots/:id", middleware.Auth(model.RoleDoctor, model.RoleReceptionist), endpoint.UpdateSlot)
		doctors.GET("/:id/slots", endpoint.ListDoctorSlots)
		doctors.GET("/:id/appointments", middleware.Auth(model.RoleDoctor, model.RoleReceptionist), endpoint.ListDoctorAppointments)
	}

	appointments := router.Group("/appointments")
	{
		appointments.POST("", middleware.Auth(model.RoleStudent), endpoint.BookAppointment)
		appointments.GET("/all", middleware.Auth(model.RoleReceptionist), endpoint.ListAllAppointments)
		appointments.GET("/student/:id", middleware.Auth(model.RoleStudent), endpoint.ListStudentAppointments)
		appointments.GET("/doctor/:id", middleware.Auth(model.RoleDoctor), endpoint.ListDoctorOwnAppointments)
		appointments.PATCH("/:id/complete", middleware.Auth(model.RoleDoctor, model.RoleReceptionist), endpoint.CompleteAppointment)
		appointments.DELETE("/:id", middleware.Auth(model.RoleStudent), endpoint.CancelAppointment)
	}

	drugs := router.Group("/drugs")
	{
		drugs.GET("", middleware.Auth(), endpoint.ListDrugs)
		drugs.POST("", middleware.Auth(model.RoleDrugstoreManager), endpoint.CreateDrug)
		drugs.GET("/recent-prescriptions", middleware.Auth(model.RoleDrugstoreManager), endpoint.RecentPrescriptions)
		drugs.PATCH("/prescription-drugs/:id/sold", middleware.Auth(model.RoleDrugstoreManager), endpoint.DispensePrescriptionDrug)
		drugs.PATCH("/:id", middleware.Auth(model.RoleDrugstoreManager), endpoint.UpdateDrug)
		drugs.DELETE("/:id", middleware.Auth(model.RoleDrugstoreManager), endpoint.DeleteDrug)
	}

	prescriptions := router.Group("/prescriptions")
	{
		prescriptions.POST("", middleware.Auth(model.RoleDoctor), endpoint.CreatePrescription)
		prescriptions.GET("/pending", middleware.Auth(model.RoleDrugstoreManager), endpoint.ListPendingPrescriptions)
		prescriptions.GET("/patient/:id", middleware.Auth(), endpoint.ListPatientPrescriptions)
		prescriptions.GET("/doctor/:id", middleware.Auth(model.RoleDoctor), endpoint.ListDoctorPrescriptions)
		prescriptions.PATCH("/:id/reject", middleware.Auth(model.RoleDrugstoreManager), endpoint.RejectPrescription)
		prescriptions.GET("/:id", middleware.Auth(), endpoint.GetPrescription)
	}

	users := router.Group("/users")
	{
		users.POST("", middleware.Auth(model.RoleReceptionist), endpoint.CreateUser)
		users.GET("", middleware.Auth(model.RoleReceptionist, model.RoleDoctor), endpoint.ListUsers)
		users.GET("/:id", middleware.Auth(), endpoint.GetUser)
		users.PATCH("/:id", middleware.Auth(), endpoint.UpdateUser)
		users.DELETE("/:id", middleware.Auth(model.RoleReceptionist), endpoint.DeleteUser)
	}

	return router
}
