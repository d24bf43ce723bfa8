// Package sandbox assembles an in-memory MedVault backend for demos,
// development and end-to-end tests of the client. Data generation is
// deterministic for a given seed.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/medvault/medvault/internal/domain/clinical"
	"github.com/medvault/medvault/internal/domain/identity"
	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/blobstore"
	"github.com/medvault/medvault/internal/platform/validate"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// SeedConfig controls the volume of generated data.
type SeedConfig struct {
	Seed         int64 `json:"seed"`
	DoctorCount  int   `json:"doctorCount"`
	PatientCount int   `json:"patientCount"`
	DaysAhead    int   `json:"daysAhead"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Seed:         42,
		DoctorCount:  4,
		PatientCount: 6,
		DaysAhead:    5,
	}
}

// Seeded account credentials. Numbered accounts follow the pattern
// doctor1@medvault.test, patient1@medvault.test and so on.
const (
	AdminEmail      = "admin@medvault.test"
	AdminPassword   = "admin123"
	DoctorPassword  = "doctor123"
	PatientPassword = "patient123"
)

func DoctorEmail(n int) string  { return fmt.Sprintf("doctor%d@medvault.test", n) }
func PatientEmail(n int) string { return fmt.Sprintf("patient%d@medvault.test", n) }

// ---------------------------------------------------------------------------
// Name pools
// ---------------------------------------------------------------------------

var (
	firstNames = []string{
		"James", "Maria", "Wei", "Aisha", "Lucas", "Priya", "Omar", "Elena",
		"Noah", "Sofia", "Kenji", "Fatima", "Liam", "Zara", "Mateo", "Ingrid",
	}
	lastNames = []string{
		"Smith", "Garcia", "Chen", "Khan", "Silva", "Patel", "Haddad", "Novak",
		"Brown", "Rossi", "Tanaka", "Okafor", "Murphy", "Larsen", "Costa", "Weber",
	}
	specializations = []string{
		"Cardiology", "Dermatology", "Neurology", "Pediatrics", "Orthopedics", "General Medicine",
	}
	hospitals = []string{
		"City General Hospital", "Northside Clinic", "St. Mary's Medical Center", "Riverside Health",
	}
	bookingReasons = []string{
		"Routine checkup", "Follow-up visit", "Persistent headache", "Skin rash",
		"Knee pain", "Chest discomfort", "Prescription renewal", "",
	}
	historyProblems = []string{"Asthma", "Hypertension", "Seasonal allergies", "Type 2 diabetes", "Migraine"}
	intensities     = []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}
	feedbackTexts   = []string{
		"Very thorough and kind.", "Explained everything clearly.", "Short wait, helpful advice.",
	}
)

// ---------------------------------------------------------------------------
// DataGenerator
// ---------------------------------------------------------------------------

// DataGenerator produces deterministic account and appointment data.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator returns a generator seeded for reproducibility. If seed is
// 0 a time-based seed is chosen.
func NewDataGenerator(seed int64) *DataGenerator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &DataGenerator{rng: rand.New(rand.NewSource(seed))}
}

func (g *DataGenerator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *DataGenerator) randomDate(minYear, maxYear int) string {
	y := minYear + g.rng.Intn(maxYear-minYear+1)
	m := 1 + g.rng.Intn(12)
	d := 1 + g.rng.Intn(28)
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}

func (g *DataGenerator) randomPhone() string {
	return fmt.Sprintf("+1-%03d-%03d-%04d", 200+g.rng.Intn(800), 200+g.rng.Intn(800), g.rng.Intn(10000))
}

func (g *DataGenerator) fullName() string {
	return g.pick(firstNames) + " " + g.pick(lastNames)
}

// Doctor returns the registration form of the n-th seeded doctor.
func (g *DataGenerator) Doctor(n int) validate.RegisterForm {
	return validate.RegisterForm{
		Name:             "Dr. " + g.fullName(),
		Email:            DoctorEmail(n),
		Password:         DoctorPassword,
		Phone:            g.randomPhone(),
		Gender:           g.pick([]string{"MALE", "FEMALE"}),
		Specialization:   g.pick(specializations),
		Hospital:         g.pick(hospitals),
		Experience:       2 + g.rng.Intn(25),
		ConsultationFees: float64(50 + 10*g.rng.Intn(15)),
		Role:             "DOCTOR",
	}
}

// Patient returns the registration form of the n-th seeded patient.
func (g *DataGenerator) Patient(n int) validate.RegisterForm {
	return validate.RegisterForm{
		Name:                  g.fullName(),
		Email:                 PatientEmail(n),
		Password:              PatientPassword,
		Phone:                 g.randomPhone(),
		Gender:                g.pick([]string{"MALE", "FEMALE"}),
		DOB:                   g.randomDate(1950, 2005),
		Address:               fmt.Sprintf("%d Main Street", 1+g.rng.Intn(999)),
		EmergencyContactPhone: g.randomPhone(),
		Role:                  "PATIENT",
	}
}

// ---------------------------------------------------------------------------
// Seeder
// ---------------------------------------------------------------------------

// Services are the domain services a Seeder populates.
type Services struct {
	Identity   *identity.Service
	Scheduling *scheduling.Service
	Clinical   *clinical.Service
}

// SeedResult summarizes what was generated.
type SeedResult struct {
	Doctors              int           `json:"doctors"`
	Patients             int           `json:"patients"`
	PendingRegistrations int           `json:"pendingRegistrations"`
	Slots                int           `json:"slots"`
	Appointments         int           `json:"appointments"`
	Records              int           `json:"records"`
	Emergencies          int           `json:"emergencies"`
	Duration             time.Duration `json:"duration"`
}

type Seeder struct {
	generator *DataGenerator
	config    SeedConfig
	now       func() time.Time
}

func NewSeeder(config SeedConfig) *Seeder {
	return &Seeder{generator: NewDataGenerator(config.Seed), config: config, now: time.Now}
}

// Generate populates the services. Slots start tomorrow so every seeded
// appointment is in the future when the sandbox comes up.
func (s *Seeder) Generate(ctx context.Context, svc Services) (*SeedResult, error) {
	start := time.Now()
	g := s.generator
	result := &SeedResult{}

	admin := validate.RegisterForm{Name: "MedVault Admin", Email: AdminEmail, Password: AdminPassword, Role: "ADMIN"}
	if _, err := svc.Identity.Seed(ctx, admin, auth.RoleAdmin, false); err != nil {
		return nil, fmt.Errorf("seed admin: %w", err)
	}

	var doctorIDs, patientIDs []int64
	for i := 1; i <= s.config.DoctorCount; i++ {
		u, err := svc.Identity.Seed(ctx, g.Doctor(i), auth.RoleDoctor, false)
		if err != nil {
			return nil, fmt.Errorf("seed doctor %d: %w", i, err)
		}
		doctorIDs = append(doctorIDs, u.ID)
	}
	for i := 1; i <= s.config.PatientCount; i++ {
		u, err := svc.Identity.Seed(ctx, g.Patient(i), auth.RolePatient, false)
		if err != nil {
			return nil, fmt.Errorf("seed patient %d: %w", i, err)
		}
		patientIDs = append(patientIDs, u.ID)
	}
	result.Doctors = len(doctorIDs)
	result.Patients = len(patientIDs)

	// One registration of each role waits for the admin.
	for i, role := range []string{"PATIENT", "DOCTOR"} {
		form := g.Patient(s.config.PatientCount + 1 + i)
		form.Email = fmt.Sprintf("pending%d@medvault.test", i+1)
		form.Role = role
		if _, err := svc.Identity.Register(ctx, form); err != nil {
			return nil, fmt.Errorf("seed pending registration: %w", err)
		}
		result.PendingRegistrations++
	}

	tomorrow := s.now().UTC().AddDate(0, 0, 1)
	var slots []*scheduling.Slot
	for _, doctorID := range doctorIDs {
		for d := 0; d < s.config.DaysAhead; d++ {
			created, err := svc.Scheduling.CreateSlots(ctx, doctorID, validate.CreateSlotsForm{
				SlotDate:            tomorrow.AddDate(0, 0, d).Format(scheduling.DateLayout),
				StartTime:           "09:00",
				EndTime:             "12:00",
				SlotIntervalMinutes: 30,
			})
			if err != nil {
				return nil, fmt.Errorf("seed slots for doctor %d: %w", doctorID, err)
			}
			slots = append(slots, created...)
		}
	}
	result.Slots = len(slots)

	if err := s.seedAppointments(ctx, svc, slots, patientIDs, result); err != nil {
		return nil, err
	}
	if len(patientIDs) > 0 {
		if err := s.seedClinical(ctx, svc, patientIDs[0], result); err != nil {
			return nil, err
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// seedAppointments books one slot in three and walks the bookings through
// every lifecycle status.
func (s *Seeder) seedAppointments(ctx context.Context, svc Services, slots []*scheduling.Slot, patientIDs []int64, result *SeedResult) error {
	if len(patientIDs) == 0 {
		return nil
	}
	g := s.generator
	for i, slot := range slots {
		if i%3 != 0 {
			continue
		}
		patientID := patientIDs[g.rng.Intn(len(patientIDs))]
		appt, err := svc.Scheduling.Book(ctx, patientID, slot.ID, g.pick(bookingReasons))
		if err != nil {
			return fmt.Errorf("seed booking: %w", err)
		}
		result.Appointments++

		switch g.rng.Intn(5) {
		case 0:
			// stays PENDING
		case 1, 2:
			if _, err := svc.Scheduling.ChangeStatus(ctx, slot.DoctorID, appt.AppointmentID, validate.StatusChangeForm{Status: "CONFIRMED"}); err != nil {
				return fmt.Errorf("seed confirm: %w", err)
			}
		case 3:
			if _, err := svc.Scheduling.ChangeStatus(ctx, slot.DoctorID, appt.AppointmentID, validate.StatusChangeForm{Status: "CONFIRMED"}); err != nil {
				return fmt.Errorf("seed confirm: %w", err)
			}
			if _, err := svc.Scheduling.ChangeStatus(ctx, slot.DoctorID, appt.AppointmentID, validate.StatusChangeForm{Status: "COMPLETED"}); err != nil {
				return fmt.Errorf("seed complete: %w", err)
			}
			if g.rng.Intn(2) == 0 {
				err := svc.Scheduling.SubmitFeedback(ctx, patientID, appt.AppointmentID, g.pick(feedbackTexts), 3+g.rng.Intn(3))
				if err != nil {
					return fmt.Errorf("seed feedback: %w", err)
				}
			}
		case 4:
			if _, err := svc.Scheduling.Cancel(ctx, patientID, appt.AppointmentID, "Schedule conflict"); err != nil {
				return fmt.Errorf("seed cancel: %w", err)
			}
		}
	}
	return nil
}

func (s *Seeder) seedClinical(ctx context.Context, svc Services, patientID int64, result *SeedResult) error {
	g := s.generator
	up := &blobstore.Upload{
		FileName:    "blood-panel.txt",
		ContentType: "text/plain",
		Data:        []byte("Hemoglobin 13.8 g/dL\nWBC 6.1 x10^9/L\nPlatelets 250 x10^9/L\n"),
	}
	if _, err := svc.Clinical.UploadRecord(ctx, patientID, "Blood panel", up); err != nil {
		return fmt.Errorf("seed record: %w", err)
	}
	result.Records++

	for i := 0; i < 2; i++ {
		form := validate.HistoryForm{
			Problem:   g.pick(historyProblems),
			Date:      g.randomDate(2015, 2023),
			Intensity: g.pick(intensities[:3]),
		}
		if _, err := svc.Clinical.AddHistory(ctx, patientID, form); err != nil {
			return fmt.Errorf("seed history: %w", err)
		}
	}

	em := validate.EmergencyForm{
		Problem:   "Severe allergic reaction",
		Intensity: "HIGH",
		Message:   "Swelling after eating peanuts",
		Location:  "Home",
	}
	if _, err := svc.Clinical.RaiseEmergency(ctx, patientID, em); err != nil {
		return fmt.Errorf("seed emergency: %w", err)
	}
	result.Emergencies++
	return nil
}
