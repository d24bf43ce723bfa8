package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medvault/medvault/internal/platform/apperr"
	"github.com/medvault/medvault/internal/platform/blobstore"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/validate"
)

// OTPTTL bounds how long a password-reset code stays valid.
const OTPTTL = 10 * time.Minute

type otpEntry struct {
	code     string
	expires  time.Time
	verified bool
}

type Service struct {
	users  UserRepository
	audit  AuditRepository
	blobs  blobstore.BlobStore
	tokens *auth.Issuer
	logger zerolog.Logger

	now      func() time.Time
	genOTP   func() (string, error)
	hashCost int

	mu   sync.Mutex
	otps map[string]*otpEntry
}

func NewService(users UserRepository, audit AuditRepository, blobs blobstore.BlobStore, tokens *auth.Issuer, logger zerolog.Logger) *Service {
	return &Service{
		users:    users,
		audit:    audit,
		blobs:    blobs,
		tokens:   tokens,
		logger:   logger,
		now:      time.Now,
		genOTP:   randomOTP,
		hashCost: bcrypt.DefaultCost,
		otps:     make(map[string]*otpEntry),
	}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SetOTPGenerator replaces the random six-digit generator.
func (s *Service) SetOTPGenerator(gen func() (string, error)) { s.genOTP = gen }

// SetHashCost lowers the bcrypt cost for seeding and tests.
func (s *Service) SetHashCost(cost int) { s.hashCost = cost }

func randomOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func (s *Service) hash(password string) ([]byte, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return h, nil
}

func (s *Service) record(ctx context.Context, u *User, action string) {
	entry := &AuditLog{Username: u.Name, Email: u.Email, Action: action, Timestamp: s.now().UTC()}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to append audit log")
	}
}

func (s *Service) get(ctx context.Context, id int64) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "user %d not found", id)
	}
	return u, err
}

// getWithRole loads a user and checks it carries the expected role.
func (s *Service) getWithRole(ctx context.Context, id int64, role auth.Role) (*User, error) {
	u, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.RoleOf() != role {
		return nil, apperr.New(apperr.ErrNotFound, "%s %d not found", role, id)
	}
	return u, nil
}

func (s *Service) newUser(form validate.RegisterForm, role auth.Role) (*User, error) {
	hash, err := s.hash(form.Password)
	if err != nil {
		return nil, err
	}
	u := &User{
		Name:                  strings.TrimSpace(form.Name),
		Email:                 strings.TrimSpace(form.Email),
		PasswordHash:          hash,
		Role:                  role.Wire(),
		Phone:                 form.Phone,
		Gender:                form.Gender,
		DOB:                   form.DOB,
		Address:               form.Address,
		EmergencyContactPhone: form.EmergencyContactPhone,
		CreatedAt:             s.now().UTC(),
	}
	if role == auth.RoleDoctor {
		u.Specialization = form.Specialization
		u.Hospital = form.Hospital
		u.Experience = form.Experience
		u.ConsultationFees = form.ConsultationFees
		u.ProfileStatus = ProfileIncomplete
	}
	return u, nil
}

// Register files a self-registration that waits for admin approval.
func (s *Service) Register(ctx context.Context, form validate.RegisterForm) (*User, error) {
	if err := validate.Struct(form); err != nil {
		return nil, apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	role, _ := auth.ParseRole(form.Role)
	u, err := s.newUser(form, role)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.record(ctx, u, ActionRegister)
	return u, nil
}

// Seed stores an already approved account. Used by the sandbox seeder.
func (s *Service) Seed(ctx context.Context, form validate.RegisterForm, role auth.Role, firstLogin bool) (*User, error) {
	u, err := s.newUser(form, role)
	if err != nil {
		return nil, err
	}
	u.Approved = true
	u.FirstLogin = firstLogin
	if role == auth.RoleDoctor {
		u.ProfileStatus = ProfileApproved
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, form validate.LoginForm) (LoginResponse, error) {
	if err := validate.Struct(form); err != nil {
		return LoginResponse{}, apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	u, err := s.users.GetByEmail(ctx, form.Email)
	if errors.Is(err, ErrNotFound) {
		return LoginResponse{}, apperr.New(apperr.ErrUnauthorized, "invalid email or password")
	}
	if err != nil {
		return LoginResponse{}, err
	}
	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(form.Password)) != nil {
		return LoginResponse{}, apperr.New(apperr.ErrUnauthorized, "invalid email or password")
	}
	if !u.Approved {
		return LoginResponse{}, apperr.New(apperr.ErrForbidden, "account is pending admin approval")
	}
	token, err := s.tokens.Issue(u.ID, u.Email, u.RoleOf())
	if err != nil {
		return LoginResponse{}, err
	}
	s.record(ctx, u, ActionLogin)
	return LoginResponse{Token: token, Role: u.Role}, nil
}

func (s *Service) Dashboard(ctx context.Context, userID int64) (DashboardInfo, error) {
	u, err := s.get(ctx, userID)
	if err != nil {
		return DashboardInfo{}, err
	}
	info := DashboardInfo{FirstLogin: u.FirstLogin, Name: u.Name}
	if u.FirstLogin {
		info.Message = "Please set a new password to continue"
	} else {
		info.Message = "Welcome, " + u.Name
	}
	return info, nil
}

func (s *Service) SetPassword(ctx context.Context, userID int64, form validate.SetPasswordForm) error {
	if err := validate.Struct(form); err != nil {
		return apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	u, err := s.get(ctx, userID)
	if err != nil {
		return err
	}
	if u.PasswordHash, err = s.hash(form.NewPassword); err != nil {
		return err
	}
	u.FirstLogin = false
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	s.record(ctx, u, ActionPasswordSet)
	return nil
}

// ForgotPassword issues a one-time code. Delivery is out of band; the code
// is logged at info level.
func (s *Service) ForgotPassword(ctx context.Context, form validate.ForgotPasswordForm) error {
	if err := validate.Struct(form); err != nil {
		return apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	u, err := s.users.GetByEmail(ctx, form.Email)
	if errors.Is(err, ErrNotFound) {
		return apperr.New(apperr.ErrNotFound, "no account for %s", form.Email)
	}
	if err != nil {
		return err
	}
	code, err := s.genOTP()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.otps[emailKey(u.Email)] = &otpEntry{code: code, expires: s.now().Add(OTPTTL)}
	s.mu.Unlock()
	s.logger.Info().Str("email", u.Email).Str("otp", code).Msg("password reset code issued")
	return nil
}

func (s *Service) checkOTP(email, code string) (*otpEntry, error) {
	e, ok := s.otps[emailKey(email)]
	if !ok || e.code != code {
		return nil, apperr.New(apperr.ErrInvalid, "invalid otp")
	}
	if s.now().After(e.expires) {
		delete(s.otps, emailKey(email))
		return nil, apperr.New(apperr.ErrInvalid, "otp has expired")
	}
	return e, nil
}

func (s *Service) VerifyOTP(_ context.Context, form validate.OTPForm) error {
	if err := validate.Struct(form); err != nil {
		return apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.checkOTP(form.Email, form.OTP)
	if err != nil {
		return err
	}
	e.verified = true
	return nil
}

// ResetPassword consumes the code; it does not require a prior VerifyOTP call.
func (s *Service) ResetPassword(ctx context.Context, form validate.ResetPasswordForm) error {
	if err := validate.Struct(form); err != nil {
		return apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	s.mu.Lock()
	_, err := s.checkOTP(form.Email, form.OTP)
	if err == nil {
		delete(s.otps, emailKey(form.Email))
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, form.Email)
	if err != nil {
		return err
	}
	if u.PasswordHash, err = s.hash(form.NewPassword); err != nil {
		return err
	}
	u.FirstLogin = false
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	s.record(ctx, u, ActionPasswordReset)
	return nil
}

func (s *Service) Profile(ctx context.Context, userID int64) (*User, error) {
	return s.get(ctx, userID)
}

// UpdateProfile applies a profile edit. A doctor profile with professional
// details and a certificate on file moves to PENDING review.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, form validate.ProfileForm, govID, cert *blobstore.Upload) (*User, error) {
	if err := validate.Struct(form); err != nil {
		return nil, apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	u, err := s.get(ctx, userID)
	if err != nil {
		return nil, err
	}
	applyProfile(u, form)
	if govID != nil {
		if u.GovernmentID, err = s.replaceBlob(ctx, u, u.GovernmentID, blobstore.CategoryGovernmentID, govID); err != nil {
			return nil, err
		}
	}
	if u.RoleOf() == auth.RoleDoctor {
		if cert != nil {
			if u.DoctorCertificate, err = s.replaceBlob(ctx, u, u.DoctorCertificate, blobstore.CategoryDoctorCertificate, cert); err != nil {
				return nil, err
			}
		}
		if u.ProfileStatus != ProfileApproved && doctorProfileComplete(u) {
			u.ProfileStatus = ProfilePending
			u.AdminMessage = ""
		}
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// replaceBlob stores a new upload and drops the one it supersedes.
func (s *Service) replaceBlob(ctx context.Context, u *User, oldID, category string, up *blobstore.Upload) (string, error) {
	meta, err := blobstore.Store(ctx, s.blobs, u.ID, category, up)
	if err != nil {
		return "", err
	}
	if oldID != "" {
		if err := s.blobs.Delete(ctx, oldID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
			s.logger.Warn().Err(err).Str("blob_id", oldID).Msg("failed to delete replaced document")
		}
	}
	return meta.ID, nil
}

func applyProfile(u *User, form validate.ProfileForm) {
	u.Name = strings.TrimSpace(form.Name)
	u.DOB = form.DOB
	u.Gender = form.Gender
	u.Phone = form.Phone
	u.Address = form.Address
	u.EmergencyContactPhone = form.EmergencyContactPhone
	if u.RoleOf() == auth.RoleDoctor {
		u.Specialization = form.Specialization
		u.ConsultationFees = form.ConsultationFees
		u.Hospital = form.Hospital
		u.Experience = form.Experience
	}
}

func doctorProfileComplete(u *User) bool {
	return strings.TrimSpace(u.Specialization) != "" &&
		strings.TrimSpace(u.Hospital) != "" &&
		u.DoctorCertificate != ""
}

func (s *Service) ProfileCompletion(ctx context.Context, doctorID int64) (ProfileCompletion, error) {
	u, err := s.getWithRole(ctx, doctorID, auth.RoleDoctor)
	if err != nil {
		return ProfileCompletion{}, err
	}
	status := u.ProfileStatus
	if status == "" {
		status = ProfileIncomplete
	}
	return ProfileCompletion{Status: status, AdminMessage: u.AdminMessage}, nil
}

// Users lists approved accounts with the given role.
func (s *Service) Users(ctx context.Context, role auth.Role) ([]*User, error) {
	return s.users.List(ctx, func(u *User) bool {
		return u.Approved && u.RoleOf() == role
	})
}

// ActiveDoctors lists doctors patients may book: approved accounts with an
// approved profile.
func (s *Service) ActiveDoctors(ctx context.Context) ([]*User, error) {
	return s.users.List(ctx, func(u *User) bool {
		return u.Approved && u.RoleOf() == auth.RoleDoctor && u.ProfileStatus == ProfileApproved
	})
}

func (s *Service) PendingRegistrations(ctx context.Context) ([]*User, error) {
	return s.users.List(ctx, func(u *User) bool { return !u.Approved })
}

func (s *Service) PendingDoctors(ctx context.Context) ([]*User, error) {
	return s.users.List(ctx, func(u *User) bool {
		return u.Approved && u.RoleOf() == auth.RoleDoctor && u.ProfileStatus == ProfilePending
	})
}

// ApproveRegistration activates an account. The user must set a password on
// first login.
func (s *Service) ApproveRegistration(ctx context.Context, id int64) error {
	u, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if u.Approved {
		return apperr.New(apperr.ErrConflict, "registration %d is already approved", id)
	}
	u.Approved = true
	u.FirstLogin = true
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	s.record(ctx, u, ActionApproveRegistration)
	return nil
}

func (s *Service) RejectRegistration(ctx context.Context, id int64) error {
	u, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if u.Approved {
		return apperr.New(apperr.ErrConflict, "registration %d is already approved", id)
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, u, ActionRejectRegistration)
	return nil
}

func (s *Service) reviewDoctor(ctx context.Context, id int64, status ProfileStatus, message, action string) error {
	u, err := s.getWithRole(ctx, id, auth.RoleDoctor)
	if err != nil {
		return err
	}
	if u.ProfileStatus != ProfilePending {
		return apperr.New(apperr.ErrConflict, "doctor %d has no profile awaiting review", id)
	}
	u.ProfileStatus = status
	u.AdminMessage = strings.TrimSpace(message)
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	s.record(ctx, u, action)
	return nil
}

func (s *Service) ApproveDoctor(ctx context.Context, id int64, message string) error {
	return s.reviewDoctor(ctx, id, ProfileApproved, message, ActionApproveDoctor)
}

// RejectDoctor sends the profile back; the message tells the doctor what to fix.
func (s *Service) RejectDoctor(ctx context.Context, id int64, message string) error {
	if strings.TrimSpace(message) == "" {
		return apperr.New(apperr.ErrInvalid, "message is required")
	}
	return s.reviewDoctor(ctx, id, ProfileRejected, message, ActionRejectDoctor)
}

func (s *Service) DeleteUser(ctx context.Context, role auth.Role, id int64) error {
	u, err := s.getWithRole(ctx, id, role)
	if err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, u, ActionDeleteUser)
	return nil
}

// AddUser creates an approved account on behalf of an admin.
func (s *Service) AddUser(ctx context.Context, role auth.Role, form validate.RegisterForm) (*User, error) {
	form.Role = role.Wire()
	if err := validate.Struct(form); err != nil {
		return nil, apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	u, err := s.newUser(form, role)
	if err != nil {
		return nil, err
	}
	u.Approved = true
	u.FirstLogin = true
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.record(ctx, u, ActionAddUser)
	return u, nil
}

func (s *Service) UpdateUser(ctx context.Context, role auth.Role, id int64, form validate.ProfileForm) (*User, error) {
	if err := validate.Struct(form); err != nil {
		return nil, apperr.New(apperr.ErrInvalid, "%s", err.Error())
	}
	u, err := s.getWithRole(ctx, id, role)
	if err != nil {
		return nil, err
	}
	applyProfile(u, form)
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.record(ctx, u, ActionUpdateUser)
	return u, nil
}

// Certificate returns the blob id of one of a doctor's uploaded documents.
func (s *Service) Certificate(ctx context.Context, doctorID int64, kind string) (string, error) {
	u, err := s.getWithRole(ctx, doctorID, auth.RoleDoctor)
	if err != nil {
		return "", err
	}
	var id string
	switch kind {
	case CertificateDoctor:
		id = u.DoctorCertificate
	case CertificateGovernmentID:
		id = u.GovernmentID
	default:
		return "", apperr.New(apperr.ErrInvalid, "unknown certificate type %q", kind)
	}
	if id == "" {
		return "", apperr.New(apperr.ErrNotFound, "doctor %d has no %s on file", doctorID, kind)
	}
	return id, nil
}

func (s *Service) Logs(ctx context.Context) ([]*AuditLog, error) {
	return s.audit.List(ctx)
}

// RecordDataAccess appends a patient-data access to the audit log. The action
// reads like "READ_MEDICAL_RECORD".
func (s *Service) RecordDataAccess(ctx context.Context, userID int64, verb, resource string) error {
	u, err := s.get(ctx, userID)
	if err != nil {
		return err
	}
	action := strings.ToUpper(verb + "_" + strings.ReplaceAll(resource, "-", "_"))
	s.record(ctx, u, action)
	return nil
}
