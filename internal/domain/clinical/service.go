package clinical

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/apperr"
	"github.com/medvault/medvault/internal/platform/blobstore"
	"github.com/medvault/medvault/internal/platform/validate"
)

// Directory resolves display names owned by the identity domain. Unknown ids
// return an apperr.ErrNotFound error.
type Directory interface {
	DoctorName(ctx context.Context, id int64) (string, error)
	PatientName(ctx context.Context, id int64) (string, error)
}

type Service struct {
	db     Stores
	blobs  blobstore.BlobStore
	dir    Directory
	logger zerolog.Logger
	now    func() time.Time

	// serializes emergency acceptance
	accept sync.Mutex
}

func NewService(db Stores, blobs blobstore.BlobStore, dir Directory, logger zerolog.Logger) *Service {
	return &Service{db: db, blobs: blobs, dir: dir, logger: logger, now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

func invalid(err error) error {
	return apperr.New(apperr.ErrInvalid, "%s", err.Error())
}

// ---------------------------------------------------------------------------
// Medical records
// ---------------------------------------------------------------------------

// UploadRecord stores a file for the patient. A blank name falls back to the
// file name.
func (s *Service) UploadRecord(ctx context.Context, patientID int64, name string, up *blobstore.Upload) (*MedicalRecord, error) {
	if up == nil {
		return nil, apperr.New(apperr.ErrInvalid, "file is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = up.FileName
	}
	meta, err := blobstore.Store(ctx, s.blobs, patientID, blobstore.CategoryMedicalRecord, up)
	if err != nil {
		return nil, err
	}
	rec := &MedicalRecord{
		PatientID:   patientID,
		Name:        name,
		FileName:    meta.FileName,
		ContentType: meta.ContentType,
		BlobID:      meta.ID,
		UploadedAt:  s.now().UTC(),
	}
	if err := s.db.Records.Insert(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) Records(ctx context.Context, patientID int64) ([]*MedicalRecord, error) {
	return s.db.Records.Select(ctx, func(r *MedicalRecord) bool { return r.PatientID == patientID })
}

func (s *Service) ownRecord(ctx context.Context, patientID, recordID int64) (*MedicalRecord, error) {
	rec, err := s.db.Records.Get(ctx, recordID)
	if errors.Is(err, ErrNotFound) || (err == nil && rec.PatientID != patientID) {
		return nil, apperr.New(apperr.ErrNotFound, "medical record %d not found", recordID)
	}
	return rec, err
}

// RecordBlob returns the blob id of one of the patient's own records.
func (s *Service) RecordBlob(ctx context.Context, patientID, recordID int64) (string, error) {
	rec, err := s.ownRecord(ctx, patientID, recordID)
	if err != nil {
		return "", err
	}
	return rec.BlobID, nil
}

// DeleteRecord removes the record, its file and every access grant on it.
func (s *Service) DeleteRecord(ctx context.Context, patientID, recordID int64) error {
	rec, err := s.ownRecord(ctx, patientID, recordID)
	if err != nil {
		return err
	}
	if err := s.db.Records.Delete(ctx, rec.RecordID); err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, rec.BlobID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Warn().Err(err).Str("blob_id", rec.BlobID).Msg("failed to delete record file")
	}
	grants, err := s.db.RecordAccess.Select(ctx, func(a *RecordAccess) bool { return a.RecordID == rec.RecordID })
	if err != nil {
		return err
	}
	for _, g := range grants {
		if err := s.db.RecordAccess.Delete(ctx, g.ID); err != nil {
			return err
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Record access
// ---------------------------------------------------------------------------

// RequestRecordAccess files one pending request per patient record the doctor
// cannot already see and is not already waiting on.
func (s *Service) RequestRecordAccess(ctx context.Context, doctorID, patientID int64, days int) ([]*RecordAccess, error) {
	if days == 0 {
		days = DefaultAccessDays
	}
	if days < 1 || days > MaxAccessDays {
		return nil, apperr.New(apperr.ErrInvalid, "accessDays must be between 1 and %d", MaxAccessDays)
	}
	if _, err := s.dir.PatientName(ctx, patientID); err != nil {
		return nil, err
	}
	doctorName, err := s.dir.DoctorName(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	records, err := s.Records(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, apperr.New(apperr.ErrNotFound, "patient %d has no medical records", patientID)
	}

	now := s.now()
	existing, err := s.db.RecordAccess.Select(ctx, func(a *RecordAccess) bool {
		return a.DoctorID == doctorID && a.PatientID == patientID &&
			(a.Status == AccessPending || a.Active(now))
	})
	if err != nil {
		return nil, err
	}
	covered := make(map[int64]bool, len(existing))
	for _, a := range existing {
		covered[a.RecordID] = true
	}

	var created []*RecordAccess
	for _, r := range records {
		if covered[r.RecordID] {
			continue
		}
		a := &RecordAccess{
			RecordID:    r.RecordID,
			RecordName:  r.Name,
			PatientID:   patientID,
			DoctorID:    doctorID,
			DoctorName:  doctorName,
			Status:      AccessPending,
			AccessDays:  days,
			RequestedAt: now.UTC(),
		}
		if err := s.db.RecordAccess.Insert(ctx, a); err != nil {
			return nil, err
		}
		created = append(created, a)
	}
	if len(created) == 0 {
		return nil, apperr.New(apperr.ErrConflict, "access to every record is already granted or requested")
	}
	return created, nil
}

func (s *Service) PendingRecordAccess(ctx context.Context, patientID int64) ([]*RecordAccess, error) {
	return s.db.RecordAccess.Select(ctx, func(a *RecordAccess) bool {
		return a.PatientID == patientID && a.Status == AccessPending
	})
}

// DecideRecordAccess approves or rejects a pending request. Approval starts
// the grant's clock.
func (s *Service) DecideRecordAccess(ctx context.Context, patientID, accessID int64, approve bool) error {
	a, err := s.db.RecordAccess.Get(ctx, accessID)
	if errors.Is(err, ErrNotFound) || (err == nil && a.PatientID != patientID) {
		return apperr.New(apperr.ErrNotFound, "access request %d not found", accessID)
	}
	if err != nil {
		return err
	}
	if a.Status != AccessPending {
		return apperr.New(apperr.ErrConflict, "access request %d is already %s", accessID, a.Status)
	}
	if approve {
		exp := s.now().UTC().AddDate(0, 0, a.AccessDays)
		a.Status = AccessApproved
		a.ExpiresAt = &exp
	} else {
		a.Status = AccessRejected
	}
	return s.db.RecordAccess.Update(ctx, a)
}

// SharedRecords lists records the doctor holds an active grant on. A
// non-zero patientID narrows the list to one patient.
func (s *Service) SharedRecords(ctx context.Context, doctorID, patientID int64) ([]SharedRecord, error) {
	now := s.now()
	grants, err := s.db.RecordAccess.Select(ctx, func(a *RecordAccess) bool {
		return a.DoctorID == doctorID && a.Active(now) && (patientID == 0 || a.PatientID == patientID)
	})
	if err != nil {
		return nil, err
	}
	out := make([]SharedRecord, 0, len(grants))
	names := make(map[int64]string)
	for _, g := range grants {
		rec, err := s.db.Records.Get(ctx, g.RecordID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		name, ok := names[rec.PatientID]
		if !ok {
			name, _ = s.dir.PatientName(ctx, rec.PatientID)
			names[rec.PatientID] = name
		}
		out = append(out, SharedRecord{
			RecordID:    rec.RecordID,
			Name:        rec.Name,
			PatientID:   rec.PatientID,
			PatientName: name,
			FileName:    rec.FileName,
			ExpiresAt:   *g.ExpiresAt,
		})
	}
	return out, nil
}

// SharedRecordBlob returns the blob id of a record the doctor may open.
func (s *Service) SharedRecordBlob(ctx context.Context, doctorID, recordID int64) (string, error) {
	rec, err := s.db.Records.Get(ctx, recordID)
	if errors.Is(err, ErrNotFound) {
		return "", apperr.New(apperr.ErrNotFound, "medical record %d not found", recordID)
	}
	if err != nil {
		return "", err
	}
	now := s.now()
	grants, err := s.db.RecordAccess.Select(ctx, func(a *RecordAccess) bool {
		return a.DoctorID == doctorID && a.RecordID == recordID && a.Active(now)
	})
	if err != nil {
		return "", err
	}
	if len(grants) == 0 {
		return "", apperr.New(apperr.ErrForbidden, "no active access to medical record %d", recordID)
	}
	return rec.BlobID, nil
}

// ---------------------------------------------------------------------------
// Medical history
// ---------------------------------------------------------------------------

func (s *Service) Histories(ctx context.Context, patientID int64) ([]*History, error) {
	return s.db.Histories.Select(ctx, func(h *History) bool { return h.PatientID == patientID })
}

func (s *Service) AddHistory(ctx context.Context, patientID int64, form validate.HistoryForm) (*History, error) {
	if err := validate.Struct(form); err != nil {
		return nil, invalid(err)
	}
	h := &History{
		PatientID: patientID,
		Problem:   strings.TrimSpace(form.Problem),
		Date:      form.Date,
		Intensity: form.Intensity,
		Notes:     form.Notes,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.Histories.Insert(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) ownHistory(ctx context.Context, patientID, id int64) (*History, error) {
	h, err := s.db.Histories.Get(ctx, id)
	if errors.Is(err, ErrNotFound) || (err == nil && h.PatientID != patientID) {
		return nil, apperr.New(apperr.ErrNotFound, "history entry %d not found", id)
	}
	return h, err
}

func (s *Service) UpdateHistory(ctx context.Context, patientID, id int64, form validate.HistoryForm) (*History, error) {
	if err := validate.Struct(form); err != nil {
		return nil, invalid(err)
	}
	h, err := s.ownHistory(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	h.Problem = strings.TrimSpace(form.Problem)
	h.Date = form.Date
	h.Intensity = form.Intensity
	h.Notes = form.Notes
	if err := s.db.Histories.Update(ctx, h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *Service) DeleteHistory(ctx context.Context, patientID, id int64) error {
	if _, err := s.ownHistory(ctx, patientID, id); err != nil {
		return err
	}
	return s.db.Histories.Delete(ctx, id)
}

// HistoryForDoctor returns the patient's history once the patient has
// approved the doctor. Without approval it files a request (at most one
// pending at a time) and answers forbidden.
func (s *Service) HistoryForDoctor(ctx context.Context, doctorID, patientID int64) ([]*History, error) {
	if _, err := s.dir.PatientName(ctx, patientID); err != nil {
		return nil, err
	}
	reqs, err := s.db.HistoryAccess.Select(ctx, func(a *HistoryAccess) bool {
		return a.DoctorID == doctorID && a.PatientID == patientID
	})
	if err != nil {
		return nil, err
	}
	pending := false
	for _, a := range reqs {
		switch a.Status {
		case AccessApproved:
			return s.Histories(ctx, patientID)
		case AccessPending:
			pending = true
		}
	}
	if pending {
		return nil, apperr.New(apperr.ErrForbidden, "history access is awaiting patient approval")
	}

	doctorName, err := s.dir.DoctorName(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	a := &HistoryAccess{
		PatientID:   patientID,
		DoctorID:    doctorID,
		DoctorName:  doctorName,
		Status:      AccessPending,
		RequestedAt: s.now().UTC(),
	}
	if err := s.db.HistoryAccess.Insert(ctx, a); err != nil {
		return nil, err
	}
	return nil, apperr.New(apperr.ErrForbidden, "history access requested; waiting for patient approval")
}

func (s *Service) HistoryRequests(ctx context.Context, patientID int64) ([]*HistoryAccess, error) {
	return s.db.HistoryAccess.Select(ctx, func(a *HistoryAccess) bool { return a.PatientID == patientID })
}

func (s *Service) DecideHistoryAccess(ctx context.Context, patientID, id int64, approve bool) error {
	a, err := s.db.HistoryAccess.Get(ctx, id)
	if errors.Is(err, ErrNotFound) || (err == nil && a.PatientID != patientID) {
		return apperr.New(apperr.ErrNotFound, "history request %d not found", id)
	}
	if err != nil {
		return err
	}
	if a.Status != AccessPending {
		return apperr.New(apperr.ErrConflict, "history request %d is already %s", id, a.Status)
	}
	a.Status = AccessRejected
	if approve {
		a.Status = AccessApproved
	}
	return s.db.HistoryAccess.Update(ctx, a)
}

// ---------------------------------------------------------------------------
// Emergencies
// ---------------------------------------------------------------------------

func (s *Service) RaiseEmergency(ctx context.Context, patientID int64, form validate.EmergencyForm) (*Emergency, error) {
	if err := validate.Struct(form); err != nil {
		return nil, invalid(err)
	}
	name, err := s.dir.PatientName(ctx, patientID)
	if err != nil {
		return nil, err
	}
	e := &Emergency{
		PatientID:   patientID,
		PatientName: name,
		Problem:     strings.TrimSpace(form.Problem),
		Intensity:   form.Intensity,
		Message:     strings.TrimSpace(form.Message),
		Location:    strings.TrimSpace(form.Location),
		Status:      EmergencyOpen,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.db.Emergencies.Insert(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("emergency_id", e.ID).Str("intensity", e.Intensity).Msg("emergency raised")
	return e, nil
}

func (s *Service) PatientEmergencies(ctx context.Context, patientID int64) ([]*Emergency, error) {
	return s.db.Emergencies.Select(ctx, func(e *Emergency) bool { return e.PatientID == patientID })
}

// OpenEmergencies lists emergencies no doctor has accepted yet.
func (s *Service) OpenEmergencies(ctx context.Context) ([]*Emergency, error) {
	return s.db.Emergencies.Select(ctx, func(e *Emergency) bool { return e.Status == EmergencyOpen })
}

func (s *Service) AcceptedEmergencies(ctx context.Context, doctorID int64) ([]*Emergency, error) {
	return s.db.Emergencies.Select(ctx, func(e *Emergency) bool {
		return e.Status == EmergencyAccepted && e.DoctorID == doctorID
	})
}

func (s *Service) AcceptEmergency(ctx context.Context, doctorID, id int64) (*Emergency, error) {
	s.accept.Lock()
	defer s.accept.Unlock()

	e, err := s.db.Emergencies.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.New(apperr.ErrNotFound, "emergency %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	if e.Status != EmergencyOpen {
		return nil, apperr.New(apperr.ErrConflict, "emergency %d was already accepted", id)
	}
	name, err := s.dir.DoctorName(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	e.Status = EmergencyAccepted
	e.DoctorID = doctorID
	e.DoctorName = name
	e.AcceptedAt = &now
	if err := s.db.Emergencies.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}
