package service

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"order-workflow-service/internal/dto"
	"order-workflow-service/internal/model"
	"order-workflow-service/internal/notify"
)

type EpisodeRepository interface {
	Save(ctx context.Context, e *model.Episode) error
	Update(ctx context.Context, e *model.Episode) error
	FindByID(ctx context.Context, episodeID string) (*model.Episode, error)
	FindAll(ctx context.Context) ([]*model.Episode, error)
	FindByStatus(ctx context.Context, status model.EpisodeStatus) ([]*model.Episode, error)
}

// TxRunner scopes a function to one storage transaction. Everything written
// through repositories inside fn commits or rolls back as a unit.
type TxRunner interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// DocumentStore persists raw file bytes under an episode-scoped prefix and
// returns the stored path. Blob deletion is out of scope here; the episode
// only edits its descriptor list.
type DocumentStore interface {
	Put(ctx context.Context, episodeID, filename string, data []byte) (string, error)
}

// Order statuses written onto child orders by each episode-level cascade.
var cascadeOrderStatus = map[model.EpisodeStatus]model.OrderStatus{
	model.EpisodeIVRVerified:   model.OrderIVRConfirmed,
	model.EpisodeSentToMfr:     model.OrderSubmittedToMfr,
	model.EpisodeTrackingAdded: model.OrderShipped,
	model.EpisodeCompleted:     model.OrderDelivered,
}

// EpisodeStatusService governs the patient+manufacturer IVR episode
// lifecycle: ready_for_review -> ivr_verified -> sent_to_manufacturer ->
// tracking_added -> completed. Episode transitions cascade to every child
// order inside one transaction.
type EpisodeStatusService struct {
	episodes EpisodeRepository
	orders   OrderRepository
	tx       TxRunner
	notifier notify.Notifier
	store    DocumentStore
}

func NewEpisodeStatusService(episodes EpisodeRepository, orders OrderRepository, tx TxRunner, n notify.Notifier, store DocumentStore) *EpisodeStatusService {
	return &EpisodeStatusService{
		episodes: episodes,
		orders:   orders,
		tx:       tx,
		notifier: n,
		store:    store,
	}
}

// CreateEpisode opens a new verification episode at ready_for_review and
// attaches the given orders to it.
func (s *EpisodeStatusService) CreateEpisode(ctx context.Context, req dto.CreateEpisodeRequest, actorID string) (*model.Episode, error) {
	now := time.Now().UTC()
	e := &model.Episode{
		EpisodeID:      uuid.NewString(),
		PatientID:      req.PatientID,
		ManufacturerID: req.ManufacturerID,
		Status:         model.EpisodeReadyForReview,
		IVRStatus:      model.IVRPending,
		Metadata: model.EpisodeMetadata{
			PatientName:      req.Metadata.PatientName,
			PatientDOB:       req.Metadata.PatientDOB,
			InsuranceCarrier: req.Metadata.InsuranceCarrier,
			PolicyNumber:     req.Metadata.PolicyNumber,
			ProviderName:     req.Metadata.ProviderName,
			ProviderNPI:      req.Metadata.ProviderNPI,
			FacilityName:     req.Metadata.FacilityName,
			ClinicalSummary:  req.Metadata.ClinicalSummary,
		},
		Documents: []model.Document{},
		History: []model.AuditEntry{
			{
				Seq:         1,
				Action:      "episode_created",
				ActorID:     actorID,
				Description: "Episode opened for IVR verification",
				Timestamp:   now,
			},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.episodes.Save(ctx, e); err != nil {
			return err
		}
		for _, orderID := range req.OrderIDs {
			o, err := s.orders.FindByOrderID(ctx, orderID)
			if err != nil {
				return err
			}
			o.EpisodeID = e.EpisodeID
			o.UpdatedAt = now
			if err := s.orders.Update(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Getters
func (s *EpisodeStatusService) GetByID(ctx context.Context, episodeID string) (*model.Episode, error) {
	return s.episodes.FindByID(ctx, episodeID)
}

func (s *EpisodeStatusService) GetAll(ctx context.Context) ([]*model.Episode, error) {
	return s.episodes.FindAll(ctx)
}

func (s *EpisodeStatusService) GetByStatus(ctx context.Context, status model.EpisodeStatus) ([]*model.Episode, error) {
	return s.episodes.FindByStatus(ctx, status)
}

func (s *EpisodeStatusService) AuditTrail(ctx context.Context, episodeID string) ([]model.AuditEntry, error) {
	e, err := s.episodes.FindByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	return model.AuditTrail(e.History), nil
}

// MarkProviderCompleted records that the provider finished the IVR form.
// This is the precondition Review checks before verifying the episode.
func (s *EpisodeStatusService) MarkProviderCompleted(ctx context.Context, episodeID, ivrSubmissionID, actorID string) (*model.Episode, error) {
	e, err := s.episodes.FindByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EpisodeReadyForReview {
		return nil, fmt.Errorf("%w: episode is %s", ErrInvalidTransition, e.Status)
	}
	if ivrSubmissionID == "" {
		return nil, fmt.Errorf("%w: missing IVR submission id", ErrNotReadyForReview)
	}

	e.IVRStatus = model.IVRProviderCompleted
	e.IVRSubmissionID = ivrSubmissionID
	s.appendAudit(e, "ivr_provider_completed", actorID, "Provider completed IVR form "+ivrSubmissionID)

	if err := s.episodes.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Review verifies a provider-completed IVR. The episode moves to
// ivr_verified, the IVR sub-status to admin_reviewed, and every child order
// to ivr_confirmed, atomically.
func (s *EpisodeStatusService) Review(ctx context.Context, episodeID, actorID string) (*model.Episode, error) {
	e, err := s.episodes.FindByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EpisodeReadyForReview || e.IVRStatus != model.IVRProviderCompleted || e.IVRSubmissionID == "" {
		return nil, fmt.Errorf("%w: status=%s ivr_status=%s", ErrNotReadyForReview, e.Status, e.IVRStatus)
	}

	now := time.Now().UTC()
	e.Status = model.EpisodeIVRVerified
	e.IVRStatus = model.IVRAdminReviewed
	e.ReviewedAt = &now
	s.appendAudit(e, "ivr_reviewed", actorID, "Admin reviewed IVR submission "+e.IVRSubmissionID)

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.episodes.Update(ctx, e); err != nil {
			return err
		}
		return s.cascade(ctx, e, actorID, nil)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// SendToManufacturer submits the verified episode to the manufacturer. The
// episode update, the order cascade, the audit entry and the notification
// form one atomic unit: a failed dispatch rolls everything back, because
// the notification is the point of this transition.
func (s *EpisodeStatusService) SendToManufacturer(ctx context.Context, episodeID string, recipients []string, notes, actorID string) (*model.Episode, error) {
	e, err := s.episodes.FindByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.EpisodeIVRVerified || e.IVRStatus != model.IVRAdminReviewed {
		return nil, fmt.Errorf("%w: episode is %s", ErrInvalidTransition, e.Status)
	}
	if len(recipients) == 0 {
		return nil, ErrInvalidRecipients
	}
	for _, r := range recipients {
		if _, err := mail.ParseAddress(r); err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRecipients, r)
		}
	}

	now := time.Now().UTC()
	e.Status = model.EpisodeSentToMfr
	e.Submission = &model.ManufacturerSubmission{
		Recipients: recipients,
		Notes:      notes,
		SentBy:     actorID,
		SentAt:     now,
	}
	s.appendAudit(e, "sent_to_manufacturer", actorID, fmt.Sprintf("IVR packet sent to %d recipient(s)", len(recipients)))

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.episodes.Update(ctx, e); err != nil {
			return err
		}
		if err := s.cascade(ctx, e, actorID, nil); err != nil {
			return err
		}
		_, err := s.notifier.Notify(ctx, recipients, notify.TemplateManufacturerSubmission, map[string]string{
			"episodeId":      e.EpisodeID,
			"patientId":      e.PatientID,
			"manufacturerId": e.ManufacturerID,
			"notes":          notes,
		})
		if err != nil {
			return fmt.Errorf("%w: notification dispatch: %v", ErrDependencyFailure, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("episode_id", e.EpisodeID).Int("recipients", len(recipients)).Msg("episode sent to manufacturer")
	return e, nil
}

// AddTracking records shipment tracking on the episode and marks every
// child order shipped.
func (s *EpisodeStatusService) AddTracking(ctx context.Context, episodeID, carrier, trackingNumber string, estimatedDelivery *time.Time, actorID string) (*model.Episode, error) {
	e, err := s.episodes.FindByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if carrier == "" || trackingNumber == "" {
		return nil, ErrMissingTracking
	}
	if e.Status != model.EpisodeSentToMfr {
		return nil, fmt.Errorf("%w: episode is %s", ErrInvalidTransition, e.Status)
	}

	now := time.Now().UTC()
	e.Status = model.EpisodeTrackingAdded
	e.Tracking = &model.EpisodeTracking{
		Carrier:           carrier,
		TrackingNumber:    trackingNumber,
		EstimatedDelivery: estimatedDelivery,
		AddedBy:           actorID,
		AddedAt:           now,
	}
	s.appendAudit(e, "tracking_added", actorID, carrier+" "+trackingNumber)

	tracking := e.Tracking
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.episodes.Update(ctx, e); err != nil {
			return err
		}
		return s.cascade(ctx, e, actorID, func(o *model.Order) {
			o.Carrier = tracking.Carrier
			o.TrackingNumber = tracking.TrackingNumber
		})
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// MarkCompleted closes the episode. No precondition beyond existence.
func (s *EpisodeStatusService) MarkCompleted(ctx context.Context, episodeID, actorID string) (*model.Episode, error) {
	e, err := s.episodes.FindByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	e.Status = model.EpisodeCompleted
	if e.CompletedAt == nil {
		e.CompletedAt = &now
	}
	s.appendAudit(e, "completed", actorID, "Episode completed")

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.episodes.Update(ctx, e); err != nil {
			return err
		}
		return s.cascade(ctx, e, actorID, nil)
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UploadDocumentInput carries one uploaded file plus its classification.
type UploadDocumentInput struct {
	Name     string
	MimeType string
	Type     model.DocumentType
	Content  []byte
}

// UploadDocument stores the blob and appends a descriptor to the episode's
// document list. It never changes the episode status.
func (s *EpisodeStatusService) UploadDocument(ctx context.Context, episodeID string, in UploadDocumentInput, actorID string) (*model.Document, error) {
	e, err := s.episodes.FindByID(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if !model.IsValidDocumentType(in.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDocument, in.Type)
	}

	path, err := s.store.Put(ctx, e.EpisodeID, in.Name, in.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: document storage: %v", ErrDependencyFailure, err)
	}

	doc := model.Document{
		DocumentID:  uuid.NewString(),
		Name:        in.Name,
		StoragePath: path,
		Size:        int64(len(in.Content)),
		MimeType:    in.MimeType,
		Type:        in.Type,
		UploadedBy:  actorID,
		UploadedAt:  time.Now().UTC(),
	}
	e.Documents = append(e.Documents, doc)
	s.appendAudit(e, "document_uploaded", actorID, fmt.Sprintf("%s (%s)", in.Name, in.Type))

	if err := s.episodes.Update(ctx, e); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes the descriptor with the given id. A missing id is
// a silent no-op, matching the admin UI's fire-and-forget delete; the
// underlying blob is left for storage housekeeping.
func (s *EpisodeStatusService) DeleteDocument(ctx context.Context, episodeID, documentID, actorID string) error {
	e, err := s.episodes.FindByID(ctx, episodeID)
	if err != nil {
		return err
	}

	idx := -1
	for i, d := range e.Documents {
		if d.DocumentID == documentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}

	removed := e.Documents[idx]
	e.Documents = append(e.Documents[:idx], e.Documents[idx+1:]...)
	s.appendAudit(e, "document_deleted", actorID, removed.Name)

	return s.episodes.Update(ctx, e)
}

// cascade writes the episode's mapped order status onto every child order,
// appending a per-order audit entry. Must run inside the caller's
// transaction. extra, when set, mutates each order before the status write.
func (s *EpisodeStatusService) cascade(ctx context.Context, e *model.Episode, actorID string, extra func(*model.Order)) error {
	target, ok := cascadeOrderStatus[e.Status]
	if !ok {
		return nil
	}

	children, err := s.orders.FindByEpisodeID(ctx, e.EpisodeID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	for _, o := range children {
		if extra != nil {
			extra(o)
		}
		o.Status = target
		if ts := o.StatusTimestamp(target); ts != nil && *ts == nil {
			t := now
			*ts = &t
		}
		o.History = append(o.History, model.NewAuditEntry(o.History, string(target), actorID, "Cascaded from episode "+e.EpisodeID))
		o.UpdatedAt = now
		if err := s.orders.Update(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

func (s *EpisodeStatusService) appendAudit(e *model.Episode, action, actorID, description string) {
	e.History = append(e.History, model.NewAuditEntry(e.History, action, actorID, description))
	e.UpdatedAt = time.Now().UTC()
}
