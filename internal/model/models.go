// models.go
package model

import "time"

// Order is a single provider-submitted product request moving through the
// fulfillment workflow. When it belongs to an episode, the episode owns the
// cascaded status changes; the per-order fields (carrier, tracking number,
// rejection reason) stay owned by the order itself.
type Order struct {
	OrderID        string      `bson:"order_id" json:"orderId"`
	OrderNumber    string      `bson:"order_number" json:"orderNumber"`
	EpisodeID      string      `bson:"episode_id,omitempty" json:"episodeId,omitempty"`
	ProviderID     string      `bson:"provider_id" json:"providerId"`
	FacilityID     string      `bson:"facility_id" json:"facilityId"`
	ManufacturerID string      `bson:"manufacturer_id" json:"manufacturerId"`
	Status         OrderStatus `bson:"status" json:"status"`
	LineItems      []LineItem  `bson:"line_items" json:"lineItems"`

	Carrier         string        `bson:"carrier,omitempty" json:"carrier,omitempty"`
	TrackingNumber  string        `bson:"tracking_number,omitempty" json:"trackingNumber,omitempty"`
	RejectionReason string        `bson:"rejection_reason,omitempty" json:"rejectionReason,omitempty"`
	Shipping        *ShippingInfo `bson:"shipping,omitempty" json:"shipping,omitempty"`

	History []AuditEntry `bson:"history" json:"history"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`

	// Per-status timestamps, each set the first time the status is reached
	// and never overwritten.
	IVRSentAt      *time.Time `bson:"ivr_sent_at,omitempty" json:"ivrSentAt,omitempty"`
	IVRConfirmedAt *time.Time `bson:"ivr_confirmed_at,omitempty" json:"ivrConfirmedAt,omitempty"`
	ApprovedAt     *time.Time `bson:"approved_at,omitempty" json:"approvedAt,omitempty"`
	MfrSubmittedAt *time.Time `bson:"mfr_submitted_at,omitempty" json:"mfrSubmittedAt,omitempty"`
	ShippedAt      *time.Time `bson:"shipped_at,omitempty" json:"shippedAt,omitempty"`
	DeliveredAt    *time.Time `bson:"delivered_at,omitempty" json:"deliveredAt,omitempty"`
	SentBackAt     *time.Time `bson:"sent_back_at,omitempty" json:"sentBackAt,omitempty"`
	DeniedAt       *time.Time `bson:"denied_at,omitempty" json:"deniedAt,omitempty"`
	CancelledAt    *time.Time `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
}

// StatusTimestamp returns a pointer to the timestamp field backing the given
// status, or nil when the status has no dedicated timestamp (pending_ivr is
// covered by CreatedAt).
func (o *Order) StatusTimestamp(s OrderStatus) **time.Time {
	switch s {
	case OrderIVRSent:
		return &o.IVRSentAt
	case OrderIVRConfirmed:
		return &o.IVRConfirmedAt
	case OrderApproved:
		return &o.ApprovedAt
	case OrderSubmittedToMfr:
		return &o.MfrSubmittedAt
	case OrderShipped:
		return &o.ShippedAt
	case OrderDelivered:
		return &o.DeliveredAt
	case OrderSentBack:
		return &o.SentBackAt
	case OrderDenied:
		return &o.DeniedAt
	case OrderCancelled:
		return &o.CancelledAt
	}
	return nil
}

type LineItem struct {
	ProductID string  `bson:"product_id" json:"productId"`
	Name      string  `bson:"name" json:"name"`
	Quantity  int     `bson:"quantity" json:"quantity"`
	UnitPrice float64 `bson:"unit_price" json:"unitPrice"`
}

// ShippingInfo is the snapshot embedded into an order when it is submitted
// to the manufacturer with carrier and tracking number present.
type ShippingInfo struct {
	Carrier        string    `bson:"carrier" json:"carrier"`
	TrackingNumber string    `bson:"tracking_number" json:"trackingNumber"`
	SubmittedAt    time.Time `bson:"submitted_at" json:"submittedAt"`
	SubmittedBy    string    `bson:"submitted_by" json:"submittedBy"`
}

// Episode is the patient+manufacturer IVR verification lifecycle. It owns
// zero or more orders; episode-level transitions cascade to every child
// order atomically.
type Episode struct {
	EpisodeID      string        `bson:"episode_id" json:"episodeId"`
	PatientID      string        `bson:"patient_id" json:"patientId"`
	ManufacturerID string        `bson:"manufacturer_id" json:"manufacturerId"`
	Status         EpisodeStatus `bson:"status" json:"status"`

	IVRStatus       IVRStatus `bson:"ivr_status" json:"ivrStatus"`
	IVRSubmissionID string    `bson:"ivr_submission_id,omitempty" json:"ivrSubmissionId,omitempty"`

	Metadata EpisodeMetadata `bson:"metadata" json:"metadata"`

	Submission *ManufacturerSubmission `bson:"submission,omitempty" json:"submission,omitempty"`
	Tracking   *EpisodeTracking        `bson:"tracking,omitempty" json:"tracking,omitempty"`

	Documents []Document   `bson:"documents" json:"documents"`
	History   []AuditEntry `bson:"history" json:"history"`

	CreatedAt   time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updatedAt"`
	ReviewedAt  *time.Time `bson:"reviewed_at,omitempty" json:"reviewedAt,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`
}

// EpisodeMetadata is the patient/provider/facility snapshot captured when
// the provider submits the episode. Fields are fixed rather than an open
// key-value blob so readers never probe for optional keys.
type EpisodeMetadata struct {
	PatientName      string `bson:"patient_name,omitempty" json:"patientName,omitempty"`
	PatientDOB       string `bson:"patient_dob,omitempty" json:"patientDob,omitempty"`
	InsuranceCarrier string `bson:"insurance_carrier,omitempty" json:"insuranceCarrier,omitempty"`
	PolicyNumber     string `bson:"policy_number,omitempty" json:"policyNumber,omitempty"`
	ProviderName     string `bson:"provider_name,omitempty" json:"providerName,omitempty"`
	ProviderNPI      string `bson:"provider_npi,omitempty" json:"providerNpi,omitempty"`
	FacilityName     string `bson:"facility_name,omitempty" json:"facilityName,omitempty"`
	ClinicalSummary  string `bson:"clinical_summary,omitempty" json:"clinicalSummary,omitempty"`
}

// ManufacturerSubmission records who the episode was sent to and by whom.
type ManufacturerSubmission struct {
	Recipients []string  `bson:"recipients" json:"recipients"`
	Notes      string    `bson:"notes,omitempty" json:"notes,omitempty"`
	SentBy     string    `bson:"sent_by" json:"sentBy"`
	SentAt     time.Time `bson:"sent_at" json:"sentAt"`
}

type EpisodeTracking struct {
	Carrier           string     `bson:"carrier" json:"carrier"`
	TrackingNumber    string     `bson:"tracking_number" json:"trackingNumber"`
	EstimatedDelivery *time.Time `bson:"estimated_delivery,omitempty" json:"estimatedDelivery,omitempty"`
	AddedBy           string     `bson:"added_by" json:"addedBy"`
	AddedAt           time.Time  `bson:"added_at" json:"addedAt"`
}

// Document is a descriptor for a file stored under the episode's prefix.
// The descriptor list is append-only except for explicit deletes by id.
type Document struct {
	DocumentID  string       `bson:"document_id" json:"documentId"`
	Name        string       `bson:"name" json:"name"`
	StoragePath string       `bson:"storage_path" json:"storagePath"`
	Size        int64        `bson:"size" json:"size"`
	MimeType    string       `bson:"mime_type" json:"mimeType"`
	Type        DocumentType `bson:"type" json:"type"`
	UploadedBy  string       `bson:"uploaded_by" json:"uploadedBy"`
	UploadedAt  time.Time    `bson:"uploaded_at" json:"uploadedAt"`
}

// AuditEntry is one immutable record in an order's or episode's history.
// Seq is monotonic within the parent; entries are never updated or removed.
type AuditEntry struct {
	Seq         int       `bson:"seq" json:"seq"`
	Action      string    `bson:"action" json:"action"`
	ActorID     string    `bson:"actor_id" json:"actorId"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Timestamp   time.Time `bson:"timestamp" json:"timestamp"`
}

// NewAuditEntry builds the next entry for a parent whose history currently
// holds len(history) entries.
func NewAuditEntry(history []AuditEntry, action, actorID, description string) AuditEntry {
	return AuditEntry{
		Seq:         len(history) + 1,
		Action:      action,
		ActorID:     actorID,
		Description: description,
		Timestamp:   time.Now().UTC(),
	}
}

// AuditTrail returns the history newest-first for display.
func AuditTrail(history []AuditEntry) []AuditEntry {
	out := make([]AuditEntry, len(history))
	for i, e := range history {
		out[len(history)-1-i] = e
	}
	return out
}
