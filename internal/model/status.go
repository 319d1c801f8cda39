// status.go
package model

// OrderStatus is the per-order fulfillment state.
type OrderStatus string

const (
	OrderPendingIVR     OrderStatus = "pending_ivr"
	OrderIVRSent        OrderStatus = "ivr_sent"
	OrderIVRConfirmed   OrderStatus = "ivr_confirmed"
	OrderApproved       OrderStatus = "approved"
	OrderSubmittedToMfr OrderStatus = "submitted_to_manufacturer"
	OrderShipped        OrderStatus = "shipped"
	OrderDelivered      OrderStatus = "delivered"
	OrderSentBack       OrderStatus = "sent_back"
	OrderDenied         OrderStatus = "denied"
	OrderCancelled      OrderStatus = "cancelled"
)

// EpisodeStatus is the IVR episode lifecycle state. An episode aggregates
// the orders of one patient+manufacturer pair and gates manufacturer
// submission for all of them.
type EpisodeStatus string

const (
	EpisodeReadyForReview EpisodeStatus = "ready_for_review"
	EpisodeIVRVerified    EpisodeStatus = "ivr_verified"
	EpisodeSentToMfr      EpisodeStatus = "sent_to_manufacturer"
	EpisodeTrackingAdded  EpisodeStatus = "tracking_added"
	EpisodeCompleted      EpisodeStatus = "completed"
)

// IVRStatus is the episode's verification sub-status. Review requires
// provider_completed; admin review flips it to admin_reviewed.
type IVRStatus string

const (
	IVRPending           IVRStatus = "pending"
	IVRProviderCompleted IVRStatus = "provider_completed"
	IVRAdminReviewed     IVRStatus = "admin_reviewed"
)

// DocumentType classifies an episode document.
type DocumentType string

const (
	DocClinicalNotes DocumentType = "clinical_notes"
	DocInsuranceCard DocumentType = "insurance_card"
	DocWoundPhoto    DocumentType = "wound_photo"
	DocFaceSheet     DocumentType = "face_sheet"
	DocOther         DocumentType = "other"
)

var validOrderStatuses = map[OrderStatus]bool{
	OrderPendingIVR:     true,
	OrderIVRSent:        true,
	OrderIVRConfirmed:   true,
	OrderApproved:       true,
	OrderSubmittedToMfr: true,
	OrderShipped:        true,
	OrderDelivered:      true,
	OrderSentBack:       true,
	OrderDenied:         true,
	OrderCancelled:      true,
}

var validDocumentTypes = map[DocumentType]bool{
	DocClinicalNotes: true,
	DocInsuranceCard: true,
	DocWoundPhoto:    true,
	DocFaceSheet:     true,
	DocOther:         true,
}

func IsValidOrderStatus(s OrderStatus) bool {
	return validOrderStatuses[s]
}

func IsValidDocumentType(t DocumentType) bool {
	return validDocumentTypes[t]
}
