// dto.go
package dto

import "time"

// InitOrderRequest seeds a new order at pending_ivr. Primary path is the
// rabbit consumer; the API route exists for provider portals without a broker.
type InitOrderRequest struct {
	OrderID        string        `json:"orderId" binding:"required"`
	OrderNumber    string        `json:"orderNumber"`
	ProviderID     string        `json:"providerId" binding:"required"`
	FacilityID     string        `json:"facilityId"`
	ManufacturerID string        `json:"manufacturerId"`
	EpisodeID      string        `json:"episodeId"`
	LineItems      []LineItemDTO `json:"lineItems"`
}

type LineItemDTO struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

// UpdateOrderStatusRequest drives a single order transition. Reason is
// mandatory (min 10 chars, enforced in the service) for denied, sent_back
// and cancelled targets. Carrier/TrackingNumber only apply to
// submitted_to_manufacturer.
type UpdateOrderStatusRequest struct {
	Status           string   `json:"status" binding:"required"`
	Reason           string   `json:"reason"`
	Notes            string   `json:"notes"`
	Carrier          string   `json:"carrier"`
	TrackingNumber   string   `json:"trackingNumber"`
	Notify           bool     `json:"notify"`
	NotifyRecipients []string `json:"notifyRecipients" binding:"omitempty,dive,email"`
}

type CreateEpisodeRequest struct {
	PatientID      string             `json:"patientId" binding:"required"`
	ManufacturerID string             `json:"manufacturerId" binding:"required"`
	OrderIDs       []string           `json:"orderIds"`
	Metadata       EpisodeMetadataDTO `json:"metadata"`
}

type EpisodeMetadataDTO struct {
	PatientName      string `json:"patientName"`
	PatientDOB       string `json:"patientDob"`
	InsuranceCarrier string `json:"insuranceCarrier"`
	PolicyNumber     string `json:"policyNumber"`
	ProviderName     string `json:"providerName"`
	ProviderNPI      string `json:"providerNpi"`
	FacilityName     string `json:"facilityName"`
	ClinicalSummary  string `json:"clinicalSummary"`
}

type ProviderCompletedRequest struct {
	IVRSubmissionID string `json:"ivrSubmissionId" binding:"required"`
}

type SendToManufacturerRequest struct {
	Recipients []string `json:"recipients" binding:"required,min=1,dive,email"`
	Notes      string   `json:"notes"`
}

type AddTrackingRequest struct {
	Carrier           string     `json:"carrier" binding:"required"`
	TrackingNumber    string     `json:"trackingNumber" binding:"required"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
}
