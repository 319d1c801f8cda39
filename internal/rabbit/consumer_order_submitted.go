package rabbit

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"order-workflow-service/internal/dto"
	"order-workflow-service/internal/service"
)

// OrderSubmittedConsumer seeds a pending_ivr order for every provider
// submission event.
type OrderSubmittedConsumer struct {
	Service *service.OrderStatusService
}

func NewOrderSubmittedConsumer(s *service.OrderStatusService) *OrderSubmittedConsumer {
	return &OrderSubmittedConsumer{Service: s}
}

// OrderSubmittedMessage is the provider portal's envelope. Episode id is
// optional: submissions arriving before IVR grouping come in bare.
type OrderSubmittedMessage struct {
	CorrelationID string `json:"correlation_id"`
	Exchange      string `json:"exchange"`
	RoutingKey    string `json:"routing_key"`
	Message       struct {
		OrderID        string `json:"orderId"`
		OrderNumber    string `json:"orderNumber"`
		ProviderID     string `json:"providerId"`
		FacilityID     string `json:"facilityId"`
		ManufacturerID string `json:"manufacturerId"`
		EpisodeID      string `json:"episodeId"`
		Items          []struct {
			ProductID string  `json:"productId"`
			Name      string  `json:"name"`
			Quantity  int     `json:"quantity"`
			UnitPrice float64 `json:"unitPrice"`
		} `json:"items"`
	} `json:"message"`
}

func (c *OrderSubmittedConsumer) Handle(msg []byte) error {
	var event OrderSubmittedMessage
	if err := json.Unmarshal(msg, &event); err != nil {
		log.Error().Err(err).Msg("parsing order_submitted event failed")
		return err
	}

	req := dto.InitOrderRequest{
		OrderID:        event.Message.OrderID,
		OrderNumber:    event.Message.OrderNumber,
		ProviderID:     event.Message.ProviderID,
		FacilityID:     event.Message.FacilityID,
		ManufacturerID: event.Message.ManufacturerID,
		EpisodeID:      event.Message.EpisodeID,
	}
	for _, it := range event.Message.Items {
		req.LineItems = append(req.LineItems, dto.LineItemDTO{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
		})
	}

	_, err := c.Service.InitOrder(context.Background(), req)
	if err != nil {
		if err == service.ErrOrderAlreadyExists {
			// Redelivery of an already-seeded order.
			log.Debug().Str("order_id", req.OrderID).Msg("order already initialized, skipping")
			return nil
		}
		log.Error().Err(err).Str("order_id", req.OrderID).Msg("creating initial order state failed")
		return err
	}

	log.Info().Str("order_id", req.OrderID).Msg("initial order state created")
	return nil
}
