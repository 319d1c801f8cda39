// setup.go
package rabbit

import (
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"order-workflow-service/internal/service"
)

// SetupConsumers binds the service's queue to the provider portal's fanout
// exchange and starts consuming submissions.
func SetupConsumers(ch *amqp091.Channel, svc *service.OrderStatusService) {
	consumer := NewOrderSubmittedConsumer(svc)

	q, err := ch.QueueDeclare(
		"order_workflow_service_orders", // queue owned by this service
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Error().Err(err).Msg("declaring queue failed")
		return
	}

	err = ch.QueueBind(
		q.Name,
		"",                // fanout ignores the routing key
		"order_submitted", // provider portal exchange
		false,
		nil,
	)
	if err != nil {
		log.Error().Err(err).Msg("binding exchange failed")
		return
	}

	msgs, err := ch.Consume(
		q.Name,
		"",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		log.Error().Err(err).Msg("consuming queue failed")
		return
	}

	go func() {
		for m := range msgs {
			consumer.Handle(m.Body)
		}
	}()

	log.Info().Str("exchange", "order_submitted").Msg("subscribed to provider submissions")
}
