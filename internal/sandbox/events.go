package sandbox

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/domain/scheduling"
	"github.com/medvault/medvault/internal/platform/auth"
	"github.com/medvault/medvault/internal/platform/websocket"
)

// appointmentEvents fans scheduling status changes out to the patient, the
// doctor and the admin topics.
type appointmentEvents struct {
	pub    websocket.Publisher
	logger zerolog.Logger
}

func (e appointmentEvents) AppointmentChanged(ctx context.Context, ev scheduling.StatusEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		e.logger.Error().Err(err).Int64("appointment_id", ev.AppointmentID).Msg("encode appointment event")
		return
	}
	topics := []string{
		websocket.Topic(auth.RolePatient, ev.PatientID),
		websocket.Topic(auth.RoleDoctor, ev.DoctorID),
		websocket.AdminTopic,
	}
	for _, topic := range topics {
		err := e.pub.Publish(ctx, websocket.Event{
			Type:  websocket.TypeAppointmentStatus,
			Topic: topic,
			Data:  data,
		})
		if err != nil {
			e.logger.Error().Err(err).Str("topic", topic).Msg("publish appointment event")
		}
	}
}
