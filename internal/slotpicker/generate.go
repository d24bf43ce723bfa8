package slotpicker

import (
	"fmt"
	"time"

	"github.com/medvault/medvault/internal/domain/scheduling"
)

// Generate previews the slots a create-slots request for date between start
// and end would produce. Times use the HH:MM layout; a tail shorter than
// interval is dropped.
func Generate(date, start, end string, interval time.Duration) ([]scheduling.Slot, error) {
	from, err := time.Parse(scheduling.DateLayout+" "+scheduling.TimeLayout, date+" "+start)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}
	to, err := time.Parse(scheduling.DateLayout+" "+scheduling.TimeLayout, date+" "+end)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}
	starts, err := scheduling.TimeRange{Start: from, End: to}.Split(interval)
	if err != nil {
		return nil, err
	}
	slots := make([]scheduling.Slot, 0, len(starts))
	for _, t := range starts {
		slots = append(slots, scheduling.Slot{
			SlotDate: date,
			SlotTime: t.Format(scheduling.TimeLayout),
			Status:   scheduling.SlotActive,
		})
	}
	return slots, nil
}
