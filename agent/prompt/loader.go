package prompt

import (
	_ "embed"
	"strings"

	contractx "github.com/noeguerin/bistro-concierge/agent/contract"
)

var (
	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/reservation.txt
	reservationRaw string

	//go:embed template/order.txt
	orderRaw string

	//go:embed template/general.txt
	generalRaw string
)

// Set holds the loaded system prompts.
type Set struct {
	Classifier  string
	Reservation string
	Order       string
	General     string
}

// Load returns the prompt set with trimmed content. Safe to call
// concurrently; the embed is compile-time.
func Load() Set {
	return Set{
		Classifier:  strings.TrimSpace(classifierRaw),
		Reservation: strings.TrimSpace(reservationRaw),
		Order:       strings.TrimSpace(orderRaw),
		General:     strings.TrimSpace(generalRaw),
	}
}

// For returns the handler prompt for an intent. Unknown intents get the
// general prompt.
func (s Set) For(intent contractx.Intent) string {
	switch intent {
	case contractx.IntentReservation:
		return s.Reservation
	case contractx.IntentOrder:
		return s.Order
	default:
		return s.General
	}
}
