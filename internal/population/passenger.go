package population

import (
	"fmt"
	"math/rand"

	"github.com/example/ridehail-sim/internal/models"
)

// Passenger carries the stable identity and the slowly drifting profile a
// request snapshot is cut from. Only the registry mutates a passenger, and
// only between requests.
type Passenger struct {
	ID    string
	Home  models.Location
	Work  models.Location
	Prefs models.PassengerPreferences
	Pay   models.PaymentInfo
}

var musicChoices = []models.MusicPreference{
	models.MusicNoPreference,
	models.MusicPop,
	models.MusicRock,
	models.MusicClassical,
	models.MusicJazz,
	models.MusicHipHop,
}

var paymentMethods = []models.PaymentMethod{
	models.PaymentCash,
	models.PaymentCreditCard,
	models.PaymentDebitCard,
	models.PaymentPayPal,
	models.PaymentApplePay,
	models.PaymentGooglePay,
}

func newPassengerProfile(rng *rand.Rand) (models.PassengerPreferences, models.PaymentInfo) {
	prefs := models.PassengerPreferences{
		Music:       musicChoices[rng.Intn(len(musicChoices))],
		Temperature: 18 + rng.Intn(9), // 18..26
		QuietRide:   rng.Intn(2) == 0,
	}
	pay := models.PaymentInfo{
		PaymentMethod: paymentMethods[rng.Intn(len(paymentMethods))],
		CouponCodes:   []string{},
	}
	if rng.Float64() < 0.15 {
		pay.CouponCodes = append(pay.CouponCodes, fmt.Sprintf("SAVE%d", 10+rng.Intn(41)))
	}
	if rng.Float64() < 0.10 {
		points := rng.Intn(101)
		pay.LoyaltyPointsUsed = &points
	}
	return prefs, pay
}

// drift nudges the profile between requests: an occasional quiet-ride flip
// and a one-degree temperature shift. Anchors and identity never move.
func (p *Passenger) drift(rng *rand.Rand) {
	if rng.Float64() < 0.10 {
		p.Prefs.QuietRide = !p.Prefs.QuietRide
	}
	if rng.Float64() < 0.20 {
		p.Prefs.Temperature += rng.Intn(3) - 1
		if p.Prefs.Temperature < 18 {
			p.Prefs.Temperature = 18
		}
		if p.Prefs.Temperature > 26 {
			p.Prefs.Temperature = 26
		}
	}
	if rng.Float64() < 0.05 {
		p.Prefs.Music = musicChoices[rng.Intn(len(musicChoices))]
	}
}
