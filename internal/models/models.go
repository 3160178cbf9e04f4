package models

// Event records mirror the Avro schemas consumed by the downstream analytics
// pipeline. Field names and enum symbols must stay wire-compatible.

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type VehicleType string

const (
	VehicleEconomy  VehicleType = "ECONOMY"
	VehicleStandard VehicleType = "STANDARD"
	VehicleLuxury   VehicleType = "LUXURY"
	VehiclePool     VehicleType = "POOL"
	VehicleSUV      VehicleType = "SUV"
	VehicleElectric VehicleType = "ELECTRIC"
)

type MusicPreference string

const (
	MusicNoPreference MusicPreference = "NO_PREFERENCE"
	MusicPop          MusicPreference = "POP"
	MusicRock         MusicPreference = "ROCK"
	MusicClassical    MusicPreference = "CLASSICAL"
	MusicJazz         MusicPreference = "JAZZ"
	MusicHipHop       MusicPreference = "HIP_HOP"
)

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "CASH"
	PaymentCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentDebitCard  PaymentMethod = "DEBIT_CARD"
	PaymentPayPal     PaymentMethod = "PAYPAL"
	PaymentApplePay   PaymentMethod = "APPLE_PAY"
	PaymentGooglePay  PaymentMethod = "GOOGLE_PAY"
)

type SenderType string

const (
	SenderDriver    SenderType = "DRIVER"
	SenderPassenger SenderType = "PASSENGER"
	SenderSystem    SenderType = "SYSTEM"
)

// RideStatus values are ordered; transitions only ever move forward.
type RideStatus string

const (
	StatusRequested  RideStatus = "REQUESTED"
	StatusAccepted   RideStatus = "ACCEPTED"
	StatusInProgress RideStatus = "IN_PROGRESS"
	StatusCompleted  RideStatus = "COMPLETED"
	StatusCancelled  RideStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are permitted.
func (s RideStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type DriverStatus string

const (
	DriverAvailable   DriverStatus = "AVAILABLE"
	DriverUnavailable DriverStatus = "UNAVAILABLE"
	DriverOnRide      DriverStatus = "ON_RIDE"
	DriverOffline     DriverStatus = "OFFLINE"
)

type PassengerPreferences struct {
	Music       MusicPreference `json:"music"`
	Temperature int             `json:"temperature"`
	QuietRide   bool            `json:"quiet_ride"`
}

type PaymentInfo struct {
	PaymentMethod     PaymentMethod `json:"payment_method"`
	CouponCodes       []string      `json:"coupon_codes"`
	LoyaltyPointsUsed *int          `json:"loyalty_points_used"`
}

type TextMessage struct {
	MessageID string     `json:"message_id"`
	Sender    SenderType `json:"sender"`
	Content   string     `json:"content"`
	SentAt    int64      `json:"sent_at"`
}

// PassengerRequest is the full ride-lifecycle record. The orchestrator
// creates it, its ride session mutates it, and it freezes once terminal.
// Timestamps are epoch milliseconds.
type PassengerRequest struct {
	RequestID            string               `json:"request_id"`
	PassengerID          string               `json:"passenger_id"`
	Timestamp            int64                `json:"timestamp"`
	PickupLocation       Location             `json:"pickup_location"`
	DropoffLocation      Location             `json:"dropoff_location"`
	VehicleType          VehicleType          `json:"vehicle_type"`
	PassengerPreferences PassengerPreferences `json:"passenger_preferences"`
	PaymentInfo          PaymentInfo          `json:"payment_info"`
	EstimatedFare        float64              `json:"estimated_fare"`
	TextMessages         []TextMessage        `json:"text_messages"`
	DriverRating         *float64             `json:"driver_rating"`
	Status               RideStatus           `json:"status"`
	DriverID             *string              `json:"driver_id"`
	RequestTimestamp     int64                `json:"request_timestamp"`
	AcceptedTimestamp    int64                `json:"accepted_timestamp"`
	RideDuration         *float64             `json:"ride_duration"`
}

// Clone returns a deep copy so published records cannot alias session state.
func (r *PassengerRequest) Clone() *PassengerRequest {
	cp := *r
	if r.TextMessages != nil {
		cp.TextMessages = make([]TextMessage, len(r.TextMessages))
		copy(cp.TextMessages, r.TextMessages)
	}
	if r.PaymentInfo.CouponCodes != nil {
		cp.PaymentInfo.CouponCodes = make([]string, len(r.PaymentInfo.CouponCodes))
		copy(cp.PaymentInfo.CouponCodes, r.PaymentInfo.CouponCodes)
	}
	if r.PaymentInfo.LoyaltyPointsUsed != nil {
		v := *r.PaymentInfo.LoyaltyPointsUsed
		cp.PaymentInfo.LoyaltyPointsUsed = &v
	}
	if r.DriverRating != nil {
		v := *r.DriverRating
		cp.DriverRating = &v
	}
	if r.DriverID != nil {
		v := *r.DriverID
		cp.DriverID = &v
	}
	if r.RideDuration != nil {
		v := *r.RideDuration
		cp.RideDuration = &v
	}
	return &cp
}

type DriverAvailabilityUpdate struct {
	DriverID  string       `json:"driver_id"`
	Timestamp int64        `json:"timestamp"`
	Latitude  float64      `json:"latitude"`
	Longitude float64      `json:"longitude"`
	Status    DriverStatus `json:"status"`
}
