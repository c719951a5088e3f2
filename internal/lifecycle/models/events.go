package models

// Event names published on the notification channel. Websocket clients
// subscribe to these exact names.
const (
	EventUserRegistered  = "userRegistered"
	EventNewRequest      = "newRequest"
	EventUserVerified    = "userVerified"
	EventRequestApproved = "requestApproved"
	EventRequestDenied   = "requestDenied"
)

// UserVerified is the payload of EventUserVerified.
type UserVerified struct {
	UserID string     `json:"userId"`
	Status UserStatus `json:"status"`
}

// RequestApproved is the payload of EventRequestApproved. DonorIDs lists the
// verified donors matching the request so subscribers need no follow-up query.
type RequestApproved struct {
	RequestID       string   `json:"requestId"`
	PinCode         string   `json:"pinCode"`
	BloodTypeNeeded string   `json:"bloodTypeNeeded"`
	DonorIDs        []string `json:"donorIds"`
}

// RequestDenied is the payload of EventRequestDenied.
type RequestDenied struct {
	RequestID string `json:"requestId"`
}

// Snapshot is the full state returned by a global sync.
type Snapshot struct {
	Users    []*User    `json:"users"`
	Requests []*Request `json:"requests"`
}
