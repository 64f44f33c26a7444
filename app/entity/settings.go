package entity

import "time"

// GatewaySettings is the single-row configuration of the hosted payment
// gateway. The API context blobs are opaque session state owned by the bunq
// client; they are stored verbatim and regenerated whenever the matching
// API key is saved.
type GatewaySettings struct {
	ID uint64

	Enabled     bool
	Title       string
	Description string

	Testmode   bool
	APIKey     string
	TestAPIKey string

	MonetaryAccountID *int64

	APIContext     *string
	TestAPIContext *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *GatewaySettings) ActiveAPIKey() string {
	if s.Testmode {
		return s.TestAPIKey
	}
	return s.APIKey
}

func (s *GatewaySettings) ActiveAPIContext() string {
	var blob *string
	if s.Testmode {
		blob = s.TestAPIContext
	} else {
		blob = s.APIContext
	}
	if blob == nil {
		return ""
	}
	return *blob
}

func (s *GatewaySettings) SetActiveAPIContext(blob string) {
	if s.Testmode {
		s.TestAPIContext = &blob
		return
	}
	s.APIContext = &blob
}
