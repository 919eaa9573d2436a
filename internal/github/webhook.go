package github

import (
	"errors"
	"net/http"

	gh "github.com/google/go-github/v66/github"
)

var ErrBadSignature = errors.New("webhook signature mismatch")

// Delivery describes one inbound webhook call.
type Delivery struct {
	Event string
	ID    string
}

func DeliveryOf(r *http.Request) Delivery {
	return Delivery{Event: gh.WebHookType(r), ID: gh.DeliveryID(r)}
}

// VerifySignature checks X-Hub-Signature-256 against secret. An empty secret
// accepts everything.
func VerifySignature(payload []byte, signature, secret string) error {
	if secret == "" {
		return nil
	}
	if signature == "" {
		return ErrBadSignature
	}
	if err := gh.ValidateSignature(signature, payload, []byte(secret)); err != nil {
		return ErrBadSignature
	}
	return nil
}
