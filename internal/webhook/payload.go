package webhook

import (
	"bytes"
	"encoding/json"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// Payload is the body posted by the availability monitor.
type Payload struct {
	EventID     string `json:"event_id" validate:"required,max=200"`
	ReceivedAt  string `json:"received_at" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
	DirectLink  string `json:"direct_link" validate:"required,url"`
	ProductHint string `json:"product_hint" validate:"required"`
	Mode        string `json:"mode,omitempty"`
}

// Event is an accepted webhook, enriched with routing details.
type Event struct {
	Payload
	Source string
}

func newValidator() *validatorv10.Validate {
	return validatorv10.New()
}

// DecodePayload parses and validates a raw body.
func DecodePayload(v *validatorv10.Validate, body []byte) (Payload, error) {
	var p Payload
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&p); err != nil {
		return Payload{}, reject(ErrMalformedPayload, "invalid json: %v", err)
	}
	p.EventID = strings.TrimSpace(p.EventID)
	p.Mode = strings.TrimSpace(p.Mode)
	if err := v.Struct(p); err != nil {
		return Payload{}, reject(ErrMalformedPayload, "%s", describeValidation(err))
	}
	return p, nil
}

func describeValidation(err error) string {
	ve, ok := err.(validatorv10.ValidationErrors)
	if !ok {
		return err.Error()
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Field()+" failed "+fe.Tag())
	}
	return strings.Join(fields, "; ")
}
