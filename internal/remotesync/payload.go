package remotesync

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Document is one stored document on the wire.
type Document struct {
	Value        json.RawMessage `json:"value" validate:"required"`
	LastModified int64           `json:"lastModified" validate:"min=0"`
}

// Payload is the batch exchanged with the sync endpoint. GET returns it and
// POST accepts it.
type Payload struct {
	Documents map[string]Document `json:"documents" validate:"required,dive,keys,required,endkeys"`
	PushedAt  int64               `json:"pushedAt,omitempty"`
}

var validate = validator.New()

var ErrEmptyPayload = errors.New("sync payload is empty")

// DecodePayload accepts either the Payload envelope or a bare object mapping
// paths to values, as served by endpoints that predate lastModified stamps.
// Bare values are returned with LastModified zero.
func DecodePayload(data []byte) (Payload, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return Payload{}, fmt.Errorf("decode sync payload: %w", err)
	}
	if top == nil {
		return Payload{}, ErrEmptyPayload
	}

	if rawDocs, ok := top["documents"]; ok && isObject(rawDocs) {
		var p Payload
		if err := json.Unmarshal(data, &p); err != nil {
			return Payload{}, fmt.Errorf("decode sync envelope: %w", err)
		}
		if err := ValidatePayload(p); err != nil {
			return Payload{}, err
		}
		return p, nil
	}

	p := Payload{Documents: make(map[string]Document, len(top))}
	for path, raw := range top {
		p.Documents[path] = Document{Value: raw}
	}
	if err := ValidatePayload(p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// ValidatePayload checks that every document has a path and a value.
func ValidatePayload(p Payload) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid sync payload: %w", err)
	}
	return nil
}

func isObject(raw json.RawMessage) bool {
	for _, c := range raw {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
