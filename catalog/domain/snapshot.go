package domain

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Envelope is the portable snapshot format.
type Envelope struct {
	Database    string                `json:"database"`
	ExportedAt  time.Time             `json:"exportedAt"`
	Collections map[string][]Document `json:"collections"`
	Meta        *Meta                 `json:"meta,omitempty"`
}

type Meta struct {
	Assets    bool           `json:"assets"`
	Counts    map[string]int `json:"counts"`
	Generator string         `json:"generator,omitempty"`
}

// DecodeEnvelope reads an envelope, keeping document numbers as json.Number.
func DecodeEnvelope(r io.Reader) (*Envelope, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var env Envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("malformed snapshot envelope: %w", err)
	}
	if env.Collections == nil {
		return nil, fmt.Errorf("malformed snapshot envelope: missing collections")
	}
	return &env, nil
}
