package normalizer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"payment-relay/internal/domain"
)

type envelope struct {
	Type     string            `json:"type"`
	Data     json.RawMessage   `json:"data"`
	ObjectID domain.FlexString `json:"objectId"`
}

// DecodeTransaction reads a gateway transaction that is either wrapped in a
// "data" field or sent flat. A missing id falls back to the top-level
// objectId, and the status is lower-cased.
func DecodeTransaction(body []byte) (domain.Transaction, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to decode gateway payload: %w", err)
	}

	inner := body
	if d := bytes.TrimSpace(env.Data); len(d) > 0 && d[0] == '{' {
		inner = d
	}

	var tx domain.Transaction
	if err := json.Unmarshal(inner, &tx); err != nil {
		return domain.Transaction{}, fmt.Errorf("failed to decode gateway transaction: %w", err)
	}
	if strings.TrimSpace(string(tx.ID)) == "" {
		tx.ID = env.ObjectID
	}
	tx.ID = domain.FlexString(strings.TrimSpace(string(tx.ID)))
	tx.Status = strings.ToLower(strings.TrimSpace(tx.Status))
	return tx, nil
}
