package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TopUpRequest is the validated payload of a top-up command.
type TopUpRequest struct {
	UID    string `json:"uid"`
	Amount int64  `json:"amount"`
}

// RawTopUp is a top-up request body before validation. Amount may arrive as a
// JSON number or a string.
type RawTopUp struct {
	UID    json.RawMessage `json:"uid"`
	Amount json.RawMessage `json:"amount"`
}

// OutboundCommand is a top-up bound for the broker.
type OutboundCommand struct {
	Topic   Topic
	Payload TopUpRequest
}

// Encode serializes the command payload as sent on the wire.
func (c OutboundCommand) Encode() ([]byte, error) {
	data, err := json.Marshal(c.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal top-up payload: %w", err)
	}
	return data, nil
}

// ParseTopUp validates a raw request. The uid is checked before the amount and
// the first failure is returned.
//
// Amount parsing keeps integer-prefix semantics: fractional values are
// truncated toward zero, so "20.9" and 20.9 both become 20.
func ParseTopUp(raw RawTopUp) (TopUpRequest, error) {
	uid, err := parseUID(raw.UID)
	if err != nil {
		return TopUpRequest{}, err
	}

	amount, err := parseAmount(raw.Amount)
	if err != nil {
		return TopUpRequest{}, err
	}

	return TopUpRequest{UID: uid, Amount: amount}, nil
}

func parseUID(raw json.RawMessage) (string, error) {
	if isAbsent(raw) {
		return "", &ValidationError{Field: "uid", Reason: "missing"}
	}

	var uid string
	if err := json.Unmarshal(raw, &uid); err != nil {
		return "", &ValidationError{Field: "uid", Reason: "must be a string"}
	}
	if uid == "" {
		return "", &ValidationError{Field: "uid", Reason: "empty"}
	}
	return uid, nil
}

func parseAmount(raw json.RawMessage) (int64, error) {
	if isAbsent(raw) {
		return 0, &ValidationError{Field: "amount", Reason: "missing"}
	}

	trimmed := bytes.TrimSpace(raw)
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return 0, &ValidationError{Field: "amount", Reason: "malformed string"}
		}
		return parseIntPrefix(s)
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return parseNumber(string(trimmed))
	default:
		return 0, &ValidationError{Field: "amount", Reason: "must be a number or numeric string"}
	}
}

func parseNumber(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ValidationError{Field: "amount", Reason: "not a number"}
	}

	f = math.Trunc(f)
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, &ValidationError{Field: "amount", Reason: "out of range"}
	}
	return int64(f), nil
}

// parseIntPrefix reads an optionally signed run of decimal digits after leading
// whitespace and ignores whatever follows it.
func parseIntPrefix(s string) (int64, error) {
	s = strings.TrimLeft(s, " \t\n\r\v\f")

	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return 0, &ValidationError{Field: "amount", Reason: "not an integer"}
	}

	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Reason: "out of range"}
	}
	return n, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
