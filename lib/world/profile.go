// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package world

import (
	"context"
	"encoding/json"
	"strconv"
)

// Profile is the player record from protagonist.data-collection. The
// server's record is loosely typed: missing string fields are "", and
// Profile and Blocked are nil when absent or not boolean-like.
type Profile struct {
	Email      string
	FirstName  string
	LastName   string
	HasProfile *bool
	Filiere    string
	Blocked    *bool
	Flags      []Flag
}

// Flag is one captured flag: the flag text, the user credited with it,
// and the server's capture date (kept as text).
type Flag struct {
	Name     string
	Username string
	Date     string
}

// DataCollection returns the player record of worldID. A result that is
// not a JSON object yields a nil Profile and no error: some worlds have
// no data collection yet. Malformed flag entries (anything but an array
// of at least three elements) are skipped.
func (c *Client) DataCollection(ctx context.Context, worldID string) (*Profile, error) {
	raw, err := c.invoker.Invoke(ctx, "protagonist.data-collection", worldParams{WorldID: worldID})
	if err != nil {
		return nil, err
	}
	return ParseProfile(raw), nil
}

// ParseProfile decodes a data-collection document. It returns nil when
// raw is not a JSON object.
func ParseProfile(raw json.RawMessage) *Profile {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil
	}
	profile := &Profile{
		Email:      text(fields["email"]),
		FirstName:  text(fields["first_name"]),
		LastName:   text(fields["last_name"]),
		HasProfile: boolean(fields["profile"]),
		Filiere:    text(fields["filiere"]),
		Blocked:    boolean(fields["blocked"]),
	}

	var entries []json.RawMessage
	if json.Unmarshal(fields["flags"], &entries) != nil {
		return profile
	}
	for _, entry := range entries {
		var parts []json.RawMessage
		if json.Unmarshal(entry, &parts) != nil || len(parts) < 3 {
			continue
		}
		flag := Flag{Name: text(parts[0]), Username: text(parts[1]), Date: text(parts[2])}
		if flag.Name == "" {
			continue
		}
		profile.Flags = append(profile.Flags, flag)
	}
	return profile
}

// text returns a JSON string's value, the literal text of any other
// scalar, or "" for null and missing values.
func text(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var value string
	if json.Unmarshal(raw, &value) == nil {
		return value
	}
	var number json.Number
	if json.Unmarshal(raw, &number) == nil {
		return number.String()
	}
	var flag bool
	if json.Unmarshal(raw, &flag) == nil {
		return strconv.FormatBool(flag)
	}
	return string(raw)
}

// boolean accepts JSON booleans and the numbers 0 and 1.
func boolean(raw json.RawMessage) *bool {
	if isNull(raw) {
		return nil
	}
	var value bool
	if json.Unmarshal(raw, &value) == nil {
		return &value
	}
	var number float64
	if json.Unmarshal(raw, &number) == nil && (number == 0 || number == 1) {
		value = number == 1
		return &value
	}
	return nil
}
