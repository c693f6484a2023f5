// Package account loads the accounts list and models each account's custom
// endpoint declaration as an explicit variant.
package account

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// EndpointsKind tags the shape of an account's endpoint declaration.
type EndpointsKind int

// Endpoint declaration shapes.
const (
	// EndpointsAbsent means the field was missing or null.
	EndpointsAbsent EndpointsKind = iota
	// EndpointsList means the field was a JSON array of strings.
	EndpointsList
	// EndpointsMalformed means the field was present with any other shape.
	EndpointsMalformed
)

func (k EndpointsKind) String() string {
	switch k {
	case EndpointsAbsent:
		return "absent"
	case EndpointsList:
		return "list"
	case EndpointsMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("EndpointsKind(%d)", int(k))
	}
}

// Endpoints is the decoded value of an account's hotSearchEndpoints field.
// The zero value is EndpointsAbsent.
type Endpoints struct {
	kind EndpointsKind
	list []string
	raw  json.RawMessage
}

// NewEndpoints returns a well-formed endpoint list.
func NewEndpoints(list ...string) Endpoints {
	return Endpoints{kind: EndpointsList, list: append([]string{}, list...)}
}

// Kind returns the declaration shape.
func (e Endpoints) Kind() EndpointsKind {
	return e.kind
}

// List returns a copy of the endpoints when Kind is EndpointsList.
func (e Endpoints) List() []string {
	if e.kind != EndpointsList {
		return nil
	}
	return append([]string(nil), e.list...)
}

// Raw returns the undecodable payload when Kind is EndpointsMalformed.
func (e Endpoints) Raw() string {
	return string(e.raw)
}

// UnmarshalJSON classifies the payload. It never fails; anything other than
// null or an array of non-blank strings is EndpointsMalformed.
func (e *Endpoints) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*e = Endpoints{}
		return nil
	}
	list, ok := decodeEndpointList(trimmed)
	if !ok {
		*e = Endpoints{kind: EndpointsMalformed, raw: append(json.RawMessage(nil), trimmed...)}
		return nil
	}
	*e = Endpoints{kind: EndpointsList, list: list}
	return nil
}

// decodeEndpointList accepts only a JSON array whose every element is a
// non-blank string. A null element would otherwise decode to "".
func decodeEndpointList(data []byte) ([]string, bool) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil || raws == nil {
		return nil, false
	}
	list := make([]string, 0, len(raws))
	for _, raw := range raws {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '"' {
			return nil, false
		}
		var endpoint string
		if err := json.Unmarshal(raw, &endpoint); err != nil || strings.TrimSpace(endpoint) == "" {
			return nil, false
		}
		list = append(list, endpoint)
	}
	return list, true
}

// MarshalJSON writes the declaration back in its original shape.
func (e Endpoints) MarshalJSON() ([]byte, error) {
	switch e.kind {
	case EndpointsList:
		return json.Marshal(e.list)
	case EndpointsMalformed:
		return e.raw, nil
	default:
		return []byte("null"), nil
	}
}

// Account is one entry of the accounts list. Other fields in the file
// (credentials, proxies, user agents) are ignored.
type Account struct {
	Email     string    `json:"email"`
	Endpoints Endpoints `json:"hotSearchEndpoints"`
}

// Load reads the accounts list at path. A missing file, invalid JSON or a top
// level that is not an array is an error.
func Load(path string) ([]Account, error) {
	// #nosec G304 -- the accounts path is an operator-supplied CLI argument.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts: %w", err)
	}
	return Parse(data)
}

// Parse decodes an accounts list.
func Parse(data []byte) ([]Account, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("decode accounts: top level must be a JSON array")
	}
	var accounts []Account
	if err := json.Unmarshal(trimmed, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	return accounts, nil
}
