// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package kerberos

import "sort"

// Operation names used by the client itself.
const (
	OperationAuthenticationService = "kerberos.authentication-service"
	OperationTicketGrantingService = "kerberos.ticket-granting-service"
)

// Protection classifies an operation name.
type Protection int

const (
	// Unknown names are refused.
	Unknown Protection = iota

	// Unprotected operations are plain JSON-RPC calls.
	Unprotected

	// Protected operations need a service ticket and encrypt their
	// parameters and results.
	Protected

	// Restricted operations exist on the server but are never invoked.
	Restricted
)

func (p Protection) String() string {
	switch p {
	case Unprotected:
		return "unprotected"
	case Protected:
		return "protected"
	case Restricted:
		return "restricted"
	default:
		return "unknown"
	}
}

// Param declares one named parameter of an operation. Type is a hint
// for callers that build parameters from text ("string", "boolean",
// "array", "any"); Invoke checks names only.
type Param struct {
	Name     string
	Type     string
	Required bool
}

// Operation is one catalog entry.
type Operation struct {
	Name       string
	Protection Protection

	// Params is nil when the operation's parameter list is not known,
	// in which case any named parameters are accepted. An empty non-nil
	// slice declares an operation that takes no parameters.
	Params []Param
}

// Catalog maps operation names to their protection and declared
// parameters. A Catalog is immutable after construction and safe for
// concurrent use.
type Catalog struct {
	operations map[string]Operation
}

// NewCatalog builds a catalog from entries. Later entries with the same
// name replace earlier ones.
func NewCatalog(entries ...Operation) *Catalog {
	catalog := &Catalog{operations: make(map[string]Operation, len(entries))}
	for _, entry := range entries {
		catalog.operations[entry.Name] = entry
	}
	return catalog
}

// Lookup returns the entry for name. Unknown names return an Operation
// with Protection Unknown and ok false.
func (c *Catalog) Lookup(name string) (Operation, bool) {
	operation, ok := c.operations[name]
	if !ok {
		return Operation{Name: name, Protection: Unknown}, false
	}
	return operation, true
}

// Protection returns the protection class of name.
func (c *Catalog) Protection(name string) Protection {
	operation, _ := c.Lookup(name)
	return operation.Protection
}

// Operations returns every entry sorted by name.
func (c *Catalog) Operations() []Operation {
	result := make([]Operation, 0, len(c.operations))
	for _, operation := range c.operations {
		result = append(result, operation)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

func required(names ...string) []Param {
	params := make([]Param, 0, len(names))
	for _, name := range names {
		params = append(params, Param{Name: name, Type: "string", Required: true})
	}
	return params
}

// DefaultCatalog returns the game server's operation table.
func DefaultCatalog() *Catalog {
	none := []Param{}
	return NewCatalog(
		// Protected.
		Operation{Name: "item.move", Protection: Protected},
		Operation{Name: "kerberos.echo", Protection: Protected, Params: required("message")},
		Operation{Name: "protagonist.move", Protection: Protected, Params: required("world_id", "room")},
		Operation{Name: "protagonist.think", Protection: Protected},
		Operation{Name: "room.neighbor", Protection: Protected, Params: required("world_id", "room", "direction")},
		Operation{Name: "room.directions", Protection: Protected, Params: required("world_id", "room")},
		Operation{Name: "world.create", Protection: Protected, Params: []Param{
			{Name: "ip", Type: "string", Required: true},
			{Name: "protocol", Type: "string", Required: true},
			{Name: "extended_client", Type: "boolean", Required: true},
		}},

		// Unprotected.
		Operation{Name: "action.do", Protection: Unprotected},
		Operation{Name: "action.is_done", Protection: Unprotected, Params: required("world_id", "name")},
		Operation{Name: "chip.whisperer", Protection: Unprotected, Params: []Param{
			{Name: "world_id", Type: "string", Required: true},
			{Name: "ciphertexts", Type: "array", Required: true},
		}},
		Operation{Name: "chip.whisperer-pro", Protection: Unprotected},
		Operation{Name: "echo", Protection: Unprotected, Params: required("message")},
		Operation{Name: "item.description", Protection: Unprotected},
		Operation{Name: "item.gender", Protection: Unprotected},
		Operation{Name: "item.location", Protection: Unprotected},
		Operation{Name: "item.matches", Protection: Unprotected},
		Operation{Name: "item.title", Protection: Unprotected},
		Operation{Name: OperationAuthenticationService, Protection: Unprotected, Params: required("username")},
		Operation{Name: OperationTicketGrantingService, Protection: Unprotected, Params: required("ticket", "authenticator", "method")},
		Operation{Name: "man", Protection: Unprotected, Params: required("method")},
		Operation{Name: "protagonist.data-collection", Protection: Unprotected, Params: required("world_id")},
		Operation{Name: "protagonist.location", Protection: Unprotected, Params: required("world_id")},
		Operation{Name: "protagonist.sessions", Protection: Unprotected},
		Operation{Name: "protagonist.username", Protection: Unprotected, Params: required("world_id")},
		Operation{Name: "room.description", Protection: Unprotected},
		Operation{Name: "room.find-by-name", Protection: Unprotected},
		Operation{Name: "room.items", Protection: Unprotected},
		Operation{Name: "room.name", Protection: Unprotected, Params: required("world_id", "room")},
		Operation{Name: "server.history", Protection: Unprotected, Params: none},
		Operation{Name: "server.status", Protection: Unprotected, Params: none},
		Operation{Name: "session-store.set", Protection: Unprotected},
		Operation{Name: "walkman.get-tracks", Protection: Unprotected, Params: required("world_id")},
		Operation{Name: "world.destroy", Protection: Unprotected},
		Operation{Name: "world.list", Protection: Unprotected, Params: none},

		// Restricted.
		Operation{Name: "session-store.get", Protection: Restricted},
	)
}
