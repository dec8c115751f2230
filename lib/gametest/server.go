// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gametest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/bureau-foundation/wayfinder/lib/cipher"
	"github.com/bureau-foundation/wayfinder/lib/jsonrpc"
	"github.com/bureau-foundation/wayfinder/lib/kerberos"
)

// Handler implements one operation. Returned errors become remote
// errors carrying the error's message.
type Handler func(params map[string]json.RawMessage) (any, error)

// Server is an in-memory game server. The zero value is not usable;
// call NewServer.
type Server struct {
	catalog *kerberos.Catalog

	mu                    sync.Mutex
	users                 map[string][]byte
	sessions              map[string]grantedTicket
	services              map[string]grantedTicket
	worlds                map[string]*World
	handlers              map[string]Handler
	calls                 map[string]int
	sequence              int
	directionsUnsupported bool
}

type grantedTicket struct {
	identity  string
	operation string
	key       []byte
}

// NewServer returns a server with no users and no worlds.
func NewServer() *Server {
	server := &Server{
		catalog:  kerberos.DefaultCatalog(),
		users:    make(map[string][]byte),
		sessions: make(map[string]grantedTicket),
		services: make(map[string]grantedTicket),
		worlds:   make(map[string]*World),
		handlers: make(map[string]Handler),
		calls:    make(map[string]int),
	}
	server.installBuiltins()
	return server
}

// AddUser registers identity with its long-term secret.
func (s *Server) AddUser(identity, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[identity] = []byte(secret)
}

// AddWorld registers world, replacing any world with the same id.
func (s *Server) AddWorld(world *World) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.worlds[world.ID] = world
}

// Location returns the protagonist's room in worldID.
func (s *Server) Location(worldID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if world, ok := s.worlds[worldID]; ok {
		return world.Location
	}
	return ""
}

// SetDirectionsSupported controls whether room.directions answers. When
// unsupported it fails with a remote error, as an older server would.
func (s *Server) SetDirectionsSupported(supported bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.directionsUnsupported = !supported
}

// Handle installs handler for operation, replacing any built-in.
func (s *Server) Handle(operation string, handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[operation] = handler
}

// Calls returns how many requests named operation the server received.
func (s *Server) Calls(operation string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[operation]
}

// TotalCalls returns the number of requests received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, count := range s.calls {
		total += count
	}
	return total
}

// ResetCalls zeroes every call counter.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// Call implements kerberos.Caller. Server-side failures are returned as
// *jsonrpc.RemoteError, exactly as the HTTP transport would report them.
func (s *Server) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, &jsonrpc.TransportError{Method: method, Err: err}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("gametest: encoding params: %w", err)
	}
	var named map[string]json.RawMessage
	if err := json.Unmarshal(encoded, &named); err != nil {
		return nil, remoteError(method, fmt.Errorf("params must be an object"))
	}
	result, err := s.dispatch(method, named)
	if err != nil {
		return nil, remoteError(method, err)
	}
	return result, nil
}

// ServeHTTP answers JSON-RPC 2.0 POST requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var request struct {
		Method string                     `json:"method"`
		Params map[string]json.RawMessage `json:"params"`
		ID     json.RawMessage            `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "malformed request", http.StatusBadRequest)
		return
	}

	response := map[string]any{"jsonrpc": "2.0", "id": request.ID}
	result, err := s.dispatch(request.Method, request.Params)
	if err != nil {
		response["error"] = map[string]any{"code": -32000, "message": err.Error()}
	} else {
		response["result"] = result
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func remoteError(method string, err error) error {
	payload, _ := json.Marshal(map[string]any{"code": -32000, "message": err.Error()})
	return &jsonrpc.RemoteError{Method: method, Payload: payload}
}

func (s *Server) dispatch(method string, params map[string]json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls[method]++
	protection := s.catalog.Protection(method)
	s.mu.Unlock()

	switch {
	case method == kerberos.OperationAuthenticationService:
		return s.authenticate(params)
	case method == kerberos.OperationTicketGrantingService:
		return s.grant(params)
	case protection == kerberos.Protected:
		return s.protected(method, params)
	default:
		return s.run(method, params)
	}
}

func (s *Server) run(method string, params map[string]json.RawMessage) (json.RawMessage, error) {
	s.mu.Lock()
	handler, ok := s.handlers[method]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("method %q not found", method)
	}
	result, err := handler(params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (s *Server) authenticate(params map[string]json.RawMessage) (json.RawMessage, error) {
	identity, err := stringParam(params, "username")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	longTerm, ok := s.users[identity]
	if !ok {
		return nil, fmt.Errorf("unknown user %q", identity)
	}
	s.sequence++
	ticket := fmt.Sprintf("tgt-%d", s.sequence)
	sessionKey := []byte(fmt.Sprintf("session-%s-%d\n", identity, s.sequence))
	sealed, err := cipher.Encrypt(sessionKey, longTerm)
	if err != nil {
		return nil, err
	}
	s.sessions[ticket] = grantedTicket{identity: identity, key: sessionKey}
	return json.Marshal(map[string]string{"ticket": ticket, "key": sealed})
}

func (s *Server) grant(params map[string]json.RawMessage) (json.RawMessage, error) {
	ticket, err := stringParam(params, "ticket")
	if err != nil {
		return nil, err
	}
	operation, err := stringParam(params, "method")
	if err != nil {
		return nil, err
	}
	authenticator, err := stringParam(params, "authenticator")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[ticket]
	if !ok {
		return nil, fmt.Errorf("invalid session ticket")
	}
	if err := checkAuthenticator(authenticator, session); err != nil {
		return nil, err
	}
	if s.catalog.Protection(operation) != kerberos.Protected {
		return nil, fmt.Errorf("method %q does not require a ticket", operation)
	}
	s.sequence++
	serviceTicket := fmt.Sprintf("st-%s-%d", operation, s.sequence)
	serviceKey := []byte(fmt.Sprintf("service-%s-%d\n", operation, s.sequence))
	sealed, err := cipher.Encrypt(serviceKey, session.key)
	if err != nil {
		return nil, err
	}
	s.services[serviceTicket] = grantedTicket{identity: session.identity, operation: operation, key: serviceKey}
	return json.Marshal(map[string]string{"ticket": serviceTicket, "key": sealed})
}

func (s *Server) protected(method string, params map[string]json.RawMessage) (json.RawMessage, error) {
	ticket, err := stringParam(params, "ticket")
	if err != nil {
		return nil, err
	}
	authenticator, err := stringParam(params, "authenticator")
	if err != nil {
		return nil, err
	}
	encryptedArgs, err := stringParam(params, "encrypted_args")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	service, ok := s.services[ticket]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("invalid service ticket")
	}
	if service.operation != method {
		return nil, fmt.Errorf("ticket issued for %q, not %q", service.operation, method)
	}
	if err := checkAuthenticator(authenticator, service); err != nil {
		return nil, err
	}

	arguments := map[string]json.RawMessage{}
	if encryptedArgs != "" {
		plain, err := cipher.Decrypt(encryptedArgs, service.key)
		if err != nil {
			return nil, fmt.Errorf("cannot decrypt arguments: %w", err)
		}
		if err := json.Unmarshal(plain, &arguments); err != nil {
			return nil, fmt.Errorf("arguments are not an object: %w", err)
		}
	}

	result, err := s.run(method, arguments)
	if err != nil {
		return nil, err
	}
	sealed, err := cipher.Encrypt(append(result, '\n'), service.key)
	if err != nil {
		return nil, err
	}
	return json.Marshal(sealed)
}

func checkAuthenticator(sealed string, granted grantedTicket) error {
	plain, err := cipher.Decrypt(sealed, granted.key)
	if err != nil {
		return fmt.Errorf("invalid authenticator: %w", err)
	}
	var body struct {
		Username  string   `json:"username"`
		Timestamp *float64 `json:"timestamp"`
	}
	if err := json.Unmarshal(plain, &body); err != nil {
		return fmt.Errorf("invalid authenticator: %w", err)
	}
	if body.Username != granted.identity || body.Timestamp == nil {
		return errors.New("authenticator does not match ticket")
	}
	return nil
}

func stringParam(params map[string]json.RawMessage, name string) (string, error) {
	raw, ok := params[name]
	if !ok {
		return "", fmt.Errorf("missing parameter %q", name)
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return "", fmt.Errorf("parameter %q must be a string", name)
	}
	return value, nil
}

func (s *Server) world(params map[string]json.RawMessage) (*World, error) {
	worldID, err := stringParam(params, "world_id")
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	world, ok := s.worlds[worldID]
	if !ok {
		return nil, fmt.Errorf("unknown world %q", worldID)
	}
	return world, nil
}

func (s *Server) room(params map[string]json.RawMessage) (*World, *Room, error) {
	world, err := s.world(params)
	if err != nil {
		return nil, nil, err
	}
	roomID, err := stringParam(params, "room")
	if err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := world.Rooms[roomID]
	if !ok {
		return nil, nil, fmt.Errorf("unknown room %q", roomID)
	}
	return world, room, nil
}

func (s *Server) installBuiltins() {
	s.handlers["echo"] = func(params map[string]json.RawMessage) (any, error) {
		return params["message"], nil
	}
	s.handlers["kerberos.echo"] = s.handlers["echo"]
	s.handlers["man"] = func(params map[string]json.RawMessage) (any, error) {
		method, err := stringParam(params, "method")
		if err != nil {
			return nil, err
		}
		return map[string]string{"method": method, "description": "manual for " + method}, nil
	}
	s.handlers["server.status"] = func(map[string]json.RawMessage) (any, error) {
		return map[string]any{"status": "ok", "worlds": len(s.worldIDs())}, nil
	}
	s.handlers["server.history"] = func(map[string]json.RawMessage) (any, error) {
		return []any{}, nil
	}
	s.handlers["world.list"] = func(map[string]json.RawMessage) (any, error) {
		listing := [][]string{}
		for _, id := range s.worldIDs() {
			listing = append(listing, []string{id, "127.0.0.1"})
		}
		return listing, nil
	}
	s.handlers["protagonist.username"] = func(params map[string]json.RawMessage) (any, error) {
		world, err := s.world(params)
		if err != nil {
			return nil, err
		}
		if world.Username == "" {
			return nil, nil
		}
		return world.Username, nil
	}
	s.handlers["protagonist.location"] = func(params map[string]json.RawMessage) (any, error) {
		world, err := s.world(params)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		return world.Location, nil
	}
	s.handlers["protagonist.data-collection"] = func(params map[string]json.RawMessage) (any, error) {
		world, err := s.world(params)
		if err != nil {
			return nil, err
		}
		return world.DataCollection, nil
	}
	s.handlers["room.name"] = func(params map[string]json.RawMessage) (any, error) {
		_, room, err := s.room(params)
		if err != nil {
			return nil, err
		}
		return room.Name, nil
	}
	s.handlers["room.neighbor"] = func(params map[string]json.RawMessage) (any, error) {
		_, room, err := s.room(params)
		if err != nil {
			return nil, err
		}
		direction, err := stringParam(params, "direction")
		if err != nil {
			return nil, err
		}
		if neighbor, ok := room.Exits[direction]; ok {
			return map[string]any{"result": neighbor}, nil
		}
		return map[string]any{"result": nil}, nil
	}
	s.handlers["room.directions"] = func(params map[string]json.RawMessage) (any, error) {
		s.mu.Lock()
		unsupported := s.directionsUnsupported
		s.mu.Unlock()
		if unsupported {
			return nil, fmt.Errorf("method %q not found", "room.directions")
		}
		_, room, err := s.room(params)
		if err != nil {
			return nil, err
		}
		return map[string]any{"result": room.directions()}, nil
	}
	s.handlers["protagonist.move"] = func(params map[string]json.RawMessage) (any, error) {
		world, _, err := s.room(params)
		if err != nil {
			return nil, err
		}
		target, _ := stringParam(params, "room")
		s.mu.Lock()
		defer s.mu.Unlock()
		if !world.IgnoreMoves {
			world.Location = target
		}
		return map[string]any{"result": "ok"}, nil
	}
}

func (s *Server) worldIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.worlds))
	for id := range s.worlds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
