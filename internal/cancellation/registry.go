package cancellation

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Registry maps request ids to tokens, with a secondary index by owner id.
type Registry struct {
	mu      sync.Mutex
	tokens  map[string]*Token
	owners  map[string]map[string]struct{}
	ownerOf map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tokens:  make(map[string]*Token),
		owners:  make(map[string]map[string]struct{}),
		ownerOf: make(map[string]string),
	}
}

// Register stores token under a freshly generated request id. An empty owner
// indexes the token by id only.
func (r *Registry) Register(ownerID string, token *Token) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[id] = token
	if ownerID != "" {
		set, ok := r.owners[ownerID]
		if !ok {
			set = make(map[string]struct{})
			r.owners[ownerID] = set
		}
		set[id] = struct{}{}
		r.ownerOf[id] = ownerID
	}
	return id
}

// Release removes a settled request without aborting it. Releasing an unknown
// id is a no-op so every settlement path can call it unconditionally.
func (r *Registry) Release(requestID string) {
	r.mu.Lock()
	token := r.remove(requestID)
	r.mu.Unlock()
	if token != nil {
		token.Release()
	}
}

// Cancel aborts and removes a single request. It reports whether the id was known.
func (r *Registry) Cancel(requestID string) bool {
	r.mu.Lock()
	token := r.remove(requestID)
	r.mu.Unlock()
	if token == nil {
		return false
	}
	token.Abort()
	return true
}

// CancelOwner aborts and removes every request created by ownerID.
func (r *Registry) CancelOwner(ownerID string) int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.owners[ownerID]))
	for id := range r.owners[ownerID] {
		ids = append(ids, id)
	}
	tokens := make([]*Token, 0, len(ids))
	for _, id := range ids {
		if token := r.remove(id); token != nil {
			tokens = append(tokens, token)
		}
	}
	delete(r.owners, ownerID)
	r.mu.Unlock()

	for _, token := range tokens {
		token.Abort()
	}
	return len(tokens)
}

// CancelAll aborts every outstanding request regardless of owner and clears the registry.
func (r *Registry) CancelAll() int {
	r.mu.Lock()
	tokens := make([]*Token, 0, len(r.tokens))
	for _, token := range r.tokens {
		tokens = append(tokens, token)
	}
	r.tokens = make(map[string]*Token)
	r.owners = make(map[string]map[string]struct{})
	r.ownerOf = make(map[string]string)
	r.mu.Unlock()

	for _, token := range tokens {
		token.Abort()
	}
	return len(tokens)
}

// Size returns the number of outstanding requests.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tokens)
}

// OwnerSize returns the number of outstanding requests created by ownerID.
func (r *Registry) OwnerSize(ownerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owners[ownerID])
}

// Owners lists owners with outstanding requests, sorted.
func (r *Registry) Owners() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	owners := make([]string, 0, len(r.owners))
	for owner := range r.owners {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// remove must be called with mu held.
func (r *Registry) remove(requestID string) *Token {
	token, ok := r.tokens[requestID]
	if !ok {
		return nil
	}
	delete(r.tokens, requestID)
	if owner, ok := r.ownerOf[requestID]; ok {
		delete(r.ownerOf, requestID)
		if set := r.owners[owner]; set != nil {
			delete(set, requestID)
			if len(set) == 0 {
				delete(r.owners, owner)
			}
		}
	}
	return token
}
