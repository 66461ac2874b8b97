package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nintynick/transitive-trust/internal/trust"
	"github.com/nintynick/transitive-trust/pkg/models"
)

// MemStore is the in-memory graph store: the same surface as
// PostgresStore, map-backed and mutex-guarded. It backs tests and the
// degraded API-only mode when no DATABASE_URL is configured. Its
// IsDistrusted is real, not a stub.
type MemStore struct {
	mu           sync.RWMutex
	principals   map[string]models.Principal
	trustEdges   map[string]models.TrustEdge    // from|to|domain
	distrust     map[string]models.DistrustEdge // from|to|domain
	endorsements map[string]models.Endorsement  // author|subject|domain
}

// NewMemStore builds an empty in-memory graph.
func NewMemStore() *MemStore {
	return &MemStore{
		principals:   make(map[string]models.Principal),
		trustEdges:   make(map[string]models.TrustEdge),
		distrust:     make(map[string]models.DistrustEdge),
		endorsements: make(map[string]models.Endorsement),
	}
}

func tripleKey(a, b, c string) string {
	return a + "|" + b + "|" + c
}

// UpsertPrincipal registers a principal or refreshes its display name.
func (s *MemStore) UpsertPrincipal(_ context.Context, p models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if existing, ok := s.principals[p.ID]; ok {
		existing.DisplayName = p.DisplayName
		existing.IsPending = false
		s.principals[p.ID] = existing
		return nil
	}
	s.principals[p.ID] = p
	return nil
}

// GetPrincipal fetches one principal; missing principals return nil.
func (s *MemStore) GetPrincipal(_ context.Context, id string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.principals[id]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s *MemStore) ensurePendingLocked(id string) {
	if _, ok := s.principals[id]; !ok {
		s.principals[id] = models.Principal{ID: id, CreatedAt: time.Now(), IsPending: true}
	}
}

// UpsertTrustEdge writes a trust edge, superseding any active edge for
// the same (from, to, domain) triple.
func (s *MemStore) UpsertTrustEdge(_ context.Context, e models.TrustEdge) (models.TrustEdge, error) {
	if e.From == e.To {
		return e, fmt.Errorf("self-referential trust edge %s", e.From)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensurePendingLocked(e.From)
	s.ensurePendingLocked(e.To)
	s.trustEdges[tripleKey(e.From, e.To, e.Domain)] = e
	return e, nil
}

// DeleteTrustEdge revokes the active edge for a triple.
func (s *MemStore) DeleteTrustEdge(_ context.Context, from, to, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trustEdges, tripleKey(from, to, domain))
	return nil
}

// UpsertDistrustEdge writes a distrust edge with supersede semantics.
func (s *MemStore) UpsertDistrustEdge(_ context.Context, e models.DistrustEdge) (models.DistrustEdge, error) {
	if e.From == e.To {
		return e, fmt.Errorf("self-referential distrust edge %s", e.From)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Reason == "" {
		e.Reason = models.ReasonOther
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensurePendingLocked(e.From)
	s.ensurePendingLocked(e.To)
	s.distrust[tripleKey(e.From, e.To, e.Domain)] = e
	return e, nil
}

// DeleteDistrustEdge removes the active distrust edge for a triple.
func (s *MemStore) DeleteDistrustEdge(_ context.Context, from, to, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.distrust, tripleKey(from, to, domain))
	return nil
}

// UpsertEndorsement writes an endorsement; re-endorsing the same triple
// updates in place, bumps updated_at, and keeps the original created_at.
func (s *MemStore) UpsertEndorsement(_ context.Context, e models.Endorsement) (models.Endorsement, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	key := tripleKey(e.Author, e.Subject, e.Domain)
	if existing, ok := s.endorsements[key]; ok {
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
	}
	s.endorsements[key] = e
	return e, nil
}

// DeleteEndorsement removes the active endorsement for a triple.
func (s *MemStore) DeleteEndorsement(_ context.Context, author, subject, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.endorsements, tripleKey(author, subject, domain))
	return nil
}

// EndorsementsForSubject lists a subject's endorsements in the eligible
// domain set, oldest first.
func (s *MemStore) EndorsementsForSubject(_ context.Context, subject, domain string) ([]models.Endorsement, error) {
	eligible := domainSet(domain)

	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []models.Endorsement{}
	for _, e := range s.endorsements {
		if e.Subject != subject {
			continue
		}
		if _, ok := eligible[e.Domain]; !ok {
			continue
		}
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// EndorsementsByDomain lists recent endorsements across subjects in the
// eligible domain set, newest first.
func (s *MemStore) EndorsementsByDomain(_ context.Context, domain string, limit int) ([]models.Endorsement, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	eligible := domainSet(domain)

	s.mu.RLock()
	defer s.mu.RUnlock()
	result := []models.Endorsement{}
	for _, e := range s.endorsements {
		if _, ok := eligible[e.Domain]; ok {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DisplayNames resolves display names for a set of principals.
func (s *MemStore) DisplayNames(_ context.Context, ids []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if p, ok := s.principals[id]; ok && p.DisplayName != "" {
			names[id] = p.DisplayName
		}
	}
	return names, nil
}

// OutgoingEdges implements trust.EdgeSource with the same eligibility
// pre-filter and deterministic ordering as the PostgreSQL store.
func (s *MemStore) OutgoingEdges(_ context.Context, node, domain string) ([]trust.OutgoingEdge, error) {
	eligible := domainSet(domain)
	now := time.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	var active []models.TrustEdge
	for _, e := range s.trustEdges {
		if e.From != node || !e.Active(now) {
			continue
		}
		if _, ok := eligible[e.Domain]; !ok {
			continue
		}
		active = append(active, e)
	}
	sort.Slice(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID < active[j].ID
		}
		return active[i].CreatedAt.Before(active[j].CreatedAt)
	})

	edges := make([]trust.OutgoingEdge, len(active))
	for i, e := range active {
		edges[i] = trust.OutgoingEdge{From: e.From, To: e.To, Weight: e.Weight, Domain: e.Domain}
	}
	return edges, nil
}

// IsDistrusted implements trust.EdgeSource: true when an active distrust
// edge exists in the queried domain or the wildcard.
func (s *MemStore) IsDistrusted(_ context.Context, viewer, candidate, domain string) (bool, error) {
	now := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.distrust[tripleKey(viewer, candidate, domain)]; ok && e.Active(now) {
		return true, nil
	}
	if e, ok := s.distrust[tripleKey(viewer, candidate, models.Wildcard)]; ok && e.Active(now) {
		return true, nil
	}
	return false, nil
}

// SybilInputFor assembles the 1-hop subgraph bundle for a principal.
func (s *MemStore) SybilInputFor(_ context.Context, principal string) (trust.SybilInput, error) {
	now := time.Now()
	input := trust.SybilInput{Principal: principal}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.principals[principal]; ok {
		input.CreatedAt = p.CreatedAt
	}

	neighbors := make(map[string]struct{})
	for _, e := range s.trustEdges {
		if !e.Active(now) {
			continue
		}
		if e.From == principal {
			input.OutgoingEdges = append(input.OutgoingEdges, e)
			neighbors[e.To] = struct{}{}
		}
		if e.To == principal {
			input.IncomingEdges = append(input.IncomingEdges, e)
			neighbors[e.From] = struct{}{}
		}
	}
	delete(neighbors, principal)

	for _, e := range s.trustEdges {
		if !e.Active(now) || e.From == principal || e.To == principal {
			continue
		}
		_, fromIn := neighbors[e.From]
		_, toIn := neighbors[e.To]
		if fromIn && toIn {
			input.IntraNeighborEdges++
		}
	}
	return input, nil
}

// domainSet is eligibleDomains as a membership set.
func domainSet(domain string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, d := range eligibleDomains(domain) {
		set[d] = struct{}{}
	}
	return set
}
