// Package db persists the signed trust graph. PostgresStore is the
// production store; MemStore is the map-backed stand-in for tests and
// API-only mode. Both satisfy trust.EdgeSource and the api.GraphStore
// surface.
package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nintynick/transitive-trust/internal/trust"
	"github.com/nintynick/transitive-trust/pkg/models"
)

// PostgresStore owns the persistent signed graph: principals, trust and
// distrust edges, endorsements. It implements trust.EdgeSource, so it is
// the collaborator the engine propagates over in production.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect initializes the connection pool to PostgreSQL using pgx.
func Connect(connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping failed: %w", err)
	}

	log.Println("Successfully connected to PostgreSQL for the trust graph")
	return &PostgresStore{pool: pool}, nil
}

// Close gracefully closes the connection pool.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema loads and executes the schema.sql file.
func (s *PostgresStore) InitSchema() error {
	schemaBytes, err := os.ReadFile("internal/db/schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	if _, err := s.pool.Exec(context.Background(), string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema migrations: %w", err)
	}

	log.Println("Trust graph schema initialized")
	return nil
}

// UpsertPrincipal registers a principal or refreshes its display name.
// A previously pending principal (referenced by an edge before it ever
// registered) flips to registered.
func (s *PostgresStore) UpsertPrincipal(ctx context.Context, p models.Principal) error {
	sql := `
		INSERT INTO principals (id, display_name, created_at, is_pending)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET display_name = EXCLUDED.display_name, is_pending = FALSE;
	`
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, sql, p.ID, p.DisplayName, createdAt, p.IsPending)
	return err
}

// GetPrincipal fetches one principal by ID. Missing principals return
// nil without an error.
func (s *PostgresStore) GetPrincipal(ctx context.Context, id string) (*models.Principal, error) {
	var p models.Principal
	sql := `SELECT id, COALESCE(display_name, ''), created_at, is_pending FROM principals WHERE id = $1`
	err := s.pool.QueryRow(ctx, sql, id).Scan(&p.ID, &p.DisplayName, &p.CreatedAt, &p.IsPending)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ensurePending inserts a placeholder principal row for an edge target
// that never registered, so foreign keys hold. Pending principals are
// plain leaves to the engine.
func ensurePending(ctx context.Context, tx pgx.Tx, id string) error {
	sql := `
		INSERT INTO principals (id, created_at, is_pending)
		VALUES ($1, NOW(), TRUE)
		ON CONFLICT (id) DO NOTHING;
	`
	_, err := tx.Exec(ctx, sql, id)
	return err
}

// UpsertTrustEdge writes a trust edge; a newer edge supersedes the prior
// one for the same (from, to, domain) triple.
func (s *PostgresStore) UpsertTrustEdge(ctx context.Context, e models.TrustEdge) (models.TrustEdge, error) {
	if e.From == e.To {
		return e, fmt.Errorf("self-referential trust edge %s", e.From)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return e, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := ensurePending(ctx, tx, e.From); err != nil {
		return e, err
	}
	if err := ensurePending(ctx, tx, e.To); err != nil {
		return e, err
	}

	sql := `
		INSERT INTO trust_edges (id, from_id, to_id, weight, domain, created_at, expires_at, note, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (from_id, to_id, domain) DO UPDATE
		SET id = EXCLUDED.id, weight = EXCLUDED.weight, created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at, note = EXCLUDED.note, signature = EXCLUDED.signature;
	`
	if _, err := tx.Exec(ctx, sql, e.ID, e.From, e.To, e.Weight, e.Domain,
		e.CreatedAt, e.ExpiresAt, e.Note, e.Signature); err != nil {
		return e, fmt.Errorf("failed to upsert trust edge: %w", err)
	}
	return e, tx.Commit(ctx)
}

// DeleteTrustEdge revokes the active edge for a (from, to, domain) triple.
func (s *PostgresStore) DeleteTrustEdge(ctx context.Context, from, to, domain string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM trust_edges WHERE from_id = $1 AND to_id = $2 AND domain = $3`,
		from, to, domain)
	return err
}

// UpsertDistrustEdge writes a distrust edge with the same supersede
// semantics as trust edges.
func (s *PostgresStore) UpsertDistrustEdge(ctx context.Context, e models.DistrustEdge) (models.DistrustEdge, error) {
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

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return e, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := ensurePending(ctx, tx, e.From); err != nil {
		return e, err
	}
	if err := ensurePending(ctx, tx, e.To); err != nil {
		return e, err
	}

	sql := `
		INSERT INTO distrust_edges (id, from_id, to_id, domain, reason, created_at, expires_at, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (from_id, to_id, domain) DO UPDATE
		SET id = EXCLUDED.id, reason = EXCLUDED.reason, created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at, signature = EXCLUDED.signature;
	`
	if _, err := tx.Exec(ctx, sql, e.ID, e.From, e.To, e.Domain, e.Reason,
		e.CreatedAt, e.ExpiresAt, e.Signature); err != nil {
		return e, fmt.Errorf("failed to upsert distrust edge: %w", err)
	}
	return e, tx.Commit(ctx)
}

// DeleteDistrustEdge removes the active distrust edge for a triple.
func (s *PostgresStore) DeleteDistrustEdge(ctx context.Context, from, to, domain string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM distrust_edges WHERE from_id = $1 AND to_id = $2 AND domain = $3`,
		from, to, domain)
	return err
}

// UpsertEndorsement writes an endorsement; re-endorsing the same
// (author, subject, domain) updates the row in place and bumps
// updated_at, keeping the original created_at.
func (s *PostgresStore) UpsertEndorsement(ctx context.Context, e models.Endorsement) (models.Endorsement, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	verified := e.Verified()
	relationship := ""
	if e.Context != nil {
		relationship = e.Context.Relationship
	}

	sql := `
		INSERT INTO endorsements (id, author_id, subject_id, domain, score, content, created_at, updated_at, verified, relationship, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (author_id, subject_id, domain) DO UPDATE
		SET score = EXCLUDED.score, content = EXCLUDED.content, updated_at = EXCLUDED.updated_at,
		    verified = EXCLUDED.verified, relationship = EXCLUDED.relationship, signature = EXCLUDED.signature;
	`
	if _, err := s.pool.Exec(ctx, sql, e.ID, e.Author, e.Subject, e.Domain, e.Rating.Score,
		e.Content, e.CreatedAt, e.UpdatedAt, verified, relationship, e.Signature); err != nil {
		return e, fmt.Errorf("failed to upsert endorsement: %w", err)
	}
	return e, nil
}

// DeleteEndorsement removes the active endorsement for a triple.
func (s *PostgresStore) DeleteEndorsement(ctx context.Context, author, subject, domain string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM endorsements WHERE author_id = $1 AND subject_id = $2 AND domain = $3`,
		author, subject, domain)
	return err
}

// EndorsementsForSubject lists a subject's endorsements declared in the
// queried domain, one of its ancestors, or the wildcard.
func (s *PostgresStore) EndorsementsForSubject(ctx context.Context, subject, domain string) ([]models.Endorsement, error) {
	sql := `
		SELECT id, author_id, subject_id, domain, score, COALESCE(content, ''),
		       created_at, updated_at, verified, COALESCE(relationship, ''), COALESCE(signature, '')
		FROM endorsements
		WHERE subject_id = $1 AND domain = ANY($2)
		ORDER BY created_at, id
	`
	rows, err := s.pool.Query(ctx, sql, subject, eligibleDomains(domain))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEndorsements(rows)
}

// EndorsementsByDomain lists recent endorsements across subjects in the
// eligible domain set, feeding the network feed endpoint.
func (s *PostgresStore) EndorsementsByDomain(ctx context.Context, domain string, limit int) ([]models.Endorsement, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	sql := `
		SELECT id, author_id, subject_id, domain, score, COALESCE(content, ''),
		       created_at, updated_at, verified, COALESCE(relationship, ''), COALESCE(signature, '')
		FROM endorsements
		WHERE domain = ANY($1)
		ORDER BY created_at DESC, id
		LIMIT $2
	`
	rows, err := s.pool.Query(ctx, sql, eligibleDomains(domain), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEndorsements(rows)
}

func scanEndorsements(rows pgx.Rows) ([]models.Endorsement, error) {
	endorsements := []models.Endorsement{}
	for rows.Next() {
		var (
			e            models.Endorsement
			verified     bool
			relationship string
		)
		if err := rows.Scan(&e.ID, &e.Author, &e.Subject, &e.Domain, &e.Rating.Score,
			&e.Content, &e.CreatedAt, &e.UpdatedAt, &verified, &relationship, &e.Signature); err != nil {
			return nil, err
		}
		if verified || relationship != "" {
			e.Context = &models.EndorsementContext{Verified: verified, Relationship: relationship}
		}
		endorsements = append(endorsements, e)
	}
	return endorsements, rows.Err()
}

// DisplayNames resolves display names for a set of principals.
func (s *PostgresStore) DisplayNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, display_name FROM principals WHERE id = ANY($1) AND display_name IS NOT NULL`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

// OutgoingEdges implements trust.EdgeSource. It returns the active edges
// out of a node that are eligible for the queried domain: declared in
// the domain itself, one of its ancestors, or the wildcard. The engine
// re-derives the exact domain weight; the store only pre-filters.
// Ordering is fixed so traversal replays are deterministic.
func (s *PostgresStore) OutgoingEdges(ctx context.Context, node, domain string) ([]trust.OutgoingEdge, error) {
	sql := `
		SELECT from_id, to_id, weight, domain
		FROM trust_edges
		WHERE from_id = $1 AND domain = ANY($2)
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at, id
	`
	rows, err := s.pool.Query(ctx, sql, node, eligibleDomains(domain))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []trust.OutgoingEdge
	for rows.Next() {
		var e trust.OutgoingEdge
		if err := rows.Scan(&e.From, &e.To, &e.Weight, &e.Domain); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// IsDistrusted implements trust.EdgeSource: true when an active distrust
// edge viewer -> candidate exists in the queried domain or the wildcard.
func (s *PostgresStore) IsDistrusted(ctx context.Context, viewer, candidate, domain string) (bool, error) {
	var distrusted bool
	sql := `
		SELECT EXISTS (
			SELECT 1 FROM distrust_edges
			WHERE from_id = $1 AND to_id = $2 AND domain IN ($3, '*')
			  AND (expires_at IS NULL OR expires_at > NOW())
		)
	`
	err := s.pool.QueryRow(ctx, sql, viewer, candidate, domain).Scan(&distrusted)
	return distrusted, err
}

// SybilInputFor assembles the 1-hop subgraph bundle for a principal:
// its own active edges in both directions plus the count of directed
// trust edges among its neighbors.
func (s *PostgresStore) SybilInputFor(ctx context.Context, principal string) (trust.SybilInput, error) {
	input := trust.SybilInput{Principal: principal}

	p, err := s.GetPrincipal(ctx, principal)
	if err != nil {
		return input, err
	}
	if p != nil {
		input.CreatedAt = p.CreatedAt
	}

	outRows, err := s.pool.Query(ctx,
		`SELECT from_id, to_id, created_at FROM trust_edges
		 WHERE from_id = $1 AND (expires_at IS NULL OR expires_at > NOW())`, principal)
	if err != nil {
		return input, err
	}
	input.OutgoingEdges, err = scanEdgeStubs(outRows)
	if err != nil {
		return input, err
	}

	inRows, err := s.pool.Query(ctx,
		`SELECT from_id, to_id, created_at FROM trust_edges
		 WHERE to_id = $1 AND (expires_at IS NULL OR expires_at > NOW())`, principal)
	if err != nil {
		return input, err
	}
	input.IncomingEdges, err = scanEdgeStubs(inRows)
	if err != nil {
		return input, err
	}

	neighbors := make(map[string]struct{})
	for _, e := range input.OutgoingEdges {
		neighbors[e.To] = struct{}{}
	}
	for _, e := range input.IncomingEdges {
		neighbors[e.From] = struct{}{}
	}
	delete(neighbors, principal)
	ids := make([]string, 0, len(neighbors))
	for id := range neighbors {
		ids = append(ids, id)
	}
	if len(ids) > 1 {
		err = s.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM trust_edges
			 WHERE from_id = ANY($1) AND to_id = ANY($1)
			   AND from_id <> to_id AND (expires_at IS NULL OR expires_at > NOW())`,
			ids).Scan(&input.IntraNeighborEdges)
		if err != nil {
			return input, err
		}
	}
	return input, nil
}

func scanEdgeStubs(rows pgx.Rows) ([]models.TrustEdge, error) {
	defer rows.Close()
	var edges []models.TrustEdge
	for rows.Next() {
		var e models.TrustEdge
		if err := rows.Scan(&e.From, &e.To, &e.CreatedAt); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// eligibleDomains expands a queried domain to the declared domains that
// can carry trust for it: itself, each ancestor, and the wildcard.
// Mirrors the engine's ancestor chain.
func eligibleDomains(domain string) []string {
	domains := []string{domain}
	for {
		i := strings.LastIndexByte(domain, '.')
		if i < 0 {
			break
		}
		domain = domain[:i]
		domains = append(domains, domain)
	}
	if domains[len(domains)-1] != models.Wildcard {
		domains = append(domains, models.Wildcard)
	}
	return domains
}
