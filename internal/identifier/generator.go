// Package identifier allocates tenant-scoped, human-readable ticket codes of
// the form PREFIX-NNN.
package identifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// DefaultMaxAttempts bounds collision retries.
const DefaultMaxAttempts = 50

var (
	// ErrInvalidTenant is returned when the tenant does not exist.
	ErrInvalidTenant = errors.New("invalid tenant")
	// ErrExhausted is returned once every attempt collided.
	ErrExhausted = errors.New("identifier attempts exhausted")
)

// TenantReader resolves tenants by id.
type TenantReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Tenant, error)
}

// IdentifierReader exposes the existing identifiers of a tenant.
type IdentifierReader interface {
	IdentifiersWithPrefix(ctx context.Context, tenantID int64, prefix string) ([]string, error)
	IdentifierExists(ctx context.Context, tenantID int64, identifier string) (bool, error)
}

// Generator derives the next identifier from what is already stored.
type Generator struct {
	tenants     TenantReader
	tickets     IdentifierReader
	locker      Locker
	maxAttempts int
}

// Option customises a Generator.
type Option func(*Generator)

// WithLocker serialises allocation per tenant through locker.
func WithLocker(locker Locker) Option {
	return func(g *Generator) { g.locker = locker }
}

// WithMaxAttempts overrides DefaultMaxAttempts.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// NewGenerator builds a Generator.
func NewGenerator(tenants TenantReader, tickets IdentifierReader, opts ...Option) *Generator {
	g := &Generator{
		tenants:     tenants,
		tickets:     tickets,
		locker:      NoopLocker{},
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxAttempts reports the configured retry bound.
func (g *Generator) MaxAttempts() int {
	return g.maxAttempts
}

// Prefix is the upper-cased first two characters of the tenant name followed
// by the tenant id, e.g. "Frontline"/5 gives "FR5".
func Prefix(tenant *domain.Tenant) string {
	name := tenant.Name
	cut := 0
	for i := 0; i < 2 && cut < len(name); i++ {
		_, size := utf8.DecodeRuneInString(name[cut:])
		cut += size
	}
	return strings.ToUpper(name[:cut]) + strconv.FormatInt(tenant.ID, 10)
}

// Format renders prefix and sequence, zero padded to three digits.
func Format(prefix string, seq int) string {
	return fmt.Sprintf("%s-%03d", prefix, seq)
}

// ParseSequence reads the numeric segment after the rightmost '-'.
func ParseSequence(identifier string) (int, bool) {
	idx := strings.LastIndex(identifier, "-")
	if idx < 0 || idx == len(identifier)-1 {
		return 0, false
	}
	seq, err := strconv.Atoi(identifier[idx+1:])
	if err != nil || seq < 0 {
		return 0, false
	}
	return seq, true
}

// NextSequence is max+1 over the parsable suffixes, or 1 when none parse.
func NextSequence(identifiers []string) int {
	highest := 0
	for _, identifier := range identifiers {
		if seq, ok := ParseSequence(identifier); ok && seq > highest {
			highest = seq
		}
	}
	return highest + 1
}

// Generate returns the first free identifier for tenantID. It does not
// reserve it; use Allocate to couple generation with insertion.
func (g *Generator) Generate(ctx context.Context, tenantID int64) (string, error) {
	tenant, err := g.tenants.GetByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("tenant %d: %w", tenantID, ErrInvalidTenant)
		}
		return "", err
	}

	prefix := Prefix(tenant)
	existing, err := g.tickets.IdentifiersWithPrefix(ctx, tenantID, prefix)
	if err != nil {
		return "", fmt.Errorf("list identifiers: %w", err)
	}

	seq := NextSequence(existing)
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate := Format(prefix, seq)
		taken, err := g.tickets.IdentifierExists(ctx, tenantID, candidate)
		if err != nil {
			return "", fmt.Errorf("check identifier: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		seq++
	}
	return "", fmt.Errorf("tenant %d after %d attempts: %w", tenantID, g.maxAttempts, ErrExhausted)
}

// Allocate generates an identifier and hands it to insert. When insert
// reports repository.ErrDuplicateIdentifier a fresh identifier is generated
// and insert is called again.
func (g *Generator) Allocate(ctx context.Context, tenantID int64, insert func(ctx context.Context, identifier string) error) (string, error) {
	release, err := g.locker.Acquire(ctx, LockKey(tenantID))
	if err != nil {
		return "", fmt.Errorf("acquire identifier lock: %w", err)
	}
	defer release()

	var lastErr error
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate, err := g.Generate(ctx, tenantID)
		if err != nil {
			return "", err
		}
		err = insert(ctx, candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, repository.ErrDuplicateIdentifier) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("tenant %d after %d attempts: %w", tenantID, g.maxAttempts, errors.Join(ErrExhausted, lastErr))
}
