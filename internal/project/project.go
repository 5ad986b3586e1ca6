package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var ErrNotFound = errors.New("project not found")

// Project is the tenant: an isolated namespace identified by its id and
// addressed by callers through its API key.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	APIKey      string    `json:"apiKey,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Store struct {
	db *sql.DB

	mu      sync.Mutex
	entropy io.Reader
}

func NewStore(db *sql.DB) *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Store{
		db:      db,
		entropy: ulid.Monotonic(src, 0),
	}
}

// newAPIKey mints a "vt_"-prefixed key. ULIDs keep keys sortable by
// creation time, which makes key audits in the table trivial.
func (s *Store) newAPIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return "vt_" + strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String())
}

const projectColumns = "id, name, description, api_key, is_active, created_at, updated_at"

// Create registers a project and returns it with its freshly minted API key.
func (s *Store) Create(ctx context.Context, name, description string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (name, description, api_key, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, true, NOW(), NOW())
		RETURNING `+projectColumns,
		name, nullable(description), s.newAPIKey())

	p, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// EnsureWithKey registers a project under a caller-chosen API key if no
// project holds that key yet. Used for seeding a known demo tenant.
func (s *Store) EnsureWithKey(ctx context.Context, name, description, apiKey string) (*Project, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (name, description, api_key, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, true, NOW(), NOW())
		ON CONFLICT (api_key) DO NOTHING`,
		name, nullable(description), apiKey)
	if err != nil {
		return nil, fmt.Errorf("ensure project: %w", err)
	}
	return s.GetByAPIKey(ctx, apiKey)
}

// GetByAPIKey resolves an active project from its API key.
func (s *Store) GetByAPIKey(ctx context.Context, apiKey string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+projectColumns+`
		FROM projects
		WHERE api_key = $1 AND is_active = true`,
		apiKey)

	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get project by api key: %w", err)
	}
	return p, nil
}

// Update patches name and description. Nil means unchanged.
func (s *Store) Update(ctx context.Context, id int64, name, description *string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE projects
		SET name = COALESCE($1, name),
		    description = COALESCE($2, description),
		    updated_at = NOW()
		WHERE id = $3
		RETURNING `+projectColumns,
		name, description, id)

	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*Project, error) {
	var (
		p           Project
		description sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &description, &p.APIKey, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Description = description.String
	return &p, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
