package connection

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DuplicateKey carries the composite identity used to detect re-imported
// connections: a row is a duplicate when its non-empty profile URL matches an
// existing row, or when first name, last name and company (null included)
// all match.
type DuplicateKey struct {
	FirstName  string
	LastName   string
	Company    *string
	ProfileURL *string
}

// Update carries the mutable fields for a partial connection update.
// Nil fields are left unchanged.
type Update struct {
	Latitude  *float64
	Longitude *float64
	City      *string
	Country   *string
	Tags      *string
	Notes     *string
}

// Repository defines the interface for connection data operations.
type Repository interface {
	// Create stores a new connection with a generated ID.
	Create(ctx context.Context, c *Connection) error

	// GetByID retrieves a connection by ID. Returns ErrConnectionNotFound if absent.
	GetByID(ctx context.Context, id string) (*Connection, error)

	// ListByUser retrieves all connections owned by a user, newest first.
	ListByUser(ctx context.Context, userID string) ([]*Connection, error)

	// FindDuplicate returns an existing connection for the user matching the
	// duplicate-identity rule, or nil when none matches.
	FindDuplicate(ctx context.Context, userID string, key DuplicateKey) (*Connection, error)

	// Patch applies an owner-scoped partial update and returns the updated row.
	Patch(ctx context.Context, id, userID string, upd Update) (*Connection, error)

	// Delete removes a connection, scoped to the owning user.
	Delete(ctx context.Context, id, userID string) error

	// ListPendingGeocode selects up to limit connections (any user) that have
	// a non-null company and no coordinates yet.
	ListPendingGeocode(ctx context.Context, limit int) ([]*Connection, error)

	// SetResolvedLocation writes resolved coordinates and place names onto a
	// connection. Used by the geocode batch resolver.
	SetResolvedLocation(ctx context.Context, id string, lat, lng float64, city, country *string) error

	// CountByUser returns the total number of connections for a user and how
	// many of them still await geocoding (company set, coordinates null).
	CountByUser(ctx context.Context, userID string) (total, pending int, err error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex. Used for testing and development.
type InMemoryRepository struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	order       []string
}

// NewInMemoryRepository creates a new in-memory connection repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		connections: make(map[string]*Connection),
	}
}

// Create stores a new connection with a generated ID.
func (r *InMemoryRepository) Create(_ context.Context, c *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := c.ValidateCoordinates(); err != nil {
		return err
	}

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	connCopy := *c
	r.connections[c.ID] = &connCopy
	r.order = append(r.order, c.ID)
	return nil
}

// GetByID retrieves a connection by ID.
func (r *InMemoryRepository) GetByID(_ context.Context, id string) (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.connections[id]
	if !ok {
		return nil, ErrConnectionNotFound
	}
	connCopy := *c
	return &connCopy, nil
}

// ListByUser retrieves all connections owned by a user, newest first.
func (r *InMemoryRepository) ListByUser(_ context.Context, userID string) ([]*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Connection
	for _, id := range r.order {
		c := r.connections[id]
		if c.UserID != userID {
			continue
		}
		connCopy := *c
		out = append(out, &connCopy)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// FindDuplicate returns an existing connection matching the duplicate rule.
func (r *InMemoryRepository) FindDuplicate(_ context.Context, userID string, key DuplicateKey) (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		c := r.connections[id]
		if c.UserID != userID {
			continue
		}
		if matchesDuplicate(c, key) {
			connCopy := *c
			return &connCopy, nil
		}
	}
	return nil, nil
}

// matchesDuplicate applies the composite identity rule for one candidate.
func matchesDuplicate(c *Connection, key DuplicateKey) bool {
	if key.ProfileURL != nil && *key.ProfileURL != "" &&
		c.ProfileURL != nil && *c.ProfileURL == *key.ProfileURL {
		return true
	}
	if c.FirstName != key.FirstName || c.LastName != key.LastName {
		return false
	}
	// Company comparison treats null as a value: null matches only null.
	if (c.Company == nil) != (key.Company == nil) {
		return false
	}
	return c.Company == nil || *c.Company == *key.Company
}

// Patch applies an owner-scoped partial update.
func (r *InMemoryRepository) Patch(_ context.Context, id, userID string, upd Update) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.connections[id]
	if !ok || c.UserID != userID {
		return nil, ErrConnectionNotFound
	}

	if upd.Latitude != nil {
		c.Latitude = upd.Latitude
	}
	if upd.Longitude != nil {
		c.Longitude = upd.Longitude
	}
	if upd.City != nil {
		c.City = upd.City
	}
	if upd.Country != nil {
		c.Country = upd.Country
	}
	if upd.Tags != nil {
		c.Tags = upd.Tags
	}
	if upd.Notes != nil {
		c.Notes = upd.Notes
	}
	if err := c.ValidateCoordinates(); err != nil {
		return nil, err
	}
	c.UpdatedAt = time.Now().UTC()

	connCopy := *c
	return &connCopy, nil
}

// Delete removes a connection, scoped to the owning user.
func (r *InMemoryRepository) Delete(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.connections[id]
	if !ok || c.UserID != userID {
		return ErrConnectionNotFound
	}
	delete(r.connections, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListPendingGeocode selects up to limit connections awaiting geocoding.
func (r *InMemoryRepository) ListPendingGeocode(_ context.Context, limit int) ([]*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Connection
	for _, id := range r.order {
		if len(out) >= limit {
			break
		}
		c := r.connections[id]
		if c.Company != nil && c.Latitude == nil {
			connCopy := *c
			out = append(out, &connCopy)
		}
	}
	return out, nil
}

// SetResolvedLocation writes resolved coordinates onto a connection.
func (r *InMemoryRepository) SetResolvedLocation(_ context.Context, id string, lat, lng float64, city, country *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.connections[id]
	if !ok {
		return ErrConnectionNotFound
	}
	c.Latitude = &lat
	c.Longitude = &lng
	c.City = city
	c.Country = country
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// CountByUser returns total and geocode-pending counts for a user.
func (r *InMemoryRepository) CountByUser(_ context.Context, userID string) (int, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total, pending int
	for _, c := range r.connections {
		if c.UserID != userID {
			continue
		}
		total++
		if c.Company != nil && c.Latitude == nil {
			pending++
		}
	}
	return total, pending, nil
}
