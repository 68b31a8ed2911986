package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/squawkhq/squawk/internal/logger"
)

// Service is the directory facade: the handful of composite operations the
// outward API needs, composed from a Store.
//
// All operations are idempotent and self-healing: creating a placeholder
// user and appending a contact edge are two independent writes with no
// transaction between them, so a crash in between leaves an orphan that
// the next retry repairs.
//
// The relay never calls the Service; the directory and the relay are
// failure-isolated by construction.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a Service over the given store.
func NewService(store Store) *Service {
	if store == nil {
		panic("directory store cannot be nil")
	}
	return &Service{store: store, now: time.Now}
}

// EnsureUser looks up a user by identity, creating the row on first sight
// and refreshing changed display attributes on subsequent calls. Repeated
// calls with identical input are no-ops beyond the lookup cost.
func (s *Service) EnsureUser(ctx context.Context, identity, name, email, imageRef string) (*User, error) {
	if identity == "" {
		return nil, InvalidArgument("user identity is required")
	}

	criteria := Record{FieldIdentity: identity}
	rec, err := s.store.Find(ctx, TableUsers, criteria)
	if IsNotFound(err) {
		user := User{
			Identity:  identity,
			Name:      name,
			Email:     email,
			ImageRef:  imageRef,
			CreatedAt: s.now().UTC(),
		}
		if err := s.store.Append(ctx, TableUsers, userToRecord(user)); err != nil {
			return nil, fmt.Errorf("create user %q: %w", identity, err)
		}
		logger.Debug("directory: created user %q", identity)
		return &user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup user %q: %w", identity, err)
	}

	user := userFromRecord(rec)

	// Refresh mutable display fields that actually changed. Empty inputs
	// never clobber stored attributes (a placeholder re-login may carry
	// partial profile data).
	patch := Record{}
	if name != "" && name != user.Name {
		patch[FieldName] = name
		user.Name = name
	}
	if email != "" && email != user.Email {
		patch[FieldEmail] = email
		user.Email = email
	}
	if imageRef != "" && imageRef != user.ImageRef {
		patch[FieldImageRef] = imageRef
		user.ImageRef = imageRef
	}
	if len(patch) > 0 {
		updated, err := s.store.Update(ctx, TableUsers, criteria, patch)
		if err != nil {
			return nil, fmt.Errorf("refresh user %q: %w", identity, err)
		}
		if !updated {
			// The row vanished between Find and Update. Deletion is an
			// administrative concern; surface the stale read instead of
			// recreating the row here.
			logger.Warn("directory: user %q disappeared during refresh", identity)
		}
	}

	return &user, nil
}

// GetUser returns the user for identity, or a not-found StoreError.
func (s *Service) GetUser(ctx context.Context, identity string) (*User, error) {
	if identity == "" {
		return nil, InvalidArgument("user identity is required")
	}
	rec, err := s.store.Find(ctx, TableUsers, Record{FieldIdentity: identity})
	if err != nil {
		return nil, err
	}
	user := userFromRecord(rec)
	return &user, nil
}

// AddContact adds a directed contact edge from ownerID to the described
// contact, creating a placeholder user for the contact when it is unknown.
// Re-adding the same logical contact never produces a duplicate edge; the
// resulting contact projection is returned either way.
func (s *Service) AddContact(ctx context.Context, ownerID string, info ContactInfo) (*Contact, error) {
	if ownerID == "" {
		return nil, InvalidArgument("owner identity is required")
	}
	if info.Identity == "" && info.Email == "" {
		return nil, InvalidArgument("contact requires an identity or an email")
	}

	contactID := info.Key()

	// Ensure the contact user exists (placeholder when known only by
	// email) and pick up its current display attributes.
	contactUser, err := s.EnsureUser(ctx, contactID, info.Name, info.Email, info.ImageRef)
	if err != nil {
		return nil, fmt.Errorf("ensure contact user: %w", err)
	}

	edgeCriteria := Record{
		FieldOwnerID:   ownerID,
		FieldContactID: contactID,
	}
	_, err = s.store.Find(ctx, TableContacts, edgeCriteria)
	switch {
	case IsNotFound(err):
		edge := Record{
			FieldOwnerID:         ownerID,
			FieldContactID:       contactID,
			FieldContactName:     contactUser.Name,
			FieldContactImageRef: contactUser.ImageRef,
			FieldCreatedAt:       s.now().UTC().Format(time.RFC3339Nano),
		}
		if err := s.store.Append(ctx, TableContacts, edge); err != nil {
			return nil, fmt.Errorf("append contact edge %q -> %q: %w", ownerID, contactID, err)
		}
		logger.Debug("directory: added contact %q -> %q", ownerID, contactID)
	case err != nil:
		return nil, fmt.Errorf("lookup contact edge %q -> %q: %w", ownerID, contactID, err)
	}

	contact := contactFromUser(*contactUser)
	return &contact, nil
}

// ListContacts returns every contact edge owned by ownerID, projected to
// public fields, in the order the edges were added.
//
// The edge rows carry the add-time display snapshot but not the contact's
// email, so the user table is scanned once to join emails (and any
// refreshed display attributes) into the projections.
func (s *Service) ListContacts(ctx context.Context, ownerID string) ([]Contact, error) {
	if ownerID == "" {
		return nil, InvalidArgument("owner identity is required")
	}

	edges, err := s.store.FindAll(ctx, TableContacts, Record{FieldOwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("list contacts for %q: %w", ownerID, err)
	}
	if len(edges) == 0 {
		return []Contact{}, nil
	}

	users, err := s.store.GetAll(ctx, TableUsers)
	if err != nil {
		return nil, fmt.Errorf("load users for contact join: %w", err)
	}
	byIdentity := make(map[string]Record, len(users))
	for _, rec := range users {
		byIdentity[rec[FieldIdentity]] = rec
	}

	contacts := make([]Contact, 0, len(edges))
	for _, edge := range edges {
		contact := Contact{
			Identity: edge[FieldContactID],
			Name:     edge[FieldContactName],
			ImageRef: edge[FieldContactImageRef],
		}
		if user, ok := byIdentity[contact.Identity]; ok {
			contact.Email = user[FieldEmail]
			if user[FieldName] != "" {
				contact.Name = user[FieldName]
			}
			if user[FieldImageRef] != "" {
				contact.ImageRef = user[FieldImageRef]
			}
		}
		contacts = append(contacts, contact)
	}
	return contacts, nil
}

// Healthcheck reports whether the backing store is reachable. The caller
// bounds the probe with its context deadline.
func (s *Service) Healthcheck(ctx context.Context) error {
	return s.store.Healthcheck(ctx)
}
