package directory

import (
	"strings"
	"time"
)

// User is a durable user identity plus its display attributes.
//
// Identity is an opaque key issued by an external identity provider and is
// immutable once created. Display attributes (Name, Email, ImageRef) may
// be refreshed on re-login. Users are never deleted by this service.
type User struct {
	Identity  string    `json:"identity"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	ImageRef  string    `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contact is the public projection of a contact edge: the contact's own
// identity plus the display snapshot captured when the edge was added.
type Contact struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageRef string `json:"imageUrl"`
}

// ContactInfo describes a contact being added. Identity may be empty when
// the contact is known only by email; the facade then synthesizes a stable
// key from the email address.
type ContactInfo struct {
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageRef string `json:"imageUrl"`
}

// Key returns the stable contact key: the contact's own identity when
// known, otherwise a key derived from the lowercased email address so that
// re-adding the same logical contact never produces a duplicate edge.
func (c ContactInfo) Key() string {
	if c.Identity != "" {
		return c.Identity
	}
	return "email:" + strings.ToLower(strings.TrimSpace(c.Email))
}

func userToRecord(u User) Record {
	return Record{
		FieldIdentity:  u.Identity,
		FieldName:      u.Name,
		FieldEmail:     u.Email,
		FieldImageRef:  u.ImageRef,
		FieldCreatedAt: u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func userFromRecord(rec Record) User {
	createdAt, _ := time.Parse(time.RFC3339Nano, rec[FieldCreatedAt])
	return User{
		Identity:  rec[FieldIdentity],
		Name:      rec[FieldName],
		Email:     rec[FieldEmail],
		ImageRef:  rec[FieldImageRef],
		CreatedAt: createdAt,
	}
}

func contactFromUser(u User) Contact {
	return Contact{
		Identity: u.Identity,
		Name:     u.Name,
		Email:    u.Email,
		ImageRef: u.ImageRef,
	}
}
