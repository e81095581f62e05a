package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/seatsync/seatsync/internal/model"
)

// MemoryDirectory serves institutions, users and venues from a Reference.
// It is read-only after construction.
type MemoryDirectory struct {
	institutions map[string]model.Institution
	users        map[string]model.User
	venues       map[string]model.Venue
}

func NewMemoryDirectory(ref Reference) *MemoryDirectory {
	d := &MemoryDirectory{
		institutions: make(map[string]model.Institution, len(ref.Institutions)),
		users:        make(map[string]model.User, len(ref.Users)),
		venues:       make(map[string]model.Venue, len(ref.Venues)),
	}
	for _, i := range ref.Institutions {
		d.institutions[i.ID] = i
	}
	for _, u := range ref.Users {
		d.users[u.ID] = u
	}
	for _, v := range ref.Venues {
		d.venues[v.ID] = v
	}
	return d
}

func (d *MemoryDirectory) Institutions(_ context.Context) ([]model.Institution, error) {
	out := make([]model.Institution, 0, len(d.institutions))
	for _, i := range d.institutions {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out, nil
}

func (d *MemoryDirectory) Institution(_ context.Context, id string) (*model.Institution, error) {
	i, ok := d.institutions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &i, nil
}

func (d *MemoryDirectory) User(_ context.Context, id string) (*model.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (d *MemoryDirectory) UserByEmail(_ context.Context, institutionID, email string) (*model.User, error) {
	for _, u := range d.users {
		if u.InstitutionID == institutionID && strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// Venues returns an institution's venues ordered by floor, then name.
func (d *MemoryDirectory) Venues(_ context.Context, institutionID string) ([]model.Venue, error) {
	var out []model.Venue
	for _, v := range d.venues {
		if v.InstitutionID == institutionID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Floor != out[b].Floor {
			return out[a].Floor < out[b].Floor
		}
		return out[a].Name < out[b].Name
	})
	return out, nil
}

func (d *MemoryDirectory) Venue(_ context.Context, id string) (*model.Venue, error) {
	v, ok := d.venues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}
