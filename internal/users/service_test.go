package users

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/steward-admin/steward/internal/rbac"
	"github.com/steward-admin/steward/internal/shared"
)

type stubUserRepo struct {
	users     map[int64]User
	hashes    map[int64]string
	roleRefs  []RoleRef
	nextID    int64
	deleteErr error
	updateErr error

	audits  []shared.AuditLog
	deleted []int64
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		users:  make(map[int64]User),
		hashes: make(map[int64]string),
		nextID: 1,
		roleRefs: []RoleRef{
			{ID: 1, Name: "Editor"},
			{ID: 2, Name: "Reviewer"},
		},
	}
}

func (s *stubUserRepo) seed(name, email string) User {
	u := User{ID: s.nextID, Name: name, Email: email, Roles: []string{}, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.users[u.ID] = u
	s.nextID++
	return u
}

func (s *stubUserRepo) List(ctx context.Context, excludeID int64) ([]ListItem, error) {
	var out []ListItem
	for _, u := range s.users {
		if u.ID == excludeID {
			continue
		}
		out = append(out, ListItem{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt})
	}
	return out, nil
}

func (s *stubUserRepo) Get(ctx context.Context, id int64) (User, error) {
	u, ok := s.users[id]
	if !ok {
		return User{}, shared.ErrNotFound
	}
	return u, nil
}

func (s *stubUserRepo) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	for _, u := range s.users {
		if u.Email == email && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubUserRepo) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	for _, u := range s.users {
		if u.Username != nil && *u.Username == username && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubUserRepo) PhoneTaken(ctx context.Context, phone string, excludeID int64) (bool, error) {
	for _, u := range s.users {
		if u.Phone != nil && *u.Phone == phone && u.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubUserRepo) RolesByName(ctx context.Context, names []string) ([]RoleRef, error) {
	want := make(map[string]struct{}, len(names))
	for _, n := range names {
		want[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	var out []RoleRef
	for _, r := range s.roleRefs {
		if _, ok := want[strings.ToLower(r.Name)]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubUserRepo) RoleNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(s.roleRefs))
	for _, r := range s.roleRefs {
		names = append(names, r.Name)
	}
	return names, nil
}

func (s *stubUserRepo) Create(ctx context.Context, in NewUser) (User, error) {
	u := User{
		ID: s.nextID, Name: in.Name, Email: in.Email,
		Username: in.Username, Phone: in.Phone,
		Roles: s.roleNamesFor(in.RoleIDs), CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	s.users[u.ID] = u
	s.hashes[u.ID] = in.PasswordHash
	s.nextID++
	return u, nil
}

func (s *stubUserRepo) Update(ctx context.Context, id int64, in UserUpdate) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	u, ok := s.users[id]
	if !ok {
		return shared.ErrNotFound
	}
	u.Name, u.Email, u.Username, u.Phone = in.Name, in.Email, in.Username, in.Phone
	if in.RoleIDs != nil {
		u.Roles = s.roleNamesFor(*in.RoleIDs)
	}
	s.users[id] = u
	return nil
}

func (s *stubUserRepo) Delete(ctx context.Context, id int64, entry shared.AuditLog) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.users[id]; !ok {
		return shared.ErrNotFound
	}
	s.audits = append(s.audits, entry)
	s.deleted = append(s.deleted, id)
	delete(s.users, id)
	return nil
}

func (s *stubUserRepo) roleNamesFor(ids []int64) []string {
	names := []string{}
	for _, id := range ids {
		for _, r := range s.roleRefs {
			if r.ID == id {
				names = append(names, r.Name)
			}
		}
	}
	return names
}

func actorContext(id int64) context.Context {
	return rbac.ContextWithActor(context.Background(), &rbac.Actor{ID: id})
}

func TestCreateUser(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewService(repo)

	user, err := svc.Create(context.Background(), CreateInput{
		Name:                 "Ada",
		Email:                "ada@example.com",
		Password:             "secret1",
		PasswordConfirmation: "secret1",
		Roles:                []string{"Editor"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, []string{"Editor"}, user.Roles)

	hash := repo.hashes[user.ID]
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "secret1", hash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret1")))
}

func TestCreateUserCollectsAllFieldErrors(t *testing.T) {
	repo := newStubUserRepo()
	repo.seed("Ada", "ada@example.com")
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		Email:                "ada@example.com",
		Password:             "short",
		PasswordConfirmation: "short",
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Name is required.", verr.Fields["name"])
	assert.Equal(t, "Email has already been taken.", verr.Fields["email"])
	assert.Equal(t, "Password must be at least 6 characters.", verr.Fields["password"])
	assert.Len(t, repo.users, 1)
}

func TestCreateUserValidatesEmailShape(t *testing.T) {
	svc := NewService(newStubUserRepo())

	_, err := svc.Create(context.Background(), CreateInput{
		Name: "Ada", Email: "not-an-email",
		Password: "secret1", PasswordConfirmation: "secret1",
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Email must be a valid email address.", verr.Fields["email"])
}

func TestCreateUserEnforcesLengthLimits(t *testing.T) {
	svc := NewService(newStubUserRepo())

	_, err := svc.Create(context.Background(), CreateInput{
		Name:     strings.Repeat("a", 61),
		Email:    strings.Repeat("b", 55) + "@mail.co",
		Password: "secret1", PasswordConfirmation: "secret1",
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Name may not be greater than 60 characters.", verr.Fields["name"])
	assert.Equal(t, "Email may not be greater than 60 characters.", verr.Fields["email"])
}

func TestCreateUserPasswordConfirmation(t *testing.T) {
	svc := NewService(newStubUserRepo())

	_, err := svc.Create(context.Background(), CreateInput{
		Name: "Ada", Email: "ada@example.com",
		Password: "secret1", PasswordConfirmation: "secret2",
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Password confirmation does not match.", verr.Fields["password"])
}

func TestCreateUserNormalizesUsername(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewService(repo)

	user, err := svc.Create(context.Background(), CreateInput{
		Name: "Ada", Email: "ada@example.com", Username: "AdaLovelace",
		Password: "secret1", PasswordConfirmation: "secret1",
	})
	require.NoError(t, err)
	require.NotNil(t, user.Username)
	assert.Equal(t, "adalovelace", *user.Username)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	repo := newStubUserRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		Name: "Ada", Email: "ada@example.com",
		Password: "secret1", PasswordConfirmation: "secret1",
		Roles: []string{"Ghost"},
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Role 'Ghost' does not exist.", verr.Fields["roles"])
	assert.Empty(t, repo.users)
}

func TestUpdateUserAllowsOwnEmail(t *testing.T) {
	repo := newStubUserRepo()
	user := repo.seed("Ada", "ada@example.com")
	svc := NewService(repo)

	updated, err := svc.Update(context.Background(), user.ID, UpdateInput{
		Name:  "Ada L",
		Email: "ada@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada L", updated.Name)
}

func TestUpdateUserRejectsForeignEmail(t *testing.T) {
	repo := newStubUserRepo()
	repo.seed("Ada", "ada@example.com")
	other := repo.seed("Bob", "bob@example.com")
	svc := NewService(repo)

	_, err := svc.Update(context.Background(), other.ID, UpdateInput{
		Name: "Bob", Email: "ada@example.com",
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Email has already been taken.", verr.Fields["email"])
}

func TestUpdateUserReplacesRolesWholesale(t *testing.T) {
	repo := newStubUserRepo()
	user := repo.seed("Ada", "ada@example.com")
	svc := NewService(repo)

	roles := []string{"Reviewer"}
	updated, err := svc.Update(context.Background(), user.ID, UpdateInput{
		Name: "Ada", Email: "ada@example.com", Roles: &roles,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Reviewer"}, updated.Roles)

	empty := []string{}
	updated, err = svc.Update(context.Background(), user.ID, UpdateInput{
		Name: "Ada", Email: "ada@example.com", Roles: &empty,
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Roles)
}

func TestUpdateUserNotFound(t *testing.T) {
	svc := NewService(newStubUserRepo())

	_, err := svc.Update(context.Background(), 99, UpdateInput{Name: "Ada", Email: "ada@example.com"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteUserWritesAuditEntry(t *testing.T) {
	repo := newStubUserRepo()
	user := repo.seed("Ada", "ada@example.com")
	svc := NewService(repo)

	require.NoError(t, svc.Delete(actorContext(7), user.ID))
	require.Len(t, repo.audits, 1)

	entry := repo.audits[0]
	assert.Equal(t, "7", entry.Actor)
	assert.Equal(t, "user.deleted", entry.Action)
	assert.Equal(t, "user", entry.Entity)
	assert.Equal(t, "ada@example.com", entry.Meta["user_email"])
}

func TestDeleteUserWithoutActorRecordsSystem(t *testing.T) {
	repo := newStubUserRepo()
	user := repo.seed("Ada", "ada@example.com")
	svc := NewService(repo)

	require.NoError(t, svc.Delete(context.Background(), user.ID))
	require.Len(t, repo.audits, 1)
	assert.Equal(t, shared.AuditActorSystem, repo.audits[0].Actor)
}

func TestDeleteUserRefusesSelf(t *testing.T) {
	repo := newStubUserRepo()
	user := repo.seed("Ada", "ada@example.com")
	svc := NewService(repo)

	err := svc.Delete(actorContext(user.ID), user.ID)
	assert.ErrorIs(t, err, shared.ErrForbidden)
	assert.Empty(t, repo.deleted)
}

func TestListExcludesActor(t *testing.T) {
	repo := newStubUserRepo()
	me := repo.seed("Me", "me@example.com")
	repo.seed("Ada", "ada@example.com")
	svc := NewService(repo)

	items, err := svc.List(actorContext(me.ID))
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Ada", items[0].Name)
}
