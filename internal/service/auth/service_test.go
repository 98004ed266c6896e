package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"schoolmail/internal/model"
	"schoolmail/pkg/util"
)

type fakeUserStore struct {
	users  map[string]*model.User
	nextID int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*model.User), nextID: 1}
}

func (s *fakeUserStore) Create(_ context.Context, email, passwordHash string) (int, error) {
	id := s.nextID
	s.nextID++
	s.users[email] = &model.User{ID: id, Email: email, PasswordHash: passwordHash}
	return id, nil
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (*model.User, error) {
	return s.users[email], nil
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	svc := NewService(store, "test-secret", zap.NewNop())

	id, err := svc.Register(context.Background(), " Parent@Example.com ", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	// email normalized, password stored hashed
	user := store.users["parent@example.com"]
	require.NotNil(t, user)
	assert.NotEqual(t, "hunter22", user.PasswordHash)

	token, err := svc.Login(context.Background(), "parent@example.com", "hunter22")
	require.NoError(t, err)

	gotID, err := util.ParseJWT(token, "test-secret")
	require.NoError(t, err)
	assert.Equal(t, 1, gotID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	svc := NewService(store, "test-secret", zap.NewNop())

	_, err := svc.Register(context.Background(), "parent@example.com", "pw")
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), "PARENT@example.com", "pw")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	t.Parallel()

	store := newFakeUserStore()
	svc := NewService(store, "test-secret", zap.NewNop())

	_, err := svc.Register(context.Background(), "parent@example.com", "correct")
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), "parent@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
