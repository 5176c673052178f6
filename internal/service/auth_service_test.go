package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/outfit-wizard-api/internal/models"
	appErrors "github.com/noah-isme/outfit-wizard-api/pkg/errors"
)

type mockAuthRepo struct {
	users     map[string]*models.User
	nextID    int64
	createErr error
	findErr   error
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{users: map[string]*models.User{}, nextID: 1}
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.users[user.Email]; ok {
		return appErrors.Clone(appErrors.ErrAlreadyExists, "duplicate")
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.Email] = user
	return nil
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	user, ok := m.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Exists(ctx context.Context, email string) (bool, error) {
	if m.findErr != nil {
		return false, m.findErr
	}
	_, ok := m.users[email]
	return ok, nil
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "outfit-wizard",
	})
}

func TestValidGmail(t *testing.T) {
	assert.True(t, ValidGmail("jane.doe@gmail.com"))
	assert.False(t, ValidGmail("1jane@gmail.com"))
	assert.False(t, ValidGmail("jane@yahoo.com"))
	assert.False(t, ValidGmail("jane@gmail.com.au"))
}

func TestStrongPassword(t *testing.T) {
	cases := map[string]bool{
		"Ab1@x":             true,
		"Abcdef12345!":      true,
		"Ab1@":              false,
		"Abcdefgh12345678!": false,
		"abc1@x":            false,
		"ABC1@X":            false,
		"Abcd@x":            false,
		"Abcd12":            false,
		"Abc1-x":            false,
	}
	for pw, want := range cases {
		assert.Equal(t, want, StrongPassword(pw), pw)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{Email: "jane@gmail.com", Password: "Secr3t!"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, info.Role)

	stored := repo.users["jane@gmail.com"]
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Secr3t!")))

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "jane@gmail.com", Password: "Secr3t!"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, info.ID, claims.UserID)
	assert.Equal(t, "jane@gmail.com", claims.UserContext().Email)
}

func TestRegisterRejectsWeakInput(t *testing.T) {
	svc := newAuthService(newMockAuthRepo())

	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "jane@yahoo.com", Password: "Secr3t!"})
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))

	_, err = svc.Register(context.Background(), models.RegisterRequest{Email: "jane@gmail.com", Password: "secret"})
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrValidation))
}

func TestRegisterDuplicate(t *testing.T) {
	svc := newAuthService(newMockAuthRepo())
	req := models.RegisterRequest{Email: "jane@gmail.com", Password: "Secr3t!"}

	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrAlreadyExists))
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newAuthService(repo)
	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "jane@gmail.com", Password: "Secr3t!"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "jane@gmail.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrInvalidCredentials))

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@gmail.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrInvalidCredentials))
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc := newAuthService(newMockAuthRepo())

	claims := &models.JWTClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	require.Error(t, err)
	assert.True(t, appErrors.IsKind(err, appErrors.ErrUnauthorized))
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := newAuthService(newMockAuthRepo())

	claims := &models.JWTClaims{
		UserID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	require.Error(t, err)
}
