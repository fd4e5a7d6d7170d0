package services_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"myshop/internal/models"
	"myshop/internal/repositories"
	"myshop/internal/services"

	"github.com/dgrijalva/jwt-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// MockUserRepository is a mock implementation of repositories.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}

const testJWTSecret = "test_jwt_secret"

func newAuthService(repo repositories.UserRepository) *services.AuthService {
	return services.NewAuthService(repo, testJWTSecret, time.Hour, zerolog.Nop())
}

func TestAuthService_RegisterUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	email := "test@example.com"
	user := &models.User{Username: "testuser", Email: &email, Password: "password123"}

	mockRepo.On("GetByUsername", ctx, "testuser").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByEmail", ctx, email).Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool {
		return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("password123")) == nil
	})).Return(nil).Once()

	require.NoError(t, authService.RegisterUser(ctx, user))
	mockRepo.AssertExpectations(t)

	// username already taken
	mockRepo.On("GetByUsername", ctx, "testuser").Return(&models.User{ID: "1"}, nil).Once()
	err := authService.RegisterUser(ctx, &models.User{Username: "testuser", Password: "x"})
	assert.ErrorIs(t, err, services.ErrUserExists)
	assert.Contains(t, err.Error(), "username 'testuser' already taken")

	// email already registered
	mockRepo.On("GetByUsername", ctx, "other").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("GetByEmail", ctx, email).Return(&models.User{ID: "1"}, nil).Once()
	err = authService.RegisterUser(ctx, &models.User{Username: "other", Email: &email, Password: "x"})
	assert.ErrorIs(t, err, services.ErrUserExists)
	assert.Contains(t, err.Error(), "email 'test@example.com' already registered")
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterUserWithoutEmail(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	blank := "  "
	mockRepo.On("GetByUsername", ctx, "noemail").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", ctx, mock.MatchedBy(func(u *models.User) bool { return u.Email == nil })).Return(nil).Once()

	require.NoError(t, authService.RegisterUser(ctx, &models.User{Username: "noemail", Email: &blank, Password: "pw"}))
	mockRepo.AssertNotCalled(t, "GetByEmail", mock.Anything, mock.Anything)
	mockRepo.AssertExpectations(t)
}

func TestAuthService_RegisterUserRace(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	mockRepo.On("GetByUsername", ctx, "racer").Return(nil, repositories.ErrNotFound).Once()
	mockRepo.On("Create", ctx, mock.Anything).Return(fmt.Errorf("user racer: %w", repositories.ErrDuplicateUser)).Once()

	err := authService.RegisterUser(ctx, &models.User{Username: "racer", Password: "pw"})
	assert.ErrorIs(t, err, services.ErrUserExists)
}

func TestAuthService_LoginUser(t *testing.T) {
	ctx := context.Background()
	mockRepo := new(MockUserRepository)
	authService := newAuthService(mockRepo)

	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	user := &models.User{ID: "user-123", Username: "testuser", Password: string(hashedPassword)}

	mockRepo.On("GetByUsername", ctx, user.Username).Return(user, nil).Once()
	token, err := authService.LoginUser(ctx, "testuser", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	assert.True(t, ok)
	assert.Equal(t, user.ID, claims["user_id"])
	assert.Equal(t, user.Username, claims["username"])

	// wrong password
	mockRepo.On("GetByUsername", ctx, user.Username).Return(user, nil).Once()
	_, err = authService.LoginUser(ctx, "testuser", "wrongpassword")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	// unknown user gets the same answer
	mockRepo.On("GetByUsername", ctx, "nonexistentuser").Return(nil, repositories.ErrNotFound).Once()
	_, err = authService.LoginUser(ctx, "nonexistentuser", "password123")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	mockRepo.AssertExpectations(t)
}

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestAuthService_ValidateToken(t *testing.T) {
	authService := newAuthService(new(MockUserRepository))

	valid := signed(t, testJWTSecret, jwt.MapClaims{
		"user_id":  "user-123",
		"username": "testuser",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})
	claims, err := authService.ValidateToken(valid)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims["user_id"])

	_, err = authService.ValidateToken("invalid.token.string")
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	expired := signed(t, testJWTSecret, jwt.MapClaims{
		"user_id": "user-123",
		"exp":     time.Now().Add(-time.Hour).Unix(),
	})
	_, err = authService.ValidateToken(expired)
	assert.ErrorIs(t, err, services.ErrInvalidToken)

	foreign := signed(t, "someone-elses-secret", jwt.MapClaims{"user_id": "user-123"})
	_, err = authService.ValidateToken(foreign)
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}

func TestAuthService_Identify(t *testing.T) {
	authService := newAuthService(new(MockUserRepository))

	identity, err := authService.Identify(context.Background(), signed(t, testJWTSecret, jwt.MapClaims{
		"user_id":  "user-123",
		"username": "testuser",
	}))
	require.NoError(t, err)
	assert.Equal(t, "user-123", identity.UserID)
	assert.Equal(t, "testuser", identity.Username)

	_, err = authService.Identify(context.Background(), signed(t, testJWTSecret, jwt.MapClaims{"username": "x"}))
	assert.ErrorIs(t, err, services.ErrInvalidToken)
}
