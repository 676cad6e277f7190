package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholarly_library/internal/feature/auth/domain/entity"
	"scholarly_library/internal/feature/auth/usecase"
	jwtmw "scholarly_library/internal/platform/jwt"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// mockAuthUsecase is a mock implementation of the AuthUsecase interface.
type mockAuthUsecase struct {
	RegisterFunc      func(ctx context.Context, name, email, password string) (*entity.User, string, error)
	LoginFunc         func(ctx context.Context, email, password string) (*entity.User, string, error)
	LogoutFunc        func(ctx context.Context, token string) error
	ProfileFunc       func(ctx context.Context, userID uint) (*entity.User, error)
	UpdateProfileFunc func(ctx context.Context, userID uint, name, email *string) (*entity.User, error)
	ListUsersFunc     func(ctx context.Context) ([]entity.User, error)
}

func (m *mockAuthUsecase) Register(ctx context.Context, name, email, password string) (*entity.User, string, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, name, email, password)
	}
	return nil, "", errors.New("RegisterFunc is not implemented")
}

func (m *mockAuthUsecase) Login(ctx context.Context, email, password string) (*entity.User, string, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, email, password)
	}
	return nil, "", errors.New("LoginFunc is not implemented")
}

func (m *mockAuthUsecase) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return errors.New("LogoutFunc is not implemented")
}

func (m *mockAuthUsecase) Profile(ctx context.Context, userID uint) (*entity.User, error) {
	if m.ProfileFunc != nil {
		return m.ProfileFunc(ctx, userID)
	}
	return nil, errors.New("ProfileFunc is not implemented")
}

func (m *mockAuthUsecase) UpdateProfile(ctx context.Context, userID uint, name, email *string) (*entity.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, name, email)
	}
	return nil, errors.New("UpdateProfileFunc is not implemented")
}

func (m *mockAuthUsecase) ListUsers(ctx context.Context) ([]entity.User, error) {
	if m.ListUsersFunc != nil {
		return m.ListUsersFunc(ctx)
	}
	return nil, errors.New("ListUsersFunc is not implemented")
}

var testUser = &entity.User{
	ID:        5,
	Name:      "Ada",
	Email:     "ada@example.com",
	Password:  "$2a$10$hash",
	Role:      entity.RoleUser,
	CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
}

// withUser simulates AuthRequired having run.
func withUser(id uint, token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(jwtmw.ContextUserID, id)
		c.Set(jwtmw.ContextRole, entity.RoleUser)
		c.Set(jwtmw.ContextToken, token)
		c.Next()
	}
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHandler_Register(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    gin.H
		registerFunc   func(ctx context.Context, name, email, password string) (*entity.User, string, error)
		expectedStatus int
		expectedError  string
	}{
		{
			name:        "success: user registration",
			requestBody: gin.H{"name": "Ada", "email": "ada@example.com", "password": "password123"},
			registerFunc: func(ctx context.Context, name, email, password string) (*entity.User, string, error) {
				return testUser, "signed-token", nil
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "failure: missing name",
			requestBody:    gin.H{"email": "ada@example.com", "password": "password123"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Name, email and a valid password are required",
		},
		{
			name:           "failure: invalid email address",
			requestBody:    gin.H{"name": "Ada", "email": "invalid-email", "password": "password123"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Name, email and a valid password are required",
		},
		{
			name:        "failure: short password",
			requestBody: gin.H{"name": "Ada", "email": "ada@example.com", "password": "short"},
			registerFunc: func(ctx context.Context, name, email, password string) (*entity.User, string, error) {
				return nil, "", usecase.ErrWeakPassword
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Password must be at least 8 characters",
		},
		{
			name:        "failure: password too long",
			requestBody: gin.H{"name": "Ada", "email": "ada@example.com", "password": "password123"},
			registerFunc: func(ctx context.Context, name, email, password string) (*entity.User, string, error) {
				return nil, "", fmt.Errorf("%w: password must be at most 72 bytes", usecase.ErrInvalidInput)
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid input: password must be at most 72 bytes",
		},
		{
			name:        "failure: duplicate email",
			requestBody: gin.H{"name": "Ada", "email": "ada@example.com", "password": "password123"},
			registerFunc: func(ctx context.Context, name, email, password string) (*entity.User, string, error) {
				return nil, "", usecase.ErrEmailAlreadyExists
			},
			expectedStatus: http.StatusConflict,
			expectedError:  "User already exists",
		},
		{
			name:        "failure: unexpected error is hidden",
			requestBody: gin.H{"name": "Ada", "email": "ada@example.com", "password": "password123"},
			registerFunc: func(ctx context.Context, name, email, password string) (*entity.User, string, error) {
				return nil, "", errors.New("disk on fire")
			},
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthUsecase{RegisterFunc: tt.registerFunc})
			r := gin.New()
			r.POST("/users/register", h.Register)

			w := doJSON(r, http.MethodPost, "/users/register", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedError != "" {
				assert.JSONEq(t, `{"error":"`+tt.expectedError+`"}`, w.Body.String())
				return
			}

			var res map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
			assert.Equal(t, "signed-token", res["token"])
			user := res["user"].(map[string]any)
			assert.Equal(t, "ada@example.com", user["email"])
			assert.NotContains(t, user, "password", "password hash must never be serialized")
		})
	}
}

func TestAuthHandler_Login(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    gin.H
		loginFunc      func(ctx context.Context, email, password string) (*entity.User, string, error)
		expectedStatus int
		expectedError  string
	}{
		{
			name:        "success",
			requestBody: gin.H{"email": "ada@example.com", "password": "password123"},
			loginFunc: func(ctx context.Context, email, password string) (*entity.User, string, error) {
				return testUser, "signed-token", nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "failure: missing password",
			requestBody:    gin.H{"email": "ada@example.com"},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "Email and password are required",
		},
		{
			name:        "failure: invalid credentials",
			requestBody: gin.H{"email": "ada@example.com", "password": "wrong"},
			loginFunc: func(ctx context.Context, email, password string) (*entity.User, string, error) {
				return nil, "", usecase.ErrInvalidCredentials
			},
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "Invalid credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthUsecase{LoginFunc: tt.loginFunc})
			r := gin.New()
			r.POST("/users/login", h.Login)

			w := doJSON(r, http.MethodPost, "/users/login", tt.requestBody)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedError != "" {
				assert.JSONEq(t, `{"error":"`+tt.expectedError+`"}`, w.Body.String())
			} else {
				assert.Contains(t, w.Body.String(), `"token":"signed-token"`)
			}
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	var revoked string
	h := NewAuthHandler(&mockAuthUsecase{LogoutFunc: func(ctx context.Context, token string) error {
		revoked = token
		return nil
	}})
	r := gin.New()
	r.POST("/users/logout", withUser(5, "raw-token"), h.Logout)

	w := doJSON(r, http.MethodPost, "/users/logout", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, w.Body.String())
	assert.Equal(t, "raw-token", revoked)
}

func TestAuthHandler_Profile(t *testing.T) {
	t.Run("returns current user", func(t *testing.T) {
		h := NewAuthHandler(&mockAuthUsecase{ProfileFunc: func(ctx context.Context, userID uint) (*entity.User, error) {
			assert.Equal(t, uint(5), userID)
			return testUser, nil
		}})
		r := gin.New()
		r.GET("/users/profile", withUser(5, "t"), h.Profile)

		w := doJSON(r, http.MethodGet, "/users/profile", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":5,"name":"Ada","email":"ada@example.com","role":"user","createdAt":"2024-01-01T00:00:00Z"}`, w.Body.String())
	})

	t.Run("no user in context", func(t *testing.T) {
		h := NewAuthHandler(&mockAuthUsecase{})
		r := gin.New()
		r.GET("/users/profile", h.Profile)

		w := doJSON(r, http.MethodGet, "/users/profile", nil)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_UpdateProfile(t *testing.T) {
	tests := []struct {
		name           string
		body           gin.H
		updateFunc     func(ctx context.Context, userID uint, name, email *string) (*entity.User, error)
		expectedStatus int
	}{
		{
			name: "success",
			body: gin.H{"name": "Ada L."},
			updateFunc: func(ctx context.Context, userID uint, name, email *string) (*entity.User, error) {
				require.NotNil(t, name)
				assert.Nil(t, email)
				u := *testUser
				u.Name = *name
				return &u, nil
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "invalid email",
			body:           gin.H{"email": "nope"},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "email conflict",
			body: gin.H{"email": "taken@example.com"},
			updateFunc: func(ctx context.Context, userID uint, name, email *string) (*entity.User, error) {
				return nil, usecase.ErrEmailAlreadyExists
			},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(&mockAuthUsecase{UpdateProfileFunc: tt.updateFunc})
			r := gin.New()
			r.PUT("/users/profile", withUser(5, "t"), h.UpdateProfile)

			w := doJSON(r, http.MethodPut, "/users/profile", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestAuthHandler_ListUsers(t *testing.T) {
	h := NewAuthHandler(&mockAuthUsecase{ListUsersFunc: func(ctx context.Context) ([]entity.User, error) {
		return []entity.User{*testUser, {ID: 6, Name: "Bo", Email: "bo@example.com", Role: entity.RoleAdmin}}, nil
	}})
	r := gin.New()
	r.GET("/admin/users", h.ListUsers)

	w := doJSON(r, http.MethodGet, "/admin/users", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var users []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "admin", users[1]["role"])
	assert.NotContains(t, w.Body.String(), "$2a$")
}
