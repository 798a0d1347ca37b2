package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"example.com/roomchat/pkg/auth"
	"example.com/roomchat/pkg/user"
)

const (
	AuthCookieName = "auth_token"
)

type UserHandler struct {
	userStore user.UserStore
	auth      auth.Auth
}

func NewUserHandler(userStore user.UserStore, auth auth.Auth) *UserHandler {
	return &UserHandler{userStore: userStore, auth: auth}
}

type SignupPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type SigninPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SigninResponse struct {
	Token    string    `json:"token"`
	ExpireAt time.Time `json:"expireAt"`
}

type UserResponse struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

func (h *UserHandler) SignupHandler(w http.ResponseWriter, r *http.Request) error {
	var payload SignupPayload

	if err := DecodeJson(r.Body, &payload); err != nil {
		return NewApiError("invalid json", http.StatusBadRequest)
	}
	defer r.Body.Close()

	input := user.User{
		Username: payload.Username,
		Password: payload.Password,
		Name:     payload.Name,
	}

	if err := h.userStore.CreateUser(r.Context(), input); err != nil {
		if errors.Is(err, user.ErrConflictedUser) {
			return NewApiError(err.Error(), http.StatusConflict)
		}
		return err
	}

	w.WriteHeader(http.StatusCreated)

	return nil
}

func (h *UserHandler) SigninHandler(w http.ResponseWriter, r *http.Request) error {
	var payload SigninPayload
	if err := DecodeJson(r.Body, &payload); err != nil {
		return NewApiError("invalid json", http.StatusBadRequest)
	}
	defer r.Body.Close()

	token, exp, err := h.auth.NewSession(r.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			return NewApiError(err.Error(), http.StatusUnauthorized)
		}
		return err
	}

	cookie := http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Expires:  exp,
		HttpOnly: true,
		Path:     "/",
	}

	http.SetCookie(w, &cookie)

	return WriteJsonResponse(w, SigninResponse{Token: token, ExpireAt: exp})
}

func (h *UserHandler) MeHandler(w http.ResponseWriter, r *http.Request) error {
	session := sessionFromRequest(r)
	u, err := h.userStore.GetUserByUsername(r.Context(), session.Username)
	if err != nil {
		return fmt.Errorf("get user by username: %w", err)
	}

	if u == nil {
		return NewApiError("unauthenticated", http.StatusUnauthorized)
	}

	return WriteJsonResponse(w, UserResponse{Username: u.Username, Name: u.Name})
}

// sessionFromRequest extracts the session from the request context.
// It must be called in handlers protected by JWTMiddleware; it panics when
// the session is missing.
func sessionFromRequest(r *http.Request) auth.Session {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		panic("session not found in request context: handler must be behind JWTMiddleware")
	}
	return session
}

// tokenFromRequest looks for the session token in the auth cookie, then the
// "token" query parameter. The query parameter exists for websocket clients
// that cannot set cookies.
func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(AuthCookieName); err == nil && cookie.Valid() == nil {
		return cookie.Value
	}
	return r.URL.Query().Get("token")
}

// JWTMiddleware validates the request's session token and attaches the
// session to the request context for subsequent handlers.
func JWTMiddleware(_auth auth.Auth) ApiMiddleware {
	return func(next http.Handler) ApiHandleFunc {
		authErr := NewApiError("Unauthenticated", http.StatusUnauthorized)

		return ApiHandleFunc(func(w http.ResponseWriter, r *http.Request) error {
			ctx := r.Context()

			token := tokenFromRequest(r)
			if token == "" {
				return authErr
			}

			session, err := _auth.Session(ctx, token)
			if err != nil {
				if errors.Is(err, auth.ErrUnauthenticated) {
					return authErr
				}
				return err
			}

			newCtx := auth.ContextWithSession(ctx, *session)

			next.ServeHTTP(w, r.WithContext(newCtx))

			return nil
		})
	}
}
