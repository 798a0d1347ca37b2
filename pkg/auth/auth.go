package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/roomchat/pkg/user"
)

var (
	ErrBadCredentials  = errors.New("invalid credentials")
	ErrUnauthenticated = errors.New("unauthenticated")
)

type Auth interface {
	// NewSession verifies the credentials and issues a signed session token.
	NewSession(ctx context.Context, username, password string) (token string, exp time.Time, err error)
	// Session verifies a token and returns the session it carries.
	// ErrUnauthenticated is returned for expired or otherwise invalid tokens.
	Session(ctx context.Context, token string) (*Session, error)
}

type Session struct {
	Username string
}

type SimpleAuth struct {
	tokenOptions TokenOptions
	userStore    user.UserStore
}

func NewSimpleAuth(userStore user.UserStore, tokenOptions TokenOptions) *SimpleAuth {
	return &SimpleAuth{
		tokenOptions: tokenOptions,
		userStore:    userStore,
	}
}

func (a *SimpleAuth) NewSession(ctx context.Context, username, password string) (token string, exp time.Time, err error) {
	u, err := a.userStore.GetUserByUsername(ctx, username)
	if err != nil {
		return "", exp, fmt.Errorf("get user by username: %w", err)
	}
	if u == nil {
		return "", exp, ErrBadCredentials
	}

	ok, err := a.userStore.ComparePassword(ctx, username, password)
	if err != nil {
		return "", exp, fmt.Errorf("compare password: %w", err)
	}

	if !ok {
		return "", exp, ErrBadCredentials
	}

	token, exp, err = createToken(u.Username, a.tokenOptions)
	if err != nil {
		return "", exp, fmt.Errorf("creating token: %w", err)
	}

	return token, exp, nil
}

func (a *SimpleAuth) Session(ctx context.Context, token string) (*Session, error) {
	claims, err := verifyToken(token, a.tokenOptions)
	if err != nil {
		if errors.Is(err, errTokenExpired) || errors.Is(err, errTokenInvalid) ||
			errors.Is(err, errUnrecognizedToken) {
			return nil, ErrUnauthenticated
		}
		return nil, fmt.Errorf("verifying token: %w", err)
	}

	return &Session{Username: claims.Username}, nil
}

type sessionContextKey struct{}

func ContextWithSession(ctx context.Context, session Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, session)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey{}).(Session)
	return session, ok
}
