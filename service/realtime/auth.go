package realtime

import (
	"net/http"
	"strings"

	"RTChat/tools/errs"
	"RTChat/tools/security"
)

// Identity is the pair of handshake claims a connection carries for life.
type Identity struct {
	UserID    string
	UserEmail string
}

// Authenticator gates the websocket handshake. Claims arrive either as plain
// query parameters (userId/userEmail, same shape as the web client's auth
// object) or inside a session-provider token. Claims are trusted as-is; the
// realtime layer never calls back into storage to confirm the user exists.
type Authenticator struct {
	jwtOpts security.Options
}

func NewAuthenticator(secret []byte) *Authenticator {
	return &Authenticator{jwtOpts: security.DefaultOptions(secret)}
}

var ErrAuthRequired = errs.NewCodeError(1100, "authentication error")

// Authenticate extracts identity claims from the handshake request.
// Either claim missing fails the handshake; the upgrade never happens and no
// connection state is created.
func (a *Authenticator) Authenticate(r *http.Request) (*Identity, error) {
	q := r.URL.Query()
	id := &Identity{
		UserID:    strings.TrimSpace(q.Get("userId")),
		UserEmail: strings.TrimSpace(q.Get("userEmail")),
	}

	if id.UserID == "" || id.UserEmail == "" {
		if token := handshakeToken(r); token != "" {
			claims, err := security.Verify(a.jwtOpts, token)
			if err != nil {
				return nil, ErrAuthRequired.WithDetail(err.Error())
			}
			id.UserID = claims.UserID
			id.UserEmail = claims.UserEmail
		}
	}

	if id.UserID == "" || id.UserEmail == "" {
		return nil, ErrAuthRequired
	}
	return id, nil
}

func handshakeToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz != "" && strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}
