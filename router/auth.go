package router

import (
	"encoding/base64"
	"strings"

	"github.com/indigo-web/ember/kv"
	"golang.org/x/crypto/bcrypt"
)

// BasicAuth protects a route with the Basic authentication scheme. Users map names onto
// bcrypt hashes of their passwords.
type BasicAuth struct {
	Realm string
	Users map[string]string
}

// Challenge is the value of WWW-Authenticate sent along with 401.
func (b *BasicAuth) Challenge() string {
	realm := b.Realm
	if len(realm) == 0 {
		realm = "restricted"
	}

	return `Basic realm="` + strings.ReplaceAll(realm, `"`, `\"`) + `", charset="UTF-8"`
}

// Authorize checks the Authorization header of the request.
func (b *BasicAuth) Authorize(headers *kv.Storage) bool {
	scheme, credentials, found := strings.Cut(headers.Value("authorization"), " ")
	if !found || !strings.EqualFold(scheme, "basic") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(credentials))
	if err != nil {
		return false
	}

	user, password, found := strings.Cut(string(decoded), ":")
	if !found {
		return false
	}

	hash, known := b.Users[user]
	if !known {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
