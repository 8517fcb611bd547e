// Package tokens implements the two halves of the credential design:
// short-lived self-verifying JWT access tokens and long-lived opaque
// refresh tokens. Access tokens are stateless (scalability); refresh
// tokens carry no claims at all and are only as valid as the ledger row
// that references them (revocability). That asymmetry is deliberate.
package tokens

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidUser  = errors.New("user has no id or name")
	ErrInvalidToken = errors.New("invalid token")
)

const AccessTokenTTL = 30 * time.Minute

// AccessClaims carries the subject id (RegisteredClaims.Subject) and the
// user's display name.
type AccessClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim back into a user id.
func (c *AccessClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return uint(id), nil
}

type Issuer struct {
	Secret []byte

	now func() time.Time
}

func NewIssuer(secret []byte) *Issuer {
	return &Issuer{Secret: secret, now: time.Now}
}

// IssueAccessToken signs an HS256 token with sub and name claims and a
// 30 minute lifetime. Issuer/audience claims are intentionally absent:
// the deployment is single-tenant and validation of both is disabled.
func (i *Issuer) IssueAccessToken(userID uint, name string) (string, error) {
	if userID == 0 || name == "" {
		return "", ErrInvalidUser
	}

	claims := AccessClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			ExpiresAt: jwt.NewNumericDate(i.now().Add(AccessTokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.Secret)
}

// NewRefreshToken returns 32 bytes from crypto/rand, base64-encoded.
// It is opaque on purpose: validity is established only by a ledger
// lookup, never by decoding.
func NewRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

func (i *Issuer) keyFunc(t *jwt.Token) (any, error) {
	if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, ErrInvalidToken
	}
	return i.Secret, nil
}

// ValidateAccessToken verifies signature and expiry and returns the
// claims. A token signed with any other algorithm is rejected outright.
func (i *Issuer) ValidateAccessToken(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(raw, &claims, i.keyFunc)
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// ParseExpiredClaims recovers the claims from a just-expired access token
// during refresh. Signature and algorithm checks still apply; only the
// lifetime check is skipped.
func (i *Issuer) ParseExpiredClaims(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	tkn, err := jwt.ParseWithClaims(raw, &claims, i.keyFunc, jwt.WithoutClaimsValidation())
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
