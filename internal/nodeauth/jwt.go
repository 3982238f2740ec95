// Package nodeauth hardens spec.md §3's holder_id concept with a signed
// node credential, repurposed from the teacher's user/tenant token
// manager: same HS256 + kid-header shape, now carrying a node identity
// instead of a user/tenant pair. The coordinator verifies this credential
// on every mutating RPC so a misconfigured or compromised node cannot
// acquire leases under another node's holder_id.
package nodeauth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidCredential = errors.New("nodeauth: invalid or expired node credential")

// Claims binds a token to exactly one node identity — the same string
// passed as holder_id on every lease acquire.
type Claims struct {
	NodeID string `json:"node_id"`
	jwt.RegisteredClaims
}

// Manager issues and validates node credentials. Credentials are long-lived
// (default 30 days) relative to lease TTLs, since node identity changes far
// less often than lease state; operators rotate them out-of-band (e.g. via
// an admin CLI), not through a refresh-token flow.
type Manager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewManager(signingKey string, ttl time.Duration) *Manager {
	if ttl == 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Manager{signingKey: []byte(signingKey), ttl: ttl}
}

func (m *Manager) IssueCredential(nodeID string) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		NodeID: nodeID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
			Subject:   nodeID,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = "v1"
	return token.SignedString(m.signingKey)
}

func (m *Manager) ValidateCredential(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.NodeID == "" {
		return nil, ErrInvalidCredential
	}
	return claims, nil
}
