package nodeauth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technosupport/vms-coordinator/internal/nodeauth"
)

func TestManager_IssueThenValidateRoundTrip(t *testing.T) {
	m := nodeauth.NewManager("test-signing-key", time.Hour)

	token, err := m.IssueCredential("node-a")
	require.NoError(t, err)

	claims, err := m.ValidateCredential(token)
	require.NoError(t, err)
	assert.Equal(t, "node-a", claims.NodeID)
}

func TestManager_ValidateRejectsWrongKey(t *testing.T) {
	issuer := nodeauth.NewManager("key-one", time.Hour)
	verifier := nodeauth.NewManager("key-two", time.Hour)

	token, err := issuer.IssueCredential("node-a")
	require.NoError(t, err)

	_, err = verifier.ValidateCredential(token)
	assert.ErrorIs(t, err, nodeauth.ErrInvalidCredential)
}

func TestManager_ValidateRejectsExpiredCredential(t *testing.T) {
	m := nodeauth.NewManager("test-signing-key", -time.Hour)

	token, err := m.IssueCredential("node-a")
	require.NoError(t, err)

	_, err = m.ValidateCredential(token)
	assert.ErrorIs(t, err, nodeauth.ErrInvalidCredential)
}

func TestManager_ValidateRejectsGarbage(t *testing.T) {
	m := nodeauth.NewManager("test-signing-key", time.Hour)
	_, err := m.ValidateCredential("not-a-jwt")
	assert.ErrorIs(t, err, nodeauth.ErrInvalidCredential)
}
