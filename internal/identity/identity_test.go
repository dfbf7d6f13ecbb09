package identity

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	token *auth.Token
	err   error
}

func (s stubVerifier) VerifyIDToken(context.Context, string) (*auth.Token, error) {
	return s.token, s.err
}

func TestFirebaseVerifier_Verify(t *testing.T) {
	t.Parallel()

	v := &FirebaseVerifier{client: stubVerifier{token: &auth.Token{
		UID:    "uid-1",
		Claims: map[string]interface{}{"email": "g@example.com", "name": "G User"},
	}}}
	id, err := v.Verify(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, &Identity{UID: "uid-1", Email: "g@example.com", Name: "G User"}, id)

	v = &FirebaseVerifier{client: stubVerifier{err: errors.New("expired")}}
	_, err = v.Verify(context.Background(), "tok")
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = DisabledVerifier{}.Verify(context.Background(), "tok")
	require.ErrorIs(t, err, ErrInvalidToken)
}
