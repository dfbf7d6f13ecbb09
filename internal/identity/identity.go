package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/config"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// ErrInvalidToken - токен внешнего провайдера не прошел проверку
var ErrInvalidToken = errors.New("identity: invalid id token")

// Identity - проверенные данные пользователя от провайдера
type Identity struct {
	UID   string
	Email string
	Name  string
	Phone string
}

// Verifier проверяет ID токен внешнего провайдера
type Verifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// FirebaseVerifier проверяет Google ID токены через Firebase Admin SDK
type FirebaseVerifier struct {
	client tokenVerifier
}

// NewFirebaseVerifier инициализирует приложение Firebase
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("identity: failed to init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("identity: failed to init firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return identityFromToken(token), nil
}

func identityFromToken(token *auth.Token) *Identity {
	claim := func(name string) string {
		if s, ok := token.Claims[name].(string); ok {
			return s
		}
		return ""
	}
	return &Identity{
		UID:   token.UID,
		Email: claim("email"),
		Name:  claim("name"),
		Phone: claim("phone_number"),
	}
}

// DisabledVerifier отклоняет все токены, когда Firebase не настроен
type DisabledVerifier struct{}

func (DisabledVerifier) Verify(context.Context, string) (*Identity, error) {
	return nil, fmt.Errorf("%w: federated sign-in is not configured", ErrInvalidToken)
}
