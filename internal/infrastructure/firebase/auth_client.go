package firebase

import (
	"context"

	"firebase.google.com/go/v4/auth"

	"sakanect/internal/session"
)

type FirebaseAuthClient struct {
	client *auth.Client
}

func NewFirebaseAuthClient(client *auth.Client) *FirebaseAuthClient {
	return &FirebaseAuthClient{
		client: client,
	}
}

// VerifyToken checks a Firebase ID token. The role comes from the "role"
// custom claim and defaults to a plain user.
func (f *FirebaseAuthClient) VerifyToken(ctx context.Context, token string) (session.Session, error) {
	result, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return session.Session{}, err
	}

	role := session.RoleUser
	if r, ok := result.Claims["role"].(string); ok && r != "" {
		role = r
	}

	return session.Session{UserID: result.UID, Role: role}, nil
}
