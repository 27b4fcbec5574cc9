package google

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

// IdentityResolver finds the email address a token was issued to.
type IdentityResolver interface {
	ResolveEmail(ctx context.Context, tok *oauth2.Token) (string, error)
}

// UserinfoResolver calls the Google userinfo endpoint.
type UserinfoResolver struct {
	// Options are appended to the service options, e.g. a test endpoint.
	Options []option.ClientOption
}

// ResolveEmail implements IdentityResolver. Unverified emails are rejected.
func (r *UserinfoResolver) ResolveEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(tok))}, r.Options...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to fetch userinfo: %w", err)
	}

	email := strings.TrimSpace(info.Email)
	if email == "" {
		return "", errors.New("userinfo response has no email")
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return "", fmt.Errorf("email %s is not verified", email)
	}
	return email, nil
}
