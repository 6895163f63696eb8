package firebase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/Apurer/vendor-orders/internal/domains/identity/domain"
	"github.com/Apurer/vendor-orders/internal/domains/identity/ports"
)

var _ ports.Provider = (*Provider)(nil)

const minPasswordLength = 6

// Config carries the Firebase project settings.
type Config struct {
	ProjectID       string
	APIKey          string
	CredentialsJSON string
}

// adminClient is the subset of the Admin SDK auth client the provider uses.
type adminClient interface {
	CreateUser(ctx context.Context, user *auth.UserToCreate) (*auth.UserRecord, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*auth.Token, error)
	RevokeRefreshTokens(ctx context.Context, uid string) error
}

// passwordClient performs the end-user password flows of the REST API.
type passwordClient interface {
	VerifyPassword(ctx context.Context, email, password string) (domain.Principal, error)
	SendPasswordReset(ctx context.Context, email string) error
}

// Provider signs vendors in against Firebase Authentication. The Admin SDK
// verifies ID tokens, creates accounts and revokes sessions; password
// sign-in and reset emails go through the Identity Toolkit REST API.
type Provider struct {
	admin    adminClient
	password passwordClient
}

// New initializes the Firebase app from service-account JSON and the web API key.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if domain.ConfigLooksPlaceholder(cfg.APIKey, cfg.ProjectID) {
		return nil, errors.New("firebase configuration looks like placeholder values; set FIREBASE_API_KEY and FIREBASE_PROJECT_ID")
	}
	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	toolkit, err := identitytoolkit.NewService(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("identity toolkit client: %w", err)
	}
	return &Provider{admin: client, password: &toolkitClient{svc: toolkit}}, nil
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (domain.Principal, error) {
	return p.password.VerifyPassword(ctx, email, password)
}

func (p *Provider) SignUp(ctx context.Context, email, password string) (domain.Principal, error) {
	if len(password) < minPasswordLength {
		return domain.Principal{}, domain.MapAuthError(domain.CodeWeakPassword, nil)
	}
	user, err := p.admin.CreateUser(ctx, (&auth.UserToCreate{}).Email(email).Password(password))
	if err != nil {
		return domain.Principal{}, mapAdminError(err)
	}
	return domain.Principal{UID: user.UID, Email: user.Email}, nil
}

func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	return p.password.SendPasswordReset(ctx, email)
}

func (p *Provider) SignInWithIDToken(ctx context.Context, idToken string) (domain.Principal, error) {
	token, err := p.admin.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	if err != nil {
		return domain.Principal{}, mapAdminError(err)
	}
	email, _ := token.Claims["email"].(string)
	return domain.Principal{UID: token.UID, Email: email}, nil
}

func (p *Provider) SignOut(ctx context.Context, uid string) error {
	if strings.TrimSpace(uid) == "" {
		return nil
	}
	if err := p.admin.RevokeRefreshTokens(ctx, uid); err != nil {
		return mapAdminError(err)
	}
	return nil
}

type toolkitClient struct {
	svc *identitytoolkit.Service
}

func (c *toolkitClient) VerifyPassword(ctx context.Context, email, password string) (domain.Principal, error) {
	resp, err := c.svc.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return domain.Principal{}, mapToolkitError(err)
	}
	return domain.Principal{UID: resp.LocalId, Email: resp.Email}, nil
}

func (c *toolkitClient) SendPasswordReset(ctx context.Context, email string) error {
	_, err := c.svc.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		RequestType: "PASSWORD_RESET",
		Email:       email,
	}).Context(ctx).Do()
	if err != nil {
		return mapToolkitError(err)
	}
	return nil
}

// mapToolkitError converts REST API error messages such as
// "TOO_MANY_ATTEMPTS_TRY_LATER : ..." into provider codes.
func mapToolkitError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return mapTransportError(err)
	}
	reason, _, _ := strings.Cut(apiErr.Message, " ")
	switch strings.TrimSpace(reason) {
	case "EMAIL_EXISTS":
		return domain.MapAuthError(domain.CodeEmailInUse, err)
	case "INVALID_EMAIL":
		return domain.MapAuthError(domain.CodeInvalidEmail, err)
	case "WEAK_PASSWORD":
		return domain.MapAuthError(domain.CodeWeakPassword, err)
	case "TOO_MANY_ATTEMPTS_TRY_LATER":
		return domain.MapAuthError(domain.CodeTooManyRequests, err)
	case "OPERATION_NOT_ALLOWED", "PASSWORD_LOGIN_DISABLED":
		return domain.MapAuthError(domain.CodeOperationNotAllowed, err)
	case "INVALID_LOGIN_CREDENTIALS":
		return domain.MapAuthError(domain.CodeInvalidLoginCredentials, err)
	case "INVALID_PASSWORD":
		return domain.MapAuthError(domain.CodeWrongPassword, err)
	case "EMAIL_NOT_FOUND":
		return domain.MapAuthError(domain.CodeUserNotFound, err)
	case "USER_DISABLED":
		return domain.MapAuthError("auth/user-disabled", err)
	default:
		return domain.MapAuthError("", err)
	}
}

func mapAdminError(err error) error {
	switch {
	case auth.IsEmailAlreadyExists(err):
		return domain.MapAuthError(domain.CodeEmailInUse, err)
	case auth.IsUserNotFound(err):
		return domain.MapAuthError(domain.CodeUserNotFound, err)
	case auth.IsIDTokenRevoked(err), auth.IsIDTokenExpired(err), auth.IsIDTokenInvalid(err):
		return domain.MapAuthError(domain.CodeInvalidIDToken, err)
	default:
		return mapTransportError(err)
	}
}

func mapTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.MapAuthError(domain.CodeNetworkFailed, err)
	}
	return domain.MapAuthError("", err)
}
