package identity

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	nethttp "net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"

	"github.com/blackdropbox/blackdropbox/internal/constants"
	"github.com/blackdropbox/blackdropbox/internal/logging"
)

// cognitoAPI is the subset of *cognitoidentityprovider.Client used here.
type cognitoAPI interface {
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
	SignUp(ctx context.Context, params *cip.SignUpInput, optFns ...func(*cip.Options)) (*cip.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, params *cip.ConfirmSignUpInput, optFns ...func(*cip.Options)) (*cip.ConfirmSignUpOutput, error)
	GetUser(ctx context.Context, params *cip.GetUserInput, optFns ...func(*cip.Options)) (*cip.GetUserOutput, error)
	RevokeToken(ctx context.Context, params *cip.RevokeTokenInput, optFns ...func(*cip.Options)) (*cip.RevokeTokenOutput, error)
}

// CognitoConfig identifies the user pool app client.
type CognitoConfig struct {
	Region       string
	UserPoolID   string // informational; the app client id selects the pool
	ClientID     string
	ClientSecret string // optional, enables SECRET_HASH
	HTTPClient   *nethttp.Client
}

// CognitoProvider implements Provider with a Cognito user pool and a
// local token store.
//
// Thread-safe: token refresh is serialized.
type CognitoProvider struct {
	api          cognitoAPI
	clientID     string
	clientSecret string
	store        TokenStore
	logger       *logging.Logger
	now          func() time.Time

	mu sync.Mutex
}

// NewCognitoProvider creates a provider for the configured app client.
// Requests are unsigned; the user pool APIs used here are public.
func NewCognitoProvider(ctx context.Context, cfg CognitoConfig, store TokenStore, logger *logging.Logger) (*CognitoProvider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("cognito client id is required")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, config.WithHTTPClient(cfg.HTTPClient))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return newCognitoProvider(cip.NewFromConfig(awsCfg), cfg.ClientID, cfg.ClientSecret, store, logger), nil
}

func newCognitoProvider(api cognitoAPI, clientID, clientSecret string, store TokenStore, logger *logging.Logger) *CognitoProvider {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CognitoProvider{
		api:          api,
		clientID:     clientID,
		clientSecret: clientSecret,
		store:        store,
		logger:       logger.Component("identity"),
		now:          time.Now,
	}
}

// CurrentSession returns the stored session, refreshing it first when the
// ID token expires within constants.TokenExpiryLeeway.
func (p *CognitoProvider) CurrentSession(ctx context.Context) (*Session, error) {
	tokens, err := p.freshTokens(ctx)
	if err != nil {
		return nil, err
	}
	return sessionFromTokens(tokens)
}

// IDToken returns a valid ID token for the version API.
func (p *CognitoProvider) IDToken(ctx context.Context) (string, error) {
	tokens, err := p.freshTokens(ctx)
	if err != nil {
		return "", err
	}
	return tokens.IDToken, nil
}

func (p *CognitoProvider) freshTokens(ctx context.Context) (*Tokens, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tokens, err := p.store.Load()
	if err != nil {
		return nil, err
	}
	if tokens.IDToken != "" && p.now().Add(constants.TokenExpiryLeeway).Before(tokens.ExpiresAt) {
		return tokens, nil
	}
	if tokens.RefreshToken == "" {
		return nil, ErrNoSession
	}

	p.logger.Debug().Str("username", tokens.Username).Msg("Refreshing user pool tokens")
	params := map[string]string{"REFRESH_TOKEN": tokens.RefreshToken}
	if p.clientSecret != "" {
		params["SECRET_HASH"] = p.secretHash(tokens.Username)
	}
	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeRefreshTokenAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		if errors.Is(mapCognitoError(err), ErrInvalidCredentials) {
			_ = p.store.Clear()
			return nil, fmt.Errorf("%w: refresh token rejected", ErrNoSession)
		}
		return nil, fmt.Errorf("failed to refresh session: %w", mapCognitoError(err))
	}
	if out.AuthenticationResult == nil {
		return nil, fmt.Errorf("%w: empty refresh result", ErrNoSession)
	}

	refreshed, err := p.tokensFromResult(tokens.Username, out.AuthenticationResult)
	if err != nil {
		return nil, err
	}
	if refreshed.RefreshToken == "" {
		// Refresh responses omit the refresh token unless rotation is enabled
		refreshed.RefreshToken = tokens.RefreshToken
	}
	if err := p.store.Save(refreshed); err != nil {
		return nil, err
	}
	return refreshed, nil
}

// SignIn authenticates with USER_PASSWORD_AUTH and stores the tokens.
func (p *CognitoProvider) SignIn(ctx context.Context, creds Credentials) (*Session, error) {
	if creds.Username == "" || creds.Password == "" {
		return nil, ErrInvalidCredentials
	}

	params := map[string]string{
		"USERNAME": creds.Username,
		"PASSWORD": creds.Password,
	}
	if p.clientSecret != "" {
		params["SECRET_HASH"] = p.secretHash(creds.Username)
	}

	out, err := p.api.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       types.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(p.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return nil, fmt.Errorf("sign in failed: %w", mapCognitoError(err))
	}
	if out.ChallengeName != "" {
		return nil, fmt.Errorf("%w: %s", ErrChallengeRequired, out.ChallengeName)
	}
	if out.AuthenticationResult == nil {
		return nil, fmt.Errorf("sign in failed: empty authentication result")
	}

	username := creds.Username
	if out.AuthenticationResult.AccessToken != nil {
		user, err := p.api.GetUser(ctx, &cip.GetUserInput{AccessToken: out.AuthenticationResult.AccessToken})
		if err != nil {
			p.logger.Warn().Err(err).Msg("GetUser failed after sign in")
		} else if user.Username != nil {
			username = *user.Username
		}
	}

	tokens, err := p.tokensFromResult(username, out.AuthenticationResult)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	err = p.store.Save(tokens)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	p.logger.Info().Str("username", username).Msg("Signed in")
	return sessionFromTokens(tokens)
}

// SignUp registers a user with email and name attributes.
func (p *CognitoProvider) SignUp(ctx context.Context, params SignUpParams) (SignUpResult, error) {
	input := &cip.SignUpInput{
		ClientId: aws.String(p.clientID),
		Username: aws.String(params.Username),
		Password: aws.String(params.Password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(params.Email)},
		},
	}
	if params.Name != "" {
		input.UserAttributes = append(input.UserAttributes,
			types.AttributeType{Name: aws.String("name"), Value: aws.String(params.Name)})
	}
	if p.clientSecret != "" {
		input.SecretHash = aws.String(p.secretHash(params.Username))
	}

	out, err := p.api.SignUp(ctx, input)
	if err != nil {
		return SignUpResult{}, fmt.Errorf("sign up failed: %w", mapCognitoError(err))
	}

	result := SignUpResult{UserConfirmed: out.UserConfirmed}
	if d := out.CodeDeliveryDetails; d != nil {
		result.Destination = aws.ToString(d.Destination)
	}
	return result, nil
}

// ConfirmSignUp submits the emailed confirmation code.
func (p *CognitoProvider) ConfirmSignUp(ctx context.Context, username, code string) error {
	input := &cip.ConfirmSignUpInput{
		ClientId:         aws.String(p.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
	}
	if p.clientSecret != "" {
		input.SecretHash = aws.String(p.secretHash(username))
	}
	if _, err := p.api.ConfirmSignUp(ctx, input); err != nil {
		return fmt.Errorf("confirmation failed: %w", mapCognitoError(err))
	}
	return nil
}

// SignOut revokes the refresh token and clears the local session. The
// local session is cleared even when revocation fails.
func (p *CognitoProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tokens, err := p.store.Load()
	if errors.Is(err, ErrNoSession) {
		return nil
	}

	var revokeErr error
	if err == nil && tokens.RefreshToken != "" {
		input := &cip.RevokeTokenInput{
			ClientId: aws.String(p.clientID),
			Token:    aws.String(tokens.RefreshToken),
		}
		if p.clientSecret != "" {
			input.ClientSecret = aws.String(p.clientSecret)
		}
		if _, err := p.api.RevokeToken(ctx, input); err != nil {
			revokeErr = fmt.Errorf("failed to revoke refresh token: %w", mapCognitoError(err))
		}
	}

	if err := p.store.Clear(); err != nil {
		return err
	}
	return revokeErr
}

func (p *CognitoProvider) tokensFromResult(username string, res *types.AuthenticationResultType) (*Tokens, error) {
	t := &Tokens{
		Username:     username,
		IDToken:      aws.ToString(res.IdToken),
		AccessToken:  aws.ToString(res.AccessToken),
		RefreshToken: aws.ToString(res.RefreshToken),
		ExpiresAt:    p.now().Add(time.Duration(res.ExpiresIn) * time.Second),
	}
	if t.IDToken == "" {
		return nil, fmt.Errorf("authentication result has no id token")
	}

	claims, err := parseIDToken(t.IDToken)
	if err != nil {
		return nil, err
	}
	if !claims.ExpiresAt.IsZero() {
		t.ExpiresAt = claims.ExpiresAt
	}
	return t, nil
}

// secretHash is Base64(HMAC_SHA256(clientSecret, username + clientID)).
func (p *CognitoProvider) secretHash(username string) string {
	mac := hmac.New(sha256.New, []byte(p.clientSecret))
	mac.Write([]byte(username + p.clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func sessionFromTokens(t *Tokens) (*Session, error) {
	claims, err := parseIDToken(t.IDToken)
	if err != nil {
		return nil, err
	}
	s := &Session{
		Username:  t.Username,
		LoginID:   claims.Email,
		Subject:   claims.Subject,
		ExpiresAt: t.ExpiresAt,
	}
	if s.Username == "" {
		s.Username = claims.Username
	}
	return s, nil
}

// mapCognitoError translates user pool exceptions to identity errors.
func mapCognitoError(err error) error {
	var (
		notAuthorized *types.NotAuthorizedException
		notConfirmed  *types.UserNotConfirmedException
		userNotFound  *types.UserNotFoundException
		userExists    *types.UsernameExistsException
		codeMismatch  *types.CodeMismatchException
		codeExpired   *types.ExpiredCodeException
	)
	switch {
	case errors.As(err, &notAuthorized), errors.As(err, &userNotFound):
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	case errors.As(err, &notConfirmed):
		return fmt.Errorf("%w: %v", ErrNotConfirmed, err)
	case errors.As(err, &userExists):
		return fmt.Errorf("%w: %v", ErrUserExists, err)
	case errors.As(err, &codeMismatch), errors.As(err, &codeExpired):
		return fmt.Errorf("%w: %v", ErrInvalidCode, err)
	}
	return err
}

// Compile-time interface verification
var (
	_ Provider      = (*CognitoProvider)(nil)
	_ TokenProvider = (*CognitoProvider)(nil)
)
