package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearth-app/backend/internal/config"
	"github.com/hearth-app/backend/internal/domain"
	"github.com/hearth-app/backend/internal/password"
	"github.com/hearth-app/backend/internal/token"
)

var (
	ErrInvalidCredentials     = errors.New("invalid identifier or password")
	ErrAccountInactive        = errors.New("account is deactivated")
	ErrAlreadyRegistered      = errors.New("email or username already registered")
	ErrMissingToken           = errors.New("refresh token required")
	ErrMalformedToken         = errors.New("refresh token malformed")
	ErrTokenRevoked           = errors.New("refresh token revoked")
	ErrTokenNotFoundOrExpired = errors.New("refresh token not found or expired")
	ErrUserInactive           = errors.New("user is deactivated")
)

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

// SessionUsecase orchestrates login, refresh, and logout. It is the only
// component touching both the access token codec and the refresh token store.
type SessionUsecase struct {
	userRepo  domain.UserRepository
	tokenRepo domain.RefreshTokenRepository
	eventRepo domain.LoginEventRepository
	codec     *token.Codec
	cfg       *config.AuthConfig
	logger    *zap.Logger
}

func NewSessionUsecase(
	userRepo domain.UserRepository,
	tokenRepo domain.RefreshTokenRepository,
	eventRepo domain.LoginEventRepository,
	codec *token.Codec,
	cfg *config.AuthConfig,
	logger *zap.Logger,
) *SessionUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionUsecase{
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		eventRepo: eventRepo,
		codec:     codec,
		cfg:       cfg,
		logger:    logger,
	}
}

func (u *SessionUsecase) Register(ctx context.Context, email, username, pass string) (*domain.User, *TokenPair, error) {
	hashed, err := password.Hash(pass)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Username:     strings.ToLower(strings.TrimSpace(username)),
		PasswordHash: hashed,
		Role:         domain.RoleMember,
		Active:       true,
	}

	if err := u.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, nil, ErrAlreadyRegistered
		}
		return nil, nil, err
	}

	pair, err := u.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// Login exchanges credentials for a token pair. Unknown identifier and wrong
// password produce the identical ErrInvalidCredentials so that a caller
// cannot probe which accounts exist.
func (u *SessionUsecase) Login(ctx context.Context, identifier, pass, clientIP, userAgent string) (*domain.User, *TokenPair, error) {
	user, err := u.findByIdentifier(ctx, strings.ToLower(strings.TrimSpace(identifier)))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if !password.Verify(pass, user.PasswordHash) {
		return nil, nil, ErrInvalidCredentials
	}

	if !user.Active {
		return nil, nil, ErrAccountInactive
	}

	if err := u.userRepo.UpdateLastLogin(ctx, user.ID); err != nil {
		u.logger.Error("failed to update last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	pair, err := u.issuePair(ctx, user)
	if err != nil {
		return nil, nil, err
	}

	u.recordLogin(ctx, user.ID, clientIP, userAgent)

	return user, pair, nil
}

// Refresh rotates a refresh token: the old fingerprint is claimed via a
// conditional revoke before any new credentials are minted, so two
// concurrent refreshes of the same token cannot both succeed. The loser
// sees ErrTokenRevoked and gets nothing.
func (u *SessionUsecase) Refresh(ctx context.Context, rawToken string) (*TokenPair, error) {
	if rawToken == "" {
		return nil, ErrMissingToken
	}
	if uuid.Validate(rawToken) != nil {
		return nil, ErrMalformedToken
	}

	fp := fingerprint(rawToken)

	stored, err := u.tokenRepo.GetByFingerprint(ctx, fp)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Absent and expired collapse into one error class so that a
			// caller cannot learn how long issued tokens live.
			return nil, ErrTokenNotFoundOrExpired
		}
		return nil, err
	}
	if stored.RevokedAt != nil {
		return nil, ErrTokenRevoked
	}
	if !stored.Usable(time.Now()) {
		return nil, ErrTokenNotFoundOrExpired
	}

	user, err := u.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrTokenNotFoundOrExpired
		}
		return nil, err
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	revoked, err := u.tokenRepo.Revoke(ctx, fp)
	if err != nil {
		u.logger.Error("failed to revoke refresh token during rotation",
			zap.String("user_id", user.ID.String()), zap.Error(err))
		return nil, err
	}
	if !revoked {
		// Another request rotated this token between our lookup and the
		// revoke. Treat it exactly like presenting an already-revoked token.
		return nil, ErrTokenRevoked
	}

	return u.issuePair(ctx, user)
}

// Logout revokes the presented refresh token. It is idempotent and never
// fails from the caller's point of view: the access token stays valid until
// its own expiry either way, and a client must always be able to log out.
func (u *SessionUsecase) Logout(ctx context.Context, rawToken string) {
	if rawToken == "" || uuid.Validate(rawToken) != nil {
		return
	}

	if _, err := u.tokenRepo.Revoke(ctx, fingerprint(rawToken)); err != nil {
		u.logger.Warn("failed to revoke refresh token on logout", zap.Error(err))
	}
}

// RevokeAllSessions revokes every usable refresh token owned by the user.
// Used when an account is deactivated.
func (u *SessionUsecase) RevokeAllSessions(ctx context.Context, userID uuid.UUID) (int64, error) {
	return u.tokenRepo.RevokeAllForUser(ctx, userID)
}

// PurgeExpiredTokens removes expired refresh-token rows. Expired tokens are
// already unusable; this only reclaims storage and is admin-triggered.
func (u *SessionUsecase) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return u.tokenRepo.DeleteExpired(ctx)
}

func (u *SessionUsecase) ValidateAccessToken(raw string) (*token.Claims, error) {
	return u.codec.Verify(raw)
}

func (u *SessionUsecase) GetUserByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return u.userRepo.GetByID(ctx, id)
}

func (u *SessionUsecase) findByIdentifier(ctx context.Context, identifier string) (*domain.User, error) {
	user, err := u.userRepo.GetByEmail(ctx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return u.userRepo.GetByUsername(ctx, identifier)
}

func (u *SessionUsecase) issuePair(ctx context.Context, user *domain.User) (*TokenPair, error) {
	accessToken, expiresAt, err := u.codec.Issue(user.ID, user.Role, user.Active, u.cfg.AccessTTL)
	if err != nil {
		return nil, err
	}

	// The raw value leaves the server exactly once, in the response; only
	// its fingerprint is persisted.
	rawRefresh := uuid.NewString()

	stored := &domain.RefreshToken{
		UserID:      user.ID,
		Fingerprint: fingerprint(rawRefresh),
		ExpiresAt:   time.Now().Add(u.cfg.RefreshTTL),
	}
	if err := u.tokenRepo.Create(ctx, stored); err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: rawRefresh,
		ExpiresAt:    expiresAt.Unix(),
	}, nil
}

func (u *SessionUsecase) recordLogin(ctx context.Context, userID uuid.UUID, clientIP, userAgent string) {
	if u.eventRepo == nil {
		return
	}
	event := &domain.LoginEvent{
		UserID:    userID,
		IPAddress: clientIP,
		UserAgent: userAgent,
	}
	if err := u.eventRepo.Create(ctx, event); err != nil {
		u.logger.Warn("failed to record login event", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

func fingerprint(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
