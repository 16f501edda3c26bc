package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"auth-hub/internal/domain"
	"auth-hub/internal/email"
	"auth-hub/internal/repository"
)

// AuthService coordina el ciclo de vida de credenciales y sesiones:
// registro, login con segundo factor, rotación de refresh tokens,
// revocación global, identidades externas, reseteo de contraseña y
// enlaces mágicos.
type AuthService struct {
	logger        *zap.Logger
	users         repository.UserRepository
	roles         repository.RoleRepository
	accounts      repository.ExternalAccountRepository
	resetTokens   repository.PasswordResetTokenRepository
	tokens        *TokenService
	sessions      SessionStore
	emailSender   email.Sender
	limiter       RateLimiter
	appName       string
	magicLinkTTL  time.Duration
	resetTokenTTL time.Duration
}

type AuthServiceParams struct {
	Logger        *zap.Logger
	Users         repository.UserRepository
	Roles         repository.RoleRepository
	Accounts      repository.ExternalAccountRepository
	ResetTokens   repository.PasswordResetTokenRepository
	Tokens        *TokenService
	Sessions      SessionStore
	EmailSender   email.Sender
	Limiter       RateLimiter
	AppName       string
	MagicLinkTTL  time.Duration
	ResetTokenTTL time.Duration
}

func NewAuthService(p AuthServiceParams) *AuthService {
	if p.Sessions == nil {
		p.Sessions = NewMemorySessionStore()
	}
	if p.Limiter == nil {
		p.Limiter = NewMemoryRateLimiter(10*time.Minute, 3)
	}
	if p.MagicLinkTTL <= 0 {
		p.MagicLinkTTL = 15 * time.Minute
	}
	if p.ResetTokenTTL <= 0 {
		p.ResetTokenTTL = time.Hour
	}
	if p.AppName == "" {
		p.AppName = "auth-hub"
	}
	return &AuthService{
		logger:        p.Logger,
		users:         p.Users,
		roles:         p.Roles,
		accounts:      p.Accounts,
		resetTokens:   p.ResetTokens,
		tokens:        p.Tokens,
		sessions:      p.Sessions,
		emailSender:   p.EmailSender,
		limiter:       p.Limiter,
		appName:       p.AppName,
		magicLinkTTL:  p.MagicLinkTTL,
		resetTokenTTL: p.ResetTokenTTL,
	}
}

var (
	ErrDuplicateEmail       = errors.New("email already registered")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidTwoFactorCode = errors.New("invalid two-factor code")
	ErrTwoFactorNotSetUp    = errors.New("two-factor secret not provisioned")
	ErrInvalidRefreshToken  = errors.New("invalid or expired refresh token")
	ErrSessionRevoked       = errors.New("session revoked")
	ErrInvalidOneTimeToken  = errors.New("invalid or expired token")
	ErrUserNotFound         = errors.New("user not found")
	ErrExternalInvalid      = errors.New("external identity invalid")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrRateLimited          = errors.New("rate limited")
	ErrStoreUnavailable     = errors.New("secret store unavailable")
)

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginResult es el desenlace de un login: tokens emitidos, o la señal de
// que falta el segundo factor. TwoFactorUserID es solo un handle de
// continuación; no otorga acceso por sí mismo.
type LoginResult struct {
	User              domain.User
	Tokens            TokenPair
	RequiresTwoFactor bool
	TwoFactorUserID   string
}

// ExternalIdentity es una identidad ya verificada por un proveedor externo.
// El handshake OAuth ocurre fuera del núcleo; aquí solo llega el resultado.
type ExternalIdentity struct {
	Provider  string
	SubjectID string
	Email     string
	FirstName string
	LastName  string
	Avatar    string
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	emailAddr := normalizeEmail(input.Email)
	password := strings.TrimSpace(input.Password)
	if emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	if password == "" {
		return domain.User{}, ErrInvalidCredentials
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		PasswordHash: string(hashBytes),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		CreatedAt:    time.Now().UTC(),
	}

	// La unicidad del email la garantiza la restricción del esquema, no un
	// chequeo de lectura previa: dos registros concurrentes no pueden colarse.
	if err := s.createWithDefaultRole(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, emailAddr, password string) (LoginResult, error) {
	emailAddr = normalizeEmail(emailAddr)
	password = strings.TrimSpace(password)
	if emailAddr == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}
	if user.PasswordHash == "" {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return LoginResult{}, ErrInvalidCredentials
	}

	if user.TwoFactorEnabled {
		return LoginResult{RequiresTwoFactor: true, TwoFactorUserID: user.ID}, nil
	}
	return s.issueSession(ctx, user)
}

// CompleteTwoFactorLogin cierra un login que quedó pendiente del segundo
// factor. No vuelve a pedir la contraseña: el primer factor ya fue probado.
func (s *AuthService) CompleteTwoFactorLogin(ctx context.Context, userID, code string) (LoginResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, ErrInvalidTwoFactorCode
		}
		return LoginResult{}, err
	}
	if user.TwoFactorSecret == "" || !VerifyTOTPCode(user.TwoFactorSecret, code) {
		return LoginResult{}, ErrInvalidTwoFactorCode
	}
	return s.issueSession(ctx, user)
}

// Refresh rota un refresh token: el viejo se consume atómicamente y se emite
// un par nuevo. Reusar un token ya rotado falla siempre.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	userID, found, err := s.sessions.ConsumeRefresh(ctx, claims.ID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !found || userID != claims.UserID {
		return TokenPair{}, ErrInvalidRefreshToken
	}

	revoked, err := s.IsSessionRevoked(ctx, userID, claims.IssuedAt.Unix())
	if err != nil {
		return TokenPair{}, err
	}
	if revoked {
		return TokenPair{}, ErrSessionRevoked
	}

	return s.issueTokenPair(ctx, userID)
}

// Logout borra el mapping del refresh token. Es idempotente: un token ya
// inexistente o ilegible no es un error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil
	}
	if err := s.sessions.DeleteRefresh(ctx, claims.ID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RevokeAllSessions invalida todos los tokens emitidos hasta ahora para el
// usuario, incluso los que aún no expiraron.
func (s *AuthService) RevokeAllSessions(ctx context.Context, userID string) error {
	now := time.Now().UTC().Unix()
	if err := s.sessions.MarkRevoked(ctx, userID, now); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// IsSessionRevoked compara la emisión del token contra el marcador de
// revocación del usuario. Sin marcador no hay revocación.
func (s *AuthService) IsSessionRevoked(ctx context.Context, userID string, tokenIat int64) (bool, error) {
	revokedAt, found, err := s.sessions.RevokedAt(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return found && tokenIat < revokedAt, nil
}

// UpsertExternalIdentity resuelve una identidad externa en tres niveles:
// cuenta ya vinculada, usuario existente con el mismo email, o alta nueva.
func (s *AuthService) UpsertExternalIdentity(ctx context.Context, identity ExternalIdentity) (domain.User, error) {
	provider := strings.ToLower(strings.TrimSpace(identity.Provider))
	subjectID := strings.TrimSpace(identity.SubjectID)
	emailAddr := normalizeEmail(identity.Email)
	if provider == "" || subjectID == "" || emailAddr == "" {
		return domain.User{}, ErrExternalInvalid
	}

	account, err := s.accounts.GetByProvider(ctx, provider, subjectID)
	if err == nil {
		return s.users.GetByID(ctx, account.UserID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if errors.Is(err, pgx.ErrNoRows) {
		user = domain.User{
			ID:        uuid.NewString(),
			Email:     emailAddr,
			FirstName: strings.TrimSpace(identity.FirstName),
			LastName:  strings.TrimSpace(identity.LastName),
			Avatar:    strings.TrimSpace(identity.Avatar),
			// Los proveedores externos ya verificaron el email.
			IsVerified: true,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.createWithDefaultRole(ctx, user); err != nil {
			return domain.User{}, err
		}
	} else if err != nil {
		return domain.User{}, err
	}

	link := domain.ExternalAccount{
		ID:                uuid.NewString(),
		UserID:            user.ID,
		Type:              "oauth",
		Provider:          provider,
		ProviderAccountID: subjectID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.accounts.Create(ctx, link); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Un upsert concurrente ganó la carrera; su resultado vale.
			if account, err := s.accounts.GetByProvider(ctx, provider, subjectID); err == nil {
				return s.users.GetByID(ctx, account.UserID)
			}
		}
		return domain.User{}, err
	}
	return user, nil
}

// CompleteSocialLogin emite una sesión para un usuario ya resuelto por
// UpsertExternalIdentity.
func (s *AuthService) CompleteSocialLogin(ctx context.Context, user domain.User) (LoginResult, error) {
	return s.issueSession(ctx, user)
}

// RefreshTTL expone la vigencia del refresh token para el transporte
// (la cookie debe vivir lo mismo que el token).
func (s *AuthService) RefreshTTL() time.Duration {
	return s.tokens.RefreshTTL()
}

// RequestPasswordReset reporta éxito aunque el email no exista, para no
// filtrar qué cuentas hay registradas.
func (s *AuthService) RequestPasswordReset(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return ErrRateLimited
	}

	if _, err := s.users.GetByEmail(ctx, emailAddr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return err
	}

	token, err := generateResetToken()
	if err != nil {
		return err
	}
	record := domain.PasswordResetToken{
		ID:        uuid.NewString(),
		Email:     emailAddr,
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(s.resetTokenTTL),
	}
	if err := s.resetTokens.Create(ctx, record); err != nil {
		return err
	}

	// El fallo de entrega no invalida el token ya creado.
	if s.emailSender != nil {
		if err := s.emailSender.SendPasswordResetLink(ctx, emailAddr, token); err != nil && s.logger != nil {
			s.logger.Warn("send password reset link failed", zap.Error(err), zap.String("email", emailAddr))
		}
	}
	return nil
}

// ResetPassword consume el token de reseteo, guarda la nueva contraseña y
// revoca todas las sesiones existentes del usuario.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	token = strings.TrimSpace(token)
	newPassword = strings.TrimSpace(newPassword)
	if token == "" || newPassword == "" {
		return ErrInvalidOneTimeToken
	}

	// Consumir primero: la entrada se borra atómicamente, así que de dos
	// canjes concurrentes del mismo token solo uno sigue adelante.
	record, err := s.resetTokens.Consume(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidOneTimeToken
		}
		return err
	}
	if time.Now().UTC().After(record.ExpiresAt) {
		return ErrInvalidOneTimeToken
	}

	hashBytes, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordByEmail(ctx, record.Email, string(hashBytes)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidOneTimeToken
		}
		return err
	}

	user, err := s.users.GetByEmail(ctx, record.Email)
	if err != nil {
		return err
	}
	return s.RevokeAllSessions(ctx, user.ID)
}

// RequestMagicLink emite un token de propósito único y lo envía por correo.
// No consulta si el email existe: eso se resuelve recién en el canje.
func (s *AuthService) RequestMagicLink(ctx context.Context, emailAddr string) error {
	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}
	if s.limiter != nil && !s.limiter.Allow(emailAddr) {
		return ErrRateLimited
	}

	token, err := s.tokens.GeneratePurposeToken(emailAddr, PurposeMagicLink, s.magicLinkTTL)
	if err != nil {
		return err
	}
	if s.emailSender != nil {
		if err := s.emailSender.SendMagicLink(ctx, emailAddr, token); err != nil && s.logger != nil {
			s.logger.Warn("send magic link failed", zap.Error(err), zap.String("email", emailAddr))
		}
	}
	return nil
}

func (s *AuthService) ExchangeMagicLink(ctx context.Context, token string) (LoginResult, error) {
	claims, err := s.tokens.ParsePurposeToken(token, PurposeMagicLink)
	if err != nil {
		return LoginResult{}, ErrInvalidOneTimeToken
	}

	user, err := s.users.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LoginResult{}, ErrUserNotFound
		}
		return LoginResult{}, err
	}
	return s.issueSession(ctx, user)
}

// SetupTwoFactor provisiona el secreto TOTP sin habilitar todavía el segundo
// factor; eso recién ocurre cuando el usuario demuestra un código válido.
func (s *AuthService) SetupTwoFactor(ctx context.Context, userID string) (TOTPEnrollment, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TOTPEnrollment{}, ErrUserNotFound
		}
		return TOTPEnrollment{}, err
	}

	enrollment, err := GenerateTOTPSecret(s.appName, user.Email)
	if err != nil {
		return TOTPEnrollment{}, err
	}
	if err := s.users.SetTwoFactorSecret(ctx, user.ID, enrollment.Secret); err != nil {
		return TOTPEnrollment{}, err
	}
	return enrollment, nil
}

func (s *AuthService) EnableTwoFactor(ctx context.Context, userID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}
	if user.TwoFactorSecret == "" {
		return ErrTwoFactorNotSetUp
	}
	if !VerifyTOTPCode(user.TwoFactorSecret, code) {
		return ErrInvalidTwoFactorCode
	}
	return s.users.EnableTwoFactor(ctx, user.ID)
}

func (s *AuthService) issueSession(ctx context.Context, user domain.User) (LoginResult, error) {
	pair, err := s.issueTokenPair(ctx, user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{User: user, Tokens: pair}, nil
}

func (s *AuthService) issueTokenPair(ctx context.Context, userID string) (TokenPair, error) {
	access, err := s.tokens.GenerateAccessToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, jti, err := s.tokens.GenerateRefreshToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.sessions.StoreRefresh(ctx, jti, userID, s.tokens.RefreshTTL()); err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// createWithDefaultRole persiste el usuario junto con el rol USER en una sola
// operación. Si el catálogo no tiene rol por defecto, el alta procede sin rol;
// cualquier otro fallo aborta el registro completo.
func (s *AuthService) createWithDefaultRole(ctx context.Context, user domain.User) error {
	role, err := s.roles.GetByName(ctx, domain.RoleUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.users.Create(ctx, user)
		}
		return err
	}
	return s.users.CreateWithRole(ctx, user, role.ID)
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
