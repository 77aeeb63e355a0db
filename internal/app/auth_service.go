package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/astevko/htmx-message-board/internal/model"
	"github.com/astevko/htmx-message-board/internal/pkg/jwtutil"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidCredential = errors.New("invalid username or password")
)

// Credential is the single demo account, fixed at process start. There is
// no registration or rotation; the password hash is computed once in
// bootstrap.
type Credential struct {
	Username     string
	PasswordHash string
}

func NewCredential(username, password string) (Credential, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Credential{}, fmt.Errorf("hash password failed: %w", err)
	}
	return Credential{Username: username, PasswordHash: string(hash)}, nil
}

type AuditPublisher interface {
	Publish(ctx context.Context, event model.AuditEvent) error
}

type AuthService struct {
	credential    Credential
	jwtSecret     string
	refreshSecret string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	auditPub      AuditPublisher
	securityLog   *zap.SugaredLogger
}

type SessionTokens struct {
	Access  string
	Refresh string
}

func NewAuthService(
	credential Credential,
	jwtSecret, refreshSecret string,
	accessTTL, refreshTTL time.Duration,
	auditPub AuditPublisher,
	securityLog *zap.SugaredLogger,
) *AuthService {
	if securityLog == nil {
		securityLog = zap.NewNop().Sugar()
	}
	return &AuthService{
		credential:    credential,
		jwtSecret:     jwtSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		auditPub:      auditPub,
		securityLog:   securityLog,
	}
}

func (s *AuthService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *AuthService) RefreshTTL() time.Duration { return s.refreshTTL }

// Authenticate verifies the submitted pair against the configured demo
// credential. The failure is the same whichever field was wrong; the
// internal distinction only reaches the security log and audit trail.
func (s *AuthService) Authenticate(username, password, clientIP string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return ErrInvalidInput
	}

	matched := username == s.credential.Username &&
		bcrypt.CompareHashAndPassword([]byte(s.credential.PasswordHash), []byte(password)) == nil

	s.recordLogin(username, clientIP, matched)
	if !matched {
		return ErrInvalidCredential
	}
	return nil
}

// IssueSession mints the access/refresh token pair for an authenticated
// subject, embedding the timezone submitted at login.
func (s *AuthService) IssueSession(subject, timezone string) (SessionTokens, error) {
	access, err := jwtutil.GenerateToken(s.jwtSecret, s.accessTTL, subject, timezone, jwtutil.TokenTypeAccess)
	if err != nil {
		return SessionTokens{}, fmt.Errorf("issue access token failed: %w", err)
	}
	refresh, err := jwtutil.GenerateToken(s.refreshSecret, s.refreshTTL, subject, timezone, jwtutil.TokenTypeRefresh)
	if err != nil {
		return SessionTokens{}, fmt.Errorf("issue refresh token failed: %w", err)
	}
	return SessionTokens{Access: access, Refresh: refresh}, nil
}

// Refresh trades a valid refresh token for a new access token.
func (s *AuthService) Refresh(refreshToken string) (string, error) {
	claims, err := jwtutil.ParseToken(s.refreshSecret, refreshToken, jwtutil.TokenTypeRefresh)
	if err != nil {
		return "", err
	}
	access, err := jwtutil.GenerateToken(s.jwtSecret, s.accessTTL, claims.Subject, claims.Timezone, jwtutil.TokenTypeAccess)
	if err != nil {
		return "", fmt.Errorf("issue access token failed: %w", err)
	}
	return access, nil
}

// ValidateAccess checks an access token and returns its claims.
func (s *AuthService) ValidateAccess(token string) (*jwtutil.Claims, error) {
	return jwtutil.ParseToken(s.jwtSecret, token, jwtutil.TokenTypeAccess)
}

func (s *AuthService) recordLogin(username, clientIP string, success bool) {
	if success {
		s.securityLog.Infow("successful login", "username", username, "client_ip", clientIP)
	} else {
		s.securityLog.Warnw("failed login attempt", "username", username, "client_ip", clientIP)
	}

	if s.auditPub == nil {
		return
	}
	event := model.AuditEvent{
		Action:    model.AuditActionLogin,
		Subject:   username,
		ClientIP:  clientIP,
		Success:   success,
		CreatedAt: time.Now().UTC(),
	}
	publishCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.auditPub.Publish(publishCtx, event); err != nil {
		s.securityLog.Warnw("publish audit event failed", "error", err)
	}
}
