package usecase

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const RoleAdmin = "ADMIN"

type AdminAuthUsecase struct {
	email        string
	passwordHash string
	verifier     PasswordVerifier
	issuer       TokenIssuer
	clock        Clock
	logger       *zap.Logger
}

func NewAdminAuthUsecase(email, passwordHash string, verifier PasswordVerifier, issuer TokenIssuer, clock Clock, logger *zap.Logger) *AdminAuthUsecase {
	return &AdminAuthUsecase{
		email:        strings.ToLower(strings.TrimSpace(email)),
		passwordHash: passwordHash,
		verifier:     verifier,
		issuer:       issuer,
		clock:        clock,
		logger:       logger,
	}
}

type AdminLoginInput struct {
	Email    string
	Password string
}

type AdminLoginOutput struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func (u *AdminAuthUsecase) Login(ctx context.Context, in AdminLoginInput) (AdminLoginOutput, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return AdminLoginOutput{}, NewHTTPError(http.StatusBadRequest, "email and password required")
	}

	//メールが違ってもbcryptは必ず実行する
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(u.email)) == 1
	passOK := u.verifier.Verify(u.passwordHash, in.Password)
	if !emailOK || !passOK {
		u.logger.Warn("admin login failed", zap.String("email", email))
		return AdminLoginOutput{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	token, exp, err := u.issuer.Issue(u.email, RoleAdmin, u.clock.Now())
	if err != nil {
		return AdminLoginOutput{}, NewHTTPError(http.StatusInternalServerError, "token error")
	}
	return AdminLoginOutput{AccessToken: token, ExpiresAt: exp}, nil
}
