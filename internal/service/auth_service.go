package service

import (
	"github.com/YJLINa/peer-review-form/internal/config"
	"github.com/YJLINa/peer-review-form/internal/util"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 管理者登录，只有一个共享密码
type AuthService struct {
	Cfg *config.AdminConfig
}

func NewAuthService(cfg *config.AdminConfig) *AuthService {
	return &AuthService{Cfg: cfg}
}

func (s *AuthService) Login(password string) (string, error) {
	if s.Cfg.PasswordHash == "" || password == "" {
		return "", util.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.Cfg.PasswordHash), []byte(password)); err != nil {
		return "", util.ErrInvalidCredentials
	}
	return util.GenerateJWT(util.AdminRole, s.Cfg.JWTSecret, s.Cfg.ExpireTime)
}
