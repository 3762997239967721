package service

import (
	"errors"
	"time"

	"github.com/dujiao-next/orderflow/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// ErrTokenInvalid 令牌无效
var ErrTokenInvalid = errors.New("token invalid")

// JWTClaims 管理员 JWT 声明
type JWTClaims struct {
	AdminID  uint   `json:"admin_id"`
	Username string `json:"username"`
	IsSuper  bool   `json:"is_super"`
	jwt.RegisteredClaims
}

// UserJWTClaims 用户 JWT 声明
type UserJWTClaims struct {
	UserID uint `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenService 签发与校验访问令牌；身份本身由上游账号系统维护
type TokenService struct {
	adminCfg config.JWTConfig
	userCfg  config.JWTConfig
	now      func() time.Time
}

// NewTokenService 创建令牌服务
func NewTokenService(adminCfg, userCfg config.JWTConfig) *TokenService {
	return &TokenService{adminCfg: adminCfg, userCfg: userCfg, now: time.Now}
}

// IssueAdminToken 签发管理员令牌
func (s *TokenService) IssueAdminToken(adminID uint, username string, isSuper bool) (string, time.Time, error) {
	if adminID == 0 {
		return "", time.Time{}, ErrTokenInvalid
	}
	now := s.now()
	expiresAt := now.Add(expireDuration(s.adminCfg))
	claims := JWTClaims{
		AdminID:  adminID,
		Username: username,
		IsSuper:  isSuper,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.adminCfg.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueUserToken 签发用户令牌
func (s *TokenService) IssueUserToken(userID uint) (string, time.Time, error) {
	if userID == 0 {
		return "", time.Time{}, ErrTokenInvalid
	}
	now := s.now()
	expiresAt := now.Add(expireDuration(s.userCfg))
	claims := UserJWTClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.userCfg.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAdminToken 校验管理员令牌
func ParseAdminToken(secretKey, tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	if err := parseHS256(secretKey, tokenString, claims); err != nil {
		return nil, err
	}
	if claims.AdminID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// ParseUserToken 校验用户令牌
func ParseUserToken(secretKey, tokenString string) (*UserJWTClaims, error) {
	claims := &UserJWTClaims{}
	if err := parseHS256(secretKey, tokenString, claims); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func parseHS256(secretKey, tokenString string, claims jwt.Claims) error {
	if secretKey == "" || tokenString == "" {
		return ErrTokenInvalid
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secretKey), nil
	})
	if err != nil {
		return errors.Join(ErrTokenInvalid, err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}

func expireDuration(cfg config.JWTConfig) time.Duration {
	if cfg.ExpireHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(cfg.ExpireHours) * time.Hour
}
