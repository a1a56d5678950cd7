package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"notecollab/backend/internal/notes"
)

var (
	// ErrAuthentication 令牌无效、过期或格式错误
	ErrAuthentication = errors.New("invalid credentials")
	// ErrAuthorization 用户不在笔记的 allowedUsers 中
	ErrAuthorization = errors.New("unauthorized access")
)

// Claims 外部签发的访问令牌。
// 主体放在 sub；旧的签发方把 userId 放在 token 字段里，作为兜底。
type Claims struct {
	Token string `json:"token,omitempty"`
	jwt.RegisteredClaims
}

// Credential 只能由 Verify 构造，拿到它就说明签名和过期时间已经校验过。
type Credential struct {
	subject   string
	expiresAt time.Time
}

func (c Credential) ExpiresAt() time.Time { return c.expiresAt }

// NoteFinder 只需要读 allowedUsers
type NoteFinder interface {
	FindOne(ctx context.Context, noteID string) (*notes.Note, error)
}

type Guard struct {
	secret      []byte
	notes       NoteFinder
	now         func() time.Time
	// exp - iat 的上限，0 表示不限制
	maxLifetime time.Duration
}

func NewGuard(secret string, finder NoteFinder) *Guard {
	return &Guard{secret: []byte(secret), notes: finder, now: time.Now}
}

// WithClock 替换时钟，测试用
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// WithMaxLifetime 拒绝有效期超过 d 的令牌；没有 iat 的令牌不检查
func (g *Guard) WithMaxLifetime(d time.Duration) *Guard {
	g.maxLifetime = d
	return g
}

// Verify 校验 HS256 签名与过期时间，任何异常都按失败处理。
func (g *Guard) Verify(token string) (Credential, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Credential{}, fmt.Errorf("%w: empty token", ErrAuthentication)
	}
	if len(g.secret) == 0 {
		return Credential{}, fmt.Errorf("%w: verifier has no secret", ErrAuthentication)
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if !parsed.Valid {
		return Credential{}, ErrAuthentication
	}

	if g.maxLifetime > 0 && claims.IssuedAt != nil {
		if lifetime := claims.ExpiresAt.Sub(claims.IssuedAt.Time); lifetime > g.maxLifetime {
			return Credential{}, fmt.Errorf("%w: token lifetime %v exceeds %v", ErrAuthentication, lifetime, g.maxLifetime)
		}
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.Token
	}
	if subject == "" {
		return Credential{}, fmt.Errorf("%w: missing subject", ErrAuthentication)
	}
	return Credential{subject: subject, expiresAt: claims.ExpiresAt.Time}, nil
}

// IdentityOf 返回已校验令牌中的 userId
func (g *Guard) IdentityOf(c Credential) string {
	return c.subject
}

// IsAuthorized 每次都回源文档存储，不缓存授权结果。
func (g *Guard) IsAuthorized(ctx context.Context, noteID, userID string) (bool, error) {
	note, err := g.notes.FindOne(ctx, noteID)
	if err != nil {
		return false, err
	}
	return note.Allows(userID), nil
}

// Authorize 校验令牌 -> 取 userId -> 查 allow-list，返回 userId
func (g *Guard) Authorize(ctx context.Context, noteID, token string) (string, error) {
	cred, err := g.Verify(token)
	if err != nil {
		return "", err
	}
	userID := g.IdentityOf(cred)
	ok, err := g.IsAuthorized(ctx, noteID, userID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: user %s on note %s", ErrAuthorization, userID, noteID)
	}
	return userID, nil
}
