// Package auth は管理者トークンの検証（発行は開発用CLIのみ）。
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const RoleAdmin = "ADMIN"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNotAdmin     = errors.New("admin only")
)

// AdminPrincipal は検証済みの管理者
type AdminPrincipal struct {
	UserID int64
	Role   string
}

func (p AdminPrincipal) ActorID() string { return strconv.FormatInt(p.UserID, 10) }

// Verifier はHS256のJWTを検証する
type Verifier struct {
	secret []byte
	now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret), now: time.Now}
}

// Parse は署名と期限を検証して sub/role を取り出す。
func (v *Verifier) Parse(raw string) (AdminPrincipal, error) {
	if raw == "" {
		return AdminPrincipal{}, ErrInvalidToken
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return AdminPrincipal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return AdminPrincipal{}, ErrInvalidToken
	}

	userID, err := parseUserID(claims["sub"])
	if err != nil || userID <= 0 {
		return AdminPrincipal{}, ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	if role == "" {
		return AdminPrincipal{}, ErrInvalidToken
	}
	return AdminPrincipal{UserID: userID, Role: role}, nil
}

// CurrentAdmin はADMINだけ通す
func (v *Verifier) CurrentAdmin(raw string) (AdminPrincipal, error) {
	p, err := v.Parse(raw)
	if err != nil {
		return AdminPrincipal{}, err
	}
	if p.Role != RoleAdmin {
		return AdminPrincipal{}, ErrNotAdmin
	}
	return p, nil
}

// Issue は管理者トークンを作る（cafe-api admin-token / テスト用）
func (v *Verifier) Issue(userID int64, role string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(userID, 10),
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// user_idをint64に変換する
func parseUserID(v interface{}) (int64, error) {
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, errors.New("invalid sub")
	}
}
