package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const tokenCookieName = "__placement_optimiser_token"

var (
	errBadCredentials = errors.New("用户名不存在或密码错误")
	errInactiveUser   = errors.New("账号已停用")
)

// AuthClaims 的 Subject 是用户 ID
type AuthClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// checkPassword 区分密码错误和 bcrypt 自身的错误
func checkPassword(user *domain.User, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return errBadCredentials
	}
	return err
}

// authenticate 返回 errBadCredentials 或 errInactiveUser 时可以直接展示给用户
func (h *Handler) authenticate(username string, password string) (*domain.User, error) {
	user, err := h.store.GetUserByUsername(username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}

	if err := checkPassword(user, password); err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errInactiveUser
	}

	return user, nil
}

func (h *Handler) issueToken(user *domain.User, now time.Time) (string, time.Time, error) {
	expiration := now.Add(time.Duration(h.config.JWT.Expiration) * time.Second)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiration),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	})

	ss, err := token.SignedString([]byte(h.config.JWT.Secret))
	return ss, expiration, err
}

func (h *Handler) parseToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(h.config.JWT.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// sessionCookie 在生产环境中只允许通过 https 同站发送
func (h *Handler) sessionCookie(value string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     tokenCookieName,
		Value:    value,
		Expires:  expires,
		Path:     "/",
		HttpOnly: true,
	}
	if h.config.Environment == "production" {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteStrictMode
	}
	return cookie
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !h.decodeRequest(w, r, &req) {
		return
	}

	user, err := h.authenticate(req.Username, req.Password)
	switch {
	case errors.Is(err, errBadCredentials), errors.Is(err, errInactiveUser):
		h.errorResponse(w, r, err.Error())
		return
	case err != nil:
		h.internalServerError(w, r, err)
		return
	}

	ss, expiration, err := h.issueToken(user, time.Now())
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(ss, expiration))
	h.successResponse(w, r, "登录成功", user)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", time.Now().Add(-time.Hour)))
	h.successResponse(w, r, "登出成功", nil)
}
