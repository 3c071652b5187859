package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
}

func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (h *Handler) logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		level := slog.LevelInfo
		if rw.StatusCode >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "已处理请求",
			"status", rw.StatusCode, "ip", r.RemoteAddr, "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("处理请求时发生 panic", "method", r.Method, "path", r.URL.Path, "stack", string(debug.Stack()))
				h.internalServerError(w, r, fmt.Errorf("panic: %v", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// auth 把令牌中的角色和用户 ID 放入 context
func (h *Handler) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(tokenCookieName)
		if err != nil {
			h.errorResponse(w, r, "用户未登录")
			return
		}

		claims, err := h.parseToken(cookie.Value)
		if err != nil {
			h.errorResponse(w, r, "无效的令牌")
			return
		}

		ctx := context.WithValue(r.Context(), RoleCtxKey, claims.Role)
		ctx = context.WithValue(ctx, SubCtxKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// session 读取 auth 放入 context 的用户 ID 和角色
func session(r *http.Request) (int64, domain.Role, error) {
	sub, _ := r.Context().Value(SubCtxKey).(string)
	role, _ := r.Context().Value(RoleCtxKey).(string)

	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("令牌中的用户 ID %q 无效: %w", sub, err)
	}
	return userID, domain.Role(role), nil
}

func (h *Handler) myInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _, err := session(r)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}

		myInfo, err := h.store.GetUserByID(userID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "个人信息不存在")
			return
		case err != nil:
			h.internalServerError(w, r, err)
			return
		case !myInfo.IsActive:
			h.errorResponse(w, r, errInactiveUser.Error())
			return
		}

		ctx := context.WithValue(r.Context(), MyInfoCtx, myInfo)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) requireRole(roles ...domain.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, role, _ := session(r)
			if !slices.Contains(roles, role) {
				h.errorResponse(w, r, "权限不足")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loadByURLID 按路径中的 id 加载 name 对应的记录并放入 context
func loadByURLID[T any](h *Handler, key ContextKey, name string, load func(id int64) (T, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
			if err != nil {
				h.errorResponse(w, r, name+"ID无效")
				return
			}

			v, err := load(id)
			switch {
			case errors.Is(err, sql.ErrNoRows):
				h.errorResponse(w, r, name+"不存在")
				return
			case err != nil:
				h.internalServerError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), key, v)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *Handler) userInfo(next http.Handler) http.Handler {
	return loadByURLID(h, UserInfoCtx, "用户", func(id int64) (*domain.User, error) {
		return h.store.GetUserByID(id)
	})(next)
}

func (h *Handler) optimisationRun(next http.Handler) http.Handler {
	return loadByURLID(h, OptimisationRunCtx, "优化任务", func(id int64) (*domain.OptimisationRun, error) {
		return h.store.GetOptimisationRunByID(id)
	})(next)
}

// runVisible 对看不到的任务和不存在的任务返回相同的信息
func (h *Handler) runVisible(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, role, err := session(r)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}

		run := r.Context().Value(OptimisationRunCtx).(*domain.OptimisationRun)
		if !run.CanBeViewedBy(userID, role) {
			h.errorResponse(w, r, "优化任务不存在")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) preventOperateInitialAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := r.Context().Value(UserInfoCtx).(*domain.User)
		if user.Username == h.config.InitialAdmin.Username {
			h.errorResponse(w, r, "禁止操作初始管理员")
			return
		}
		next.ServeHTTP(w, r)
	})
}
