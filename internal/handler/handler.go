package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/config"
	"github.com/sysu-ecnc-dev/placement-optimiser/backend/internal/domain"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	store       Store
	translator  ut.Translator
	publisher   Publisher
	redisClient *redis.Client

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, store Store, publisher Publisher, rdb *redis.Client) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		store:       store,
		translator:  trans,
		publisher:   publisher,
		redisClient: rdb,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(h.requireRole(domain.RoleAdmin))
			r.Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).Delete("/", h.DeleteUser)
			})
		})

		r.Route("/wards", func(r chi.Router) {
			r.Get("/", h.GetAllWards)
			r.With(h.requireRole(domain.RoleAdmin)).Post("/", h.CreateWard)
			r.With(h.requireRole(domain.RoleAdmin)).Delete("/{id}", h.DeleteWard)
		})

		r.Route("/placements", func(r chi.Router) {
			r.Get("/", h.GetAllPlacements)
			r.With(h.requireRole(domain.RoleAdmin)).Post("/", h.CreatePlacement)
		})

		r.Get("/capacity-check", h.CheckCapacity)

		// 排班协调员只能看到自己提交的任务
		r.Route("/optimisation-runs", func(r chi.Router) {
			r.With(h.myInfo).Post("/", h.CreateOptimisationRun)
			r.Get("/", h.GetAllOptimisationRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.optimisationRun)
				r.Use(h.runVisible)
				r.Get("/", h.GetOptimisationRun)
				r.Get("/progress", h.GetOptimisationRunProgress)
				r.Get("/exports", h.GetOptimisationRunExports)
				r.Get("/exports/{name}", h.DownloadOptimisationRunExport)
			})
		})
	})
}
