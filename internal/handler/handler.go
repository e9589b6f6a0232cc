package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/Dan9191/microloan/internal/apperrors"
	"github.com/Dan9191/microloan/internal/middleware"
	"github.com/Dan9191/microloan/internal/service"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const (
	minLimit     = 1
	maxLimit     = 50
	defaultLimit = 20
)

type Handler struct {
	svc        *service.Service
	log        *logrus.Logger
	validator  *validator.Validate
	translator ut.Translator
}

func NewHandler(svc *service.Service, log *logrus.Logger) (*Handler, error) {
	v := validator.New()
	// report fields by their JSON names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	eng := en.New()
	uni := ut.New(eng, eng)

	trans, found := uni.GetTranslator("en")
	if !found {
		return nil, fmt.Errorf("translator not found")
	}
	if err := en_translations.RegisterDefaultTranslations(v, trans); err != nil {
		return nil, fmt.Errorf("failed to register translations: %w", err)
	}

	return &Handler{svc: svc, log: log, validator: v, translator: trans}, nil
}

// Routes builds the router; auth guards everything except the health check
func (h *Handler) Routes(auth mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(h.log))

	// Public routes
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	// Protected routes
	s := r.PathPrefix("/").Subrouter()
	s.Use(auth)
	s.HandleFunc("/loans", h.CreateLoan).Methods(http.MethodPost)
	s.HandleFunc("/loans", h.ListLoans).Methods(http.MethodGet)
	s.HandleFunc("/loans/count", h.TotalLoans).Methods(http.MethodGet)
	s.HandleFunc("/loans/{id:[0-9]+}", h.GetLoan).Methods(http.MethodGet)
	s.HandleFunc("/loans/{id:[0-9]+}/share", h.ShareAmount).Methods(http.MethodGet)
	s.HandleFunc("/loans/{id:[0-9]+}/repay", h.Repay).Methods(http.MethodPost)
	s.HandleFunc("/loans/{id:[0-9]+}/repayments/{account}", h.RepaymentStatus).Methods(http.MethodGet)
	s.HandleFunc("/loans/{id:[0-9]+}/fully-repaid", h.FullyRepaid).Methods(http.MethodGet)
	s.HandleFunc("/loans/{id:[0-9]+}/statement.xml", h.Statement).Methods(http.MethodGet)
	s.HandleFunc("/allowance", h.Approve).Methods(http.MethodPost)
	s.HandleFunc("/allowance", h.Allowance).Methods(http.MethodGet)
	s.HandleFunc("/accounts/{account}/balance", h.Balance).Methods(http.MethodGet)
	return r
}

// Health reports whether the store is reachable
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.log.WithError(err).Error("Health check failed")
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into dst and validates it
func (h *Handler) decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Invalid("body", "invalid request payload")
	}
	return h.validate(dst)
}

func (h *Handler) validate(dst interface{}) error {
	err := h.validator.Struct(dst)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return apperrors.Invalid("body", err.Error())
	}
	// report the first failure, translated
	return apperrors.Invalid(errs[0].Field(), errs[0].Translate(h.translator))
}

// accountParam reads and validates an account from the path
func (h *Handler) accountParam(r *http.Request) (string, error) {
	account := mux.Vars(r)["account"]
	if err := h.validator.Var(account, "required,eth_addr"); err != nil {
		return "", apperrors.Invalid("account", "must be a 0x-prefixed 40 hex digit address")
	}
	return account, nil
}

func loanIDParam(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, apperrors.Invalid("id", "invalid loan ID")
	}
	return id, nil
}

func caller(r *http.Request) (string, error) {
	account, ok := middleware.AccountFromContext(r.Context())
	if !ok {
		return "", apperrors.ErrUnauthorized
	}
	return account, nil
}

// pageParams parses start and count; count is clamped to [minLimit, maxLimit]
func pageParams(r *http.Request) (start, count int, err error) {
	count = defaultLimit
	if raw := r.FormValue("count"); raw != "" {
		if count, err = strconv.Atoi(raw); err != nil {
			return 0, 0, apperrors.Invalid("count", "invalid request count parameter")
		}
	}
	if raw := r.FormValue("start"); raw != "" {
		if start, err = strconv.Atoi(raw); err != nil {
			return 0, 0, apperrors.Invalid("start", "invalid request start parameter")
		}
	}

	if count > maxLimit {
		count = maxLimit
	}
	if count < minLimit {
		count = minLimit
	}
	if start < 0 {
		start = 0
	}
	return start, count, nil
}
