package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"securesign/internal/metrics"
	"securesign/internal/middleware"
	"securesign/internal/models"
	"securesign/internal/services"
)

type AuthHandler struct {
	userService  services.UserService
	metrics      *metrics.Metrics
	secureCookie bool
	log          *slog.Logger
	now          func() time.Time
}

// NewAuthHandler: secureCookie ставит флаг Secure на cookie сессии (production).
func NewAuthHandler(userService services.UserService, m *metrics.Metrics, secureCookie bool, log *slog.Logger) *AuthHandler {
	if log == nil {
		log = slog.Default()
	}
	return &AuthHandler{
		userService:  userService,
		metrics:      m,
		secureCookie: secureCookie,
		log:          log.With("component", "auth-handler"),
		now:          time.Now,
	}
}

// @Summary      Регистрация
// @Description  Создаёт аккаунт, отправляет код подтверждения на email и открывает сессию (cookie token)
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.SignupRequest  true  "Данные регистрации"
// @Success      201   {object}  models.APIResponse
// @Failure      400   {object}  models.APIResponse
// @Failure      429   {object}  models.APIResponse
// @Failure      500   {object}  models.APIResponse
// @Router       /auth/signup [post]
func (h *AuthHandler) Signup(c *gin.Context) {
	const op = "signup"

	var req models.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, op, "All fields are required", err)
		return
	}

	res, err := h.userService.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.fail(c, op, err, http.StatusBadRequest)
		return
	}

	h.setSessionCookie(c, res.Token, res.ExpiresAt)
	h.metrics.ObserveOperation(op, "success")
	c.JSON(http.StatusCreated, models.APIResponse{
		Success: true,
		Message: "User created successfully",
		User:    res.User,
	})
}

// @Summary      Подтверждение email
// @Description  Принимает 6-значный код, помечает аккаунт подтверждённым и отправляет приветственное письмо
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.VerifyEmailRequest  true  "Код подтверждения"
// @Success      200   {object}  models.APIResponse
// @Failure      400   {object}  models.APIResponse
// @Failure      429   {object}  models.APIResponse
// @Failure      500   {object}  models.APIResponse
// @Router       /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	const op = "verify_email"

	var req models.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, op, "Verification code is required", err)
		return
	}

	user, err := h.userService.VerifyEmail(c.Request.Context(), req.Code)
	if err != nil {
		// код уже погашен, но письмо не ушло: это ошибка сервера
		h.fail(c, op, err, http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveOperation(op, "success")
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Email verified successfully",
		User:    user,
	})
}

// @Summary      Вход в систему
// @Description  Проверяет email и пароль, обновляет lastLoginAt и открывает сессию (cookie token)
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.LoginRequest  true  "Данные для входа"
// @Success      200   {object}  models.APIResponse
// @Failure      400   {object}  models.APIResponse
// @Failure      429   {object}  models.APIResponse
// @Failure      500   {object}  models.APIResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	const op = "login"

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, op, "Email and password are required", err)
		return
	}

	res, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, op, err, http.StatusBadRequest)
		return
	}

	h.setSessionCookie(c, res.Token, res.ExpiresAt)
	h.metrics.ObserveOperation(op, "success")
	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Message: "Logged in successfully",
		User:    res.User,
	})
}

// @Summary      Выход
// @Description  Очищает cookie сессии; идемпотентно
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  models.APIResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	_ = h.userService.Logout(c.Request.Context(), middleware.SessionToken(c))

	h.clearSessionCookie(c)
	h.metrics.ObserveOperation("logout", "success")
	c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "Logged out successfully"})
}

// @Summary      Запрос сброса пароля
// @Description  Выдаёт одноразовый токен (1 час) и отправляет ссылку на email
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.ForgotPasswordRequest  true  "Email аккаунта"
// @Success      200   {object}  models.APIResponse
// @Failure      400   {object}  models.APIResponse
// @Failure      429   {object}  models.APIResponse
// @Failure      500   {object}  models.APIResponse
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	const op = "forgot_password"

	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, op, "Email is required", err)
		return
	}

	if err := h.userService.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.fail(c, op, err, http.StatusBadRequest)
		return
	}

	h.metrics.ObserveOperation(op, "success")
	c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "Password reset link sent to your email"})
}

// @Summary      Сброс пароля
// @Description  Гасит токен сброса и устанавливает новый пароль
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        token  path      string                       true  "Токен из письма"
// @Param        body   body      models.ResetPasswordRequest  true  "Новый пароль"
// @Success      200    {object}  models.APIResponse
// @Failure      400    {object}  models.APIResponse
// @Failure      429    {object}  models.APIResponse
// @Failure      500    {object}  models.APIResponse
// @Router       /auth/reset-password/{token} [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	const op = "reset_password"

	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, op, "Token and password are required", err)
		return
	}

	if err := h.userService.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		h.fail(c, op, err, http.StatusBadRequest)
		return
	}

	h.metrics.ObserveOperation(op, "success")
	c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "Password reset successful"})
}

// @Summary      Текущий пользователь
// @Description  Возвращает аккаунт по действующей сессии
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  models.APIResponse
// @Failure      400  {object}  models.APIResponse
// @Failure      401  {object}  models.APIResponse
// @Router       /auth/check-auth [get]
func (h *AuthHandler) CheckAuth(c *gin.Context) {
	const op = "check_auth"

	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, models.APIResponse{Success: false, Message: "Unauthorized - no token provided"})
		return
	}

	user, err := h.userService.CheckAuth(c.Request.Context(), userID)
	if err != nil {
		h.fail(c, op, err, http.StatusBadRequest)
		return
	}

	h.metrics.ObserveOperation(op, "success")
	c.JSON(http.StatusOK, models.APIResponse{Success: true, User: user})
}

func (h *AuthHandler) badRequest(c *gin.Context, op, msg string, err error) {
	h.log.InfoContext(c.Request.Context(), "bad request: bind json failed", "operation", op, "err", err)
	h.metrics.ObserveOperation(op, string(services.KindValidation))
	c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Message: msg})
}

// fail maps an auth error to its HTTP status. notificationStatus differs per
// operation: verify-email has already committed the account change.
func (h *AuthHandler) fail(c *gin.Context, op string, err error, notificationStatus int) {
	kind := services.KindOf(err)
	h.metrics.ObserveOperation(op, string(kind))

	status := http.StatusBadRequest
	switch kind {
	case services.KindNotificationFailed:
		status = notificationStatus
	case services.KindInternal:
		status = http.StatusInternalServerError
		h.log.ErrorContext(c.Request.Context(), "operation failed", "operation", op, "err", err)
	}

	c.JSON(status, models.APIResponse{Success: false, Message: services.PublicMessage(err)})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(h.now()).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteStrictMode,
	})
}
