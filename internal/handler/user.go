package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/content-platform/internal/apperr"
	"github.com/iliyamo/content-platform/internal/middleware"
	"github.com/iliyamo/content-platform/internal/model"
	"github.com/iliyamo/content-platform/internal/moderation"
	"github.com/iliyamo/content-platform/internal/repository"
	"github.com/iliyamo/content-platform/internal/service"
	"github.com/iliyamo/content-platform/internal/storage"
	"github.com/iliyamo/content-platform/internal/utils"
)

// AdminInvalidator is notified whenever the admin set may have changed.
type AdminInvalidator interface {
	Invalidate(ctx context.Context)
}

// UserHandler bundles dependencies for the user endpoints.
type UserHandler struct {
	Users        repository.UserStore
	Tokens       *service.TokenService
	Admins       AdminInvalidator
	Uploads      storage.Uploader
	BcryptCost   int
	CookieSecure bool
}

// ----- DTOs -----

type registerReq struct {
	UserName string `json:"userName" form:"userName"`
	Email    string `json:"email" form:"email"`
	FullName string `json:"fullName" form:"fullName"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
}

func (r registerReq) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserName, validation.Required, validation.Length(3, 30)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, 100), is.Email),
		validation.Field(&r.FullName, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.Password, validation.Required, validation.Length(6, 100)),
	)
}

type loginReq struct {
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginReq) login() string {
	if s := strings.TrimSpace(r.Email); s != "" {
		return s
	}
	return strings.TrimSpace(r.UserName)
}

func (r loginReq) Validate() error {
	return validation.Errors{
		"login":    validation.Validate(r.login(), validation.Required.Error("username or email is required")),
		"password": validation.Validate(r.Password, validation.Required),
	}.Filter()
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

type roleReq struct {
	Role string `json:"role"`
}

func (r roleReq) Validate() error {
	return validation.ValidateStruct(&r, validation.Field(&r.Role, validation.Required))
}

type sessionResp struct {
	User *model.User `json:"user"`
	service.TokenPair
}

// Register creates an identity.  Only an authenticated admin may choose the
// role; everyone else gets a plain user whatever was requested.  Avatar and
// cover image are optional webp uploads.
func (h *UserHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.InvalidArgument, "invalid body", err)
	}
	req.UserName = model.NormalizeHandle(req.UserName)
	req.Email = model.NormalizeHandle(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := req.Validate(); err != nil {
		return err
	}

	var registrar *moderation.Actor
	if u := middleware.CurrentIdentity(c); u != nil {
		a := moderation.ActorOf(u)
		registrar = &a
	}
	role, err := moderation.RegistrationRole(registrar, req.Role)
	if err != nil {
		return err
	}

	hash, err := utils.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "could not hash password", err)
	}

	avatar, err := uploadImage(c, h.Uploads, "avatar", "avatars")
	if err != nil {
		return err
	}
	cover, err := uploadImage(c, h.Uploads, "coverImage", "covers")
	if err != nil {
		removeImage(c.Request().Context(), c, h.Uploads, avatar)
		return err
	}

	u := &model.User{
		ID:           uuid.NewString(),
		Username:     req.UserName,
		Email:        req.Email,
		FullName:     req.FullName,
		Avatar:       avatar,
		CoverImage:   cover,
		PasswordHash: hash,
		Role:         role,
	}
	if err := h.Users.Create(c.Request().Context(), u); err != nil {
		removeImage(c.Request().Context(), c, h.Uploads, avatar)
		removeImage(c.Request().Context(), c, h.Uploads, cover)
		return err
	}
	if role == model.RoleAdmin {
		h.Admins.Invalidate(c.Request().Context())
	}
	return respond(c, http.StatusCreated, u, "user created successfully")
}

// Login checks credentials by username or email and starts a session.
func (h *UserHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.InvalidArgument, "invalid body", err)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	ctx := c.Request().Context()
	u, err := h.Users.GetByLogin(ctx, req.login())
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(apperr.Unauthenticated, "invalid credentials")
	}
	if err != nil {
		return err
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return apperr.New(apperr.Unauthenticated, "invalid credentials")
	}
	if u.IsDisabled {
		return apperr.New(apperr.Forbidden, "your account has been disabled")
	}

	pair, err := h.Tokens.IssuePair(ctx, u)
	if err != nil {
		return err
	}
	h.setSessionCookies(c, pair)
	return respond(c, http.StatusOK, sessionResp{User: u, TokenPair: pair}, "user logged in successfully")
}

// RefreshToken rotates the refresh token presented in the cookie or the
// body.  A token that was already rotated is stale and the client has to
// log in again.
func (h *UserHandler) RefreshToken(c echo.Context) error {
	raw := ""
	if ck, err := c.Cookie(middleware.RefreshTokenCookie); err == nil {
		raw = strings.TrimSpace(ck.Value)
	}
	if raw == "" {
		var req refreshReq
		_ = c.Bind(&req)
		raw = strings.TrimSpace(req.RefreshToken)
	}
	if raw == "" {
		return apperr.Unauthorized(apperr.ReasonMissing, "refresh token is required")
	}

	u, pair, err := h.Tokens.Refresh(c.Request().Context(), raw)
	if err != nil {
		if apperr.Is(err, apperr.Unauthenticated) {
			h.clearSessionCookies(c)
		}
		return err
	}
	h.setSessionCookies(c, pair)
	return respond(c, http.StatusOK, sessionResp{User: u, TokenPair: pair}, "access token refreshed")
}

// Logout revokes the refresh token.  The identity may be the id-only stub
// built from an expired access token.
func (h *UserHandler) Logout(c echo.Context) error {
	u := middleware.CurrentIdentity(c)
	if err := h.Tokens.Revoke(c.Request().Context(), u.ID); err != nil {
		return err
	}
	h.clearSessionCookies(c)
	return respond(c, http.StatusOK, struct{}{}, "user logged out")
}

func (h *UserHandler) CurrentUser(c echo.Context) error {
	return respond(c, http.StatusOK, middleware.CurrentIdentity(c), "current user fetched successfully")
}

// DeleteAccount deletes the caller's own identity.
func (h *UserHandler) DeleteAccount(c echo.Context) error {
	u := middleware.CurrentIdentity(c)
	if err := h.remove(c, u); err != nil {
		return err
	}
	h.clearSessionCookies(c)
	return respond(c, http.StatusOK, struct{}{}, "account deleted successfully")
}

// UpdateRole lets an admin change the role of another identity.
func (h *UserHandler) UpdateRole(c echo.Context) error {
	target, err := h.target(c)
	if err != nil {
		return err
	}
	var req roleReq
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.InvalidArgument, "invalid body", err)
	}
	if err := req.Validate(); err != nil {
		return err
	}
	role, err := moderation.CanAssignRole(moderation.ActorOf(middleware.CurrentIdentity(c)), target, req.Role)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if err := h.Users.UpdateRole(ctx, target.ID, role); err != nil {
		return err
	}
	h.Admins.Invalidate(ctx)
	target.Role = role
	return respond(c, http.StatusOK, target, "user role updated successfully")
}

// ToggleDisabled flips the disabled flag of another identity.  Disabling
// also revokes the refresh token.
func (h *UserHandler) ToggleDisabled(c echo.Context) error {
	target, err := h.target(c)
	if err != nil {
		return err
	}
	if err := moderation.CanSetDisabled(moderation.ActorOf(middleware.CurrentIdentity(c)), target); err != nil {
		return err
	}
	if err := h.Users.SetDisabled(c.Request().Context(), target.ID, !target.IsDisabled); err != nil {
		return err
	}
	target.IsDisabled = !target.IsDisabled
	msg := "user enabled successfully"
	if target.IsDisabled {
		msg = "user disabled successfully"
	}
	return respond(c, http.StatusOK, target, msg)
}

// DeleteUser lets an admin delete another identity.
func (h *UserHandler) DeleteUser(c echo.Context) error {
	target, err := h.target(c)
	if err != nil {
		return err
	}
	if err := moderation.CanDeleteUser(moderation.ActorOf(middleware.CurrentIdentity(c)), target); err != nil {
		return err
	}
	if err := h.remove(c, target); err != nil {
		return err
	}
	return respond(c, http.StatusOK, struct{}{}, "user deleted successfully")
}

// AllUsers lists identities page by page for moderators and admins.
func (h *UserHandler) AllUsers(c echo.Context) error {
	if !middleware.CurrentIdentity(c).Role.IsPrivileged() {
		return apperr.New(apperr.Forbidden, "only admin and moderator can list users")
	}
	p := repository.ParsePage(c.QueryParam("page"), c.QueryParam("limit"))
	users, total, err := h.Users.List(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, echo.Map{"users": users, "pagination": p.Describe(total)}, "users fetched successfully")
}

// target loads the identity addressed by the :id path parameter.
func (h *UserHandler) target(c echo.Context) (*model.User, error) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperr.New(apperr.InvalidArgument, "invalid user id")
	}
	u, err := h.Users.GetByID(c.Request().Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Wrap(apperr.NotFound, "user not found", err)
	}
	return u, err
}

func (h *UserHandler) remove(c echo.Context, u *model.User) error {
	ctx := c.Request().Context()
	if err := h.Users.Delete(ctx, u.ID); err != nil {
		return err
	}
	removeImage(ctx, c, h.Uploads, u.Avatar)
	removeImage(ctx, c, h.Uploads, u.CoverImage)
	if u.Role == model.RoleAdmin {
		h.Admins.Invalidate(ctx)
	}
	return nil
}

func (h *UserHandler) setSessionCookies(c echo.Context, pair service.TokenPair) {
	c.SetCookie(h.cookie(middleware.AccessTokenCookie, pair.AccessToken, h.Tokens.AccessTTL()))
	c.SetCookie(h.cookie(middleware.RefreshTokenCookie, pair.RefreshToken, h.Tokens.RefreshTTL()))
}

func (h *UserHandler) clearSessionCookies(c echo.Context) {
	c.SetCookie(h.cookie(middleware.AccessTokenCookie, "", -time.Second))
	c.SetCookie(h.cookie(middleware.RefreshTokenCookie, "", -time.Second))
}

// cookie builds a session cookie.  A negative ttl deletes it.
func (h *UserHandler) cookie(name, value string, ttl time.Duration) *http.Cookie {
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	}
}
