package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nightboard/config"
	"nightboard/database"
	"nightboard/models"
	"nightboard/utils"
)

type registerForm struct {
	Username  string `validate:"required,max=150,username"`
	Email     string `validate:"omitempty,email,max=254"`
	Password  string `validate:"required,min=8"`
	Password2 string `validate:"required,eqfield=Password"`
}

var registerLabels = map[string]string{
	"Username":  "username",
	"Email":     "email",
	"Password":  "password",
	"Password2": "password confirmation",
}

func renderRegister(w http.ResponseWriter, r *http.Request, app App, status int, input *models.FormInput, flashes ...Flash) {
	token, question := app.Challenges().GenerateChallenge()
	data := map[string]any{
		"Title":             "Register",
		"ChallengeToken":    token,
		"ChallengeQuestion": question,
	}
	if input != nil {
		data["FormInput"] = input
	}
	if len(flashes) > 0 {
		data["Flashes"] = flashes
	}
	render(w, r, app, status, "register.html", data)
}

// HandleRegister serves and processes the sign-up form. Blocked addresses
// are turned away before the form is even looked at.
func HandleRegister(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleRegister")
	ip := utils.GetIPAddress(r)

	blocked, ok, err := app.DB().IsIPBlocked(ip)
	if err != nil {
		logger.Error("Blocklist lookup failed, refusing registration", "ip", ip, "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Registration is temporarily unavailable.")
		return
	}
	if ok {
		blockedAttempts.WithLabelValues("register").Inc()
		logger.Warn("Registration from blocked IP refused", "ip", ip)
		redirectWithFlash(w, r, "/login/", flashError(fmt.Sprintf(
			"Registration is not allowed from a blocked IP address. (Reason: %s)", blocked.Reason)))
		return
	}
	if currentUser(r) != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	if r.Method != http.MethodPost {
		renderRegister(w, r, app, http.StatusOK, nil)
		return
	}

	form := registerForm{
		Username:  strings.TrimSpace(r.FormValue("username")),
		Email:     strings.TrimSpace(r.FormValue("email")),
		Password:  r.FormValue("password1"),
		Password2: r.FormValue("password2"),
	}
	input := &models.FormInput{Username: form.Username, Email: form.Email}

	if !app.RateLimiter().Allow(ip) {
		renderRegister(w, r, app, http.StatusTooManyRequests, input, flashError("Too many attempts. Please wait a moment and try again."))
		return
	}
	if err := validate.Struct(form); err != nil {
		renderRegister(w, r, app, http.StatusBadRequest, input, errorFlashes(validationMessages(err, registerLabels))...)
		return
	}
	if !app.Challenges().Verify(r.FormValue("challenge_token"), r.FormValue("challenge_answer")) {
		renderRegister(w, r, app, http.StatusBadRequest, input, flashError("Incorrect answer to the anti-spam question."))
		return
	}

	hash, err := utils.HashPassword(form.Password)
	if err != nil {
		logger.Error("Failed to hash password", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not create account.")
		return
	}
	user, err := app.DB().CreateUser(form.Username, form.Email, hash, ip, false)
	if errors.Is(err, database.ErrUsernameTaken) {
		renderRegister(w, r, app, http.StatusBadRequest, input, flashError("A user with that username already exists."))
		return
	}
	if err != nil {
		logger.Error("Failed to create user", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not create account.")
		return
	}

	logger.Info("User registered", "user_id", user.ID, "username", user.Username, "ip", ip)
	redirectWithFlash(w, r, "/login/", flashSuccess("Registration complete. You can now log in."))
}

func renderLogin(w http.ResponseWriter, r *http.Request, app App, status int, username, next string, flashes ...Flash) {
	data := map[string]any{
		"Title":     "Log in",
		"Next":      next,
		"FormInput": &models.FormInput{Username: username},
	}
	if len(flashes) > 0 {
		data["Flashes"] = flashes
	}
	render(w, r, app, status, "login.html", data)
}

// HandleLogin serves and processes the login form.
func HandleLogin(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleLogin")
	ip := utils.GetIPAddress(r)
	next := r.FormValue("next")
	username := strings.TrimSpace(r.FormValue("username"))

	blocked, ok, err := app.DB().IsIPBlocked(ip)
	if err != nil {
		logger.Error("Blocklist lookup failed, refusing login", "ip", ip, "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Login is temporarily unavailable.")
		return
	}
	if ok {
		blockedAttempts.WithLabelValues("login").Inc()
		logger.Warn("Login from blocked IP refused", "ip", ip)
		renderLogin(w, r, app, http.StatusForbidden, username, next, flashError(fmt.Sprintf(
			"Login is not allowed from a blocked IP address. (Reason: %s)", blocked.Reason)))
		return
	}
	if r.Method != http.MethodPost {
		if currentUser(r) != nil {
			http.Redirect(w, r, safeNext(next), http.StatusFound)
			return
		}
		renderLogin(w, r, app, http.StatusOK, "", next)
		return
	}

	if !app.RateLimiter().Allow(ip) {
		renderLogin(w, r, app, http.StatusTooManyRequests, username, next, flashError("Too many login attempts. Please wait a moment and try again."))
		return
	}

	user, err := app.DB().GetUserByUsername(username)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		logger.Error("Failed to look up user", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not log in.")
		return
	}
	if user == nil || !user.IsActive || !utils.CheckPassword(user.PasswordHash, r.FormValue("password")) {
		renderLogin(w, r, app, http.StatusOK, username, next, flashError("Invalid username or password."))
		return
	}

	created, err := app.DB().RecordLogin(user.ID, ip)
	if err != nil {
		logger.Error("Failed to record login", "user_id", user.ID, "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not log in.")
		return
	}
	if created {
		logger.Info("Created missing profile on login", "user_id", user.ID, "ip", ip)
	}

	session, err := app.DB().CreateSession(user.ID, config.SessionLifetimeH*time.Hour)
	if err != nil {
		logger.Error("Failed to create session", "user_id", user.ID, "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not log in.")
		return
	}
	setSessionCookie(w, app, session)
	logger.Info("User logged in", "user_id", user.ID, "ip", ip)
	http.Redirect(w, r, safeNext(next), http.StatusFound)
}

// HandleLogout ends the current session.
func HandleLogout(w http.ResponseWriter, r *http.Request, app App) {
	if c, err := r.Cookie(config.SessionCookieName); err == nil && c.Value != "" {
		if err := app.DB().DeleteSession(c.Value); err != nil {
			app.Logger().Error("Failed to delete session", "error", err)
		}
	}
	clearSessionCookie(w, app)
	redirectWithFlash(w, r, "/login/", flashSuccess("You have been logged out safely."))
}
