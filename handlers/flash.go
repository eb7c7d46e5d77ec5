package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookieName = "nightboard_flash"

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Level   string `json:"l"`
	Message string `json:"m"`
}

func flashSuccess(msg string) Flash { return Flash{Level: "success", Message: msg} }
func flashError(msg string) Flash   { return Flash{Level: "error", Message: msg} }
func flashWarning(msg string) Flash { return Flash{Level: "warning", Message: msg} }
func flashInfo(msg string) Flash    { return Flash{Level: "info", Message: msg} }

// setFlashes stores messages for the next request, replacing any pending ones.
func setFlashes(w http.ResponseWriter, flashes ...Flash) {
	if len(flashes) == 0 {
		return
	}
	raw, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes reads pending messages and expires the cookie.
func popFlashes(w http.ResponseWriter, r *http.Request) []Flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	clearFlashes(w, r)
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var flashes []Flash
	if err := json.Unmarshal(raw, &flashes); err != nil {
		return nil
	}
	return flashes
}

func clearFlashes(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie(flashCookieName); err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// redirectWithFlash stores flashes and sends a 302 to target.
func redirectWithFlash(w http.ResponseWriter, r *http.Request, target string, flashes ...Flash) {
	setFlashes(w, flashes...)
	http.Redirect(w, r, target, http.StatusFound)
}
