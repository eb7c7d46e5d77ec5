package handlers

import (
	"net/http"

	"nightboard/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRouter(app App) *chi.Mux {
	mux := chi.NewRouter()

	trusted, err := utils.ParseTrustedProxies(app.Settings().TrustedProxies)
	if err != nil {
		app.Logger().Error("Ignoring trusted proxies", "error", err)
		trusted = nil
	}

	mux.Use(middleware.RequestID)
	mux.Use(TrustedRealIP(trusted))
	mux.Use(NewStructuredLogger(app.Logger()))
	mux.Use(middleware.Recoverer)
	mux.Use(MetricsMiddleware)
	mux.Use(SessionMiddleware(app))

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		renderError(w, r, app, http.StatusNotFound, "Page not found.")
	})

	// Locally stored attachments
	if !app.Settings().S3.Enabled {
		mux.With(RequireLogin).Handle("/media/*", MediaHandler(app.Settings().MediaDir))
	}
	mux.With(RequireLAN).Handle("/metrics", promhttp.Handler())

	// Accounts
	mux.Get("/register/", MakeHandler(app, HandleRegister))
	mux.Post("/register/", MakeHandler(app, HandleRegister))
	mux.Get("/login/", MakeHandler(app, HandleLogin))
	mux.Post("/login/", MakeHandler(app, HandleLogin))
	mux.Get("/logout/", MakeHandler(app, HandleLogout))
	mux.Post("/logout/", MakeHandler(app, HandleLogout))
	mux.Get("/api/challenge", MakeHandler(app, HandleNewChallenge))

	// Forum, members only
	mux.Group(func(r chi.Router) {
		r.Use(RequireLogin)
		r.Get("/", MakeHandler(app, HandleHome))
		r.Get("/posts/", MakeHandler(app, HandlePostList))
		r.Get("/posts/{slug}/", MakeHandler(app, HandlePostList))
		r.Get("/post/{id}/", MakeHandler(app, HandlePostDetail))
		r.Get("/create/", MakeHandler(app, HandleCreatePost))
		r.Post("/create/", MakeHandler(app, HandleCreatePost))
		r.Get("/posts/{slug}/create/", MakeHandler(app, HandleCreatePost))
		r.Post("/posts/{slug}/create/", MakeHandler(app, HandleCreatePost))
	})

	mux.Group(func(r chi.Router) {
		r.Use(RequireAdmin(app))
		r.Get("/announcement/create/", MakeHandler(app, HandleCreateAnnouncement))
		r.Post("/announcement/create/", MakeHandler(app, HandleCreateAnnouncement))
	})

	// Admin console
	mux.Route(app.Settings().AdminPath, func(r chi.Router) {
		r.Use(RequireAdmin(app))
		r.Get("/", MakeHandler(app, HandleAdminDashboard))
		r.Post("/backup/", MakeHandler(app, HandleAdminBackup))
		r.Get("/log/", MakeHandler(app, HandleAdminLog))

		r.Get("/profiles/", MakeHandler(app, HandleAdminProfiles))
		r.Post("/profiles/bulk/", MakeHandler(app, HandleAdminProfilesBulk))

		r.Get("/blocked-ips/", MakeHandler(app, HandleAdminBlockedIPs))
		r.Post("/blocked-ips/add/", MakeHandler(app, HandleAdminBlockIP))
		r.Post("/blocked-ips/unblock/", MakeHandler(app, HandleAdminUnblockIPs))

		r.Get("/users/", MakeHandler(app, HandleAdminUsers))
		r.Post("/users/{id}/toggle/", MakeHandler(app, HandleAdminToggleUser))
		r.Post("/users/{id}/delete/", MakeHandler(app, HandleAdminDeleteUser))

		r.Get("/categories/", MakeHandler(app, HandleAdminCategories))
		r.Post("/categories/create/", MakeHandler(app, HandleAdminCreateCategory))
		r.Post("/categories/{id}/update/", MakeHandler(app, HandleAdminUpdateCategory))
		r.Post("/categories/{id}/delete/", MakeHandler(app, HandleAdminDeleteCategory))

		r.Get("/posts/", MakeHandler(app, HandleAdminPosts))
		r.Post("/posts/{id}/pin/", MakeHandler(app, HandleAdminTogglePin))
		r.Post("/posts/{id}/delete/", MakeHandler(app, HandleAdminDeletePost))

		r.Get("/attachments/", MakeHandler(app, HandleAdminAttachments))
		r.Post("/attachments/{id}/delete/", MakeHandler(app, HandleAdminDeleteAttachment))

		r.Get("/announcements/", MakeHandler(app, HandleAdminAnnouncements))
		r.Post("/announcements/{id}/delete/", MakeHandler(app, HandleAdminDeleteAnnouncement))
	})

	return mux
}
