// nightboard/handlers/handlers.go

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"nightboard/config"
	"nightboard/database"
	"nightboard/models"

	"github.com/go-chi/chi/v5"
)

// App is an interface that defines the dependencies our handlers need.
type App interface {
	DB() *database.DatabaseService
	RateLimiter() *models.RateLimiter
	Challenges() *models.ChallengeStore
	Logger() *slog.Logger
	Storage() models.StorageService
	Settings() *config.Settings
}

// respondJSON sends a JSON response with a given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}, app App) {
	response, err := json.Marshal(payload)
	if err != nil {
		app.Logger().Error("Failed to marshal JSON payload", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if _, werr := w.Write([]byte(`{"error":"Failed to marshal JSON response"}`)); werr != nil {
			app.Logger().Error("Failed to write internal server error response", "error", werr)
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(response); err != nil {
		app.Logger().Error("Failed to write JSON response", "error", err)
	}
}

// MakeHandler adapts a handler that needs the App into an http.HandlerFunc.
func MakeHandler(app App, fn func(http.ResponseWriter, *http.Request, App)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(w, r, app)
	}
}

// HandleNewChallenge generates a new challenge and returns it as JSON.
func HandleNewChallenge(w http.ResponseWriter, r *http.Request, app App) {
	token, question := app.Challenges().GenerateChallenge()
	payload := map[string]string{
		"token":    token,
		"question": question,
	}
	respondJSON(w, http.StatusOK, payload, app)
}

// totalPages is never below 1, so an empty listing still has a page.
func totalPages(total, pageSize int) int {
	if total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// pageParam reads ?page=N. Garbage gives the first page; numbers outside
// [1, total] give the last page.
func pageParam(r *http.Request, total int) int {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1
	}
	page, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	if page < 1 || page > total {
		return total
	}
	return page
}

// generatePagination creates the list of page links for the UI.
func generatePagination(currentPage, totalPages int) []models.Page {
	if totalPages <= 1 {
		return nil
	}

	const pagesToShow = 2

	var pages []models.Page

	start := currentPage - pagesToShow
	end := currentPage + pagesToShow

	if start < 1 {
		end += (1 - start)
		start = 1
	}

	if end > totalPages {
		start -= (end - totalPages)
		end = totalPages
	}

	if start < 1 {
		start = 1
	}

	if start > 1 {
		pages = append(pages, models.Page{Number: 1})
		if start > 2 {
			pages = append(pages, models.Page{IsEllipsis: true})
		}
	}

	for i := start; i <= end; i++ {
		pages = append(pages, models.Page{Number: i, IsCurrent: i == currentPage})
	}

	if end < totalPages {
		if end < totalPages-1 {
			pages = append(pages, models.Page{IsEllipsis: true})
		}
		pages = append(pages, models.Page{Number: totalPages})
	}

	return pages
}

// paginationData is the common set of template keys for a paginated list.
func paginationData(page, pages int) map[string]any {
	return map[string]any{
		"CurrentPage": page,
		"TotalPages":  pages,
		"HasPrev":     page > 1,
		"HasNext":     page < pages,
		"Pagination":  generatePagination(page, pages),
	}
}

func merge(dst map[string]any, src map[string]any) map[string]any {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// removeFiles deletes stored files once the rows referencing them are gone.
// Failures are logged and otherwise ignored.
func removeFiles(app App, files []string) {
	if len(files) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, f := range files {
		if err := app.Storage().DeleteFile(ctx, f); err != nil {
			app.Logger().Error("Failed to delete stored file", "path", f, "error", err)
		}
	}
}

// HandleHome shows every announcement and the category list.
func HandleHome(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleHome")
	announcements, err := app.DB().ListAnnouncements(0)
	if err != nil {
		logger.Error("Failed to list announcements", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load announcements.")
		return
	}
	categories, err := app.DB().ListCategories()
	if err != nil {
		logger.Error("Failed to list categories", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load categories.")
		return
	}
	render(w, r, app, http.StatusOK, "home.html", map[string]any{
		"Title":         "Home",
		"Announcements": announcements,
		"Categories":    categories,
	})
}

// HandlePostList lists posts, optionally within the category named by {slug}.
func HandlePostList(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandlePostList")

	var category *models.Category
	if slug := chi.URLParam(r, "slug"); slug != "" {
		c, err := app.DB().GetCategoryBySlug(slug)
		if errors.Is(err, database.ErrNotFound) {
			renderError(w, r, app, http.StatusNotFound, "Category not found.")
			return
		}
		if err != nil {
			logger.Error("Failed to load category", "slug", slug, "error", err)
			renderError(w, r, app, http.StatusInternalServerError, "Could not load category.")
			return
		}
		category = c
	}

	filter := database.PostFilter{}
	if category != nil {
		filter.CategoryID = category.ID
	}
	total, err := app.DB().CountPosts(filter)
	if err != nil {
		logger.Error("Failed to count posts", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load posts.")
		return
	}
	pages := totalPages(total, config.PageSize)
	page := pageParam(r, pages)

	posts, err := app.DB().ListPosts(filter, page, config.PageSize)
	if err != nil {
		logger.Error("Failed to list posts", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load posts.")
		return
	}
	categories, err := app.DB().ListCategories()
	if err != nil {
		logger.Error("Failed to list categories", "error", err)
	}
	announcements, err := app.DB().ListAnnouncements(config.AnnouncementPreview)
	if err != nil {
		logger.Error("Failed to list announcements", "error", err)
	}

	title := "All posts"
	if category != nil {
		title = category.Name
	}
	render(w, r, app, http.StatusOK, "post_list.html", merge(map[string]any{
		"Title":         title,
		"Posts":         posts,
		"Category":      category,
		"Categories":    categories,
		"Announcements": announcements,
		"TotalPosts":    total,
	}, paginationData(page, pages)))
}

// HandlePostDetail shows a single post with its attachments.
func HandlePostDetail(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandlePostDetail")
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		renderError(w, r, app, http.StatusNotFound, "Post not found.")
		return
	}
	post, err := app.DB().GetPost(id)
	if errors.Is(err, database.ErrNotFound) {
		renderError(w, r, app, http.StatusNotFound, "Post not found.")
		return
	}
	if err != nil {
		logger.Error("Failed to load post", "post_id", id, "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load post.")
		return
	}
	render(w, r, app, http.StatusOK, "post_detail.html", map[string]any{
		"Title": post.Title,
		"Post":  post,
	})
}
