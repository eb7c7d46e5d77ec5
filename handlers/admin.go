// nightboard/handlers/admin.go

package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"nightboard/config"
	"nightboard/database"
	"nightboard/utils"

	"github.com/go-chi/chi/v5"
)

// adminURL joins the configured admin mount point and suffix.
func adminURL(app App, suffix string) string {
	return strings.TrimSuffix(app.Settings().AdminPath, "/") + "/" + strings.TrimPrefix(suffix, "/")
}

// withQuery carries a search term over a redirect back to a list page.
func withQuery(target, q string) string {
	if q == "" {
		return target
	}
	return target + "?q=" + url.QueryEscape(q)
}

// formIDs reads every value of a repeated id field, skipping garbage.
func formIDs(r *http.Request, field string) []int64 {
	var ids []int64
	for _, raw := range r.Form[field] {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}

// HandleAdminDashboard shows entity counts and the latest admin actions.
func HandleAdminDashboard(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminDashboard")
	stats, err := app.DB().GetStats()
	if err != nil {
		logger.Error("Failed to load stats", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load statistics.")
		return
	}
	recent, err := app.DB().ListAdminActions(1, 10)
	if err != nil {
		logger.Error("Failed to load admin log", "error", err)
	}
	render(w, r, app, http.StatusOK, "admin_dashboard.html", map[string]any{
		"Title":   "Administration",
		"Stats":   stats,
		"Actions": recent,
	})
}

// HandleAdminProfiles lists profiles with their IP status.
func HandleAdminProfiles(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminProfiles")
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	total, err := app.DB().CountProfiles(q)
	if err != nil {
		logger.Error("Failed to count profiles", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load profiles.")
		return
	}
	pages := totalPages(total, config.AdminPageSize)
	page := pageParam(r, pages)
	profiles, err := app.DB().ListProfiles(q, page, config.AdminPageSize)
	if err != nil {
		logger.Error("Failed to list profiles", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load profiles.")
		return
	}
	render(w, r, app, http.StatusOK, "admin_profiles.html", merge(map[string]any{
		"Title":    "Profiles",
		"Profiles": profiles,
		"Query":    q,
		"Total":    total,
		"Actions": []map[string]string{
			{"Value": string(database.BlockIPOnly), "Label": "Block IP only (keep account)"},
			{"Value": string(database.DeleteUserOnly), "Label": "Delete user only (do not block IP)"},
			{"Value": string(database.DeleteUserAndBlockIP), "Label": "Delete user and block IP"},
		},
	}, paginationData(page, pages)))
}

// bulkSummary renders the one-line outcome of a bulk profile action.
func bulkSummary(action database.BulkAction, usersDeleted, postsDeleted, ipsBlocked int) string {
	switch action {
	case database.BlockIPOnly:
		return fmt.Sprintf("%d IP(s) blocked. (Accounts kept.)", ipsBlocked)
	case database.DeleteUserOnly:
		return fmt.Sprintf("%d user(s) and %d post(s) deleted. (IP not blocked.)", usersDeleted, postsDeleted)
	default:
		return fmt.Sprintf("%d user(s) and %d post(s) deleted, %d IP(s) blocked.", usersDeleted, postsDeleted, ipsBlocked)
	}
}

// HandleAdminProfilesBulk applies one of the bulk actions to the selected profiles.
func HandleAdminProfilesBulk(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminProfilesBulk")
	back := withQuery(adminURL(app, "profiles/"), r.FormValue("q"))

	action := database.BulkAction(r.FormValue("action"))
	if !action.Valid() {
		redirectWithFlash(w, r, back, flashError("Unknown action."))
		return
	}
	ids := formIDs(r, "selected")
	if len(ids) == 0 {
		redirectWithFlash(w, r, back, flashWarning("No profiles selected."))
		return
	}

	admin := currentUser(r)
	result, err := app.DB().ApplyBulkAction(admin.ID, action, ids)
	if err != nil {
		logger.Error("Bulk action failed", "action", action, "count", len(ids), "error", err)
		redirectWithFlash(w, r, back, flashError("The action failed and nothing was changed."))
		return
	}
	removeFiles(app, result.Files)

	logger.Info("Bulk action applied", "action", action, "admin_id", admin.ID,
		"users_deleted", result.UsersDeleted, "posts_deleted", result.PostsDeleted, "ips_blocked", result.IPsBlocked)
	redirectWithFlash(w, r, back, flashSuccess(bulkSummary(action, result.UsersDeleted, result.PostsDeleted, result.IPsBlocked)))
}

// HandleAdminBlockedIPs lists blocklist entries.
func HandleAdminBlockedIPs(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminBlockedIPs")
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	total, err := app.DB().CountBlockedIPs(q)
	if err != nil {
		logger.Error("Failed to count blocked IPs", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load the blocklist.")
		return
	}
	pages := totalPages(total, config.AdminPageSize)
	page := pageParam(r, pages)
	blocked, err := app.DB().ListBlockedIPs(q, page, config.AdminPageSize)
	if err != nil {
		logger.Error("Failed to list blocked IPs", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load the blocklist.")
		return
	}
	render(w, r, app, http.StatusOK, "admin_blocked_ips.html", merge(map[string]any{
		"Title":         "Blocked IPs",
		"BlockedIPs":    blocked,
		"Query":         q,
		"Total":         total,
		"DefaultReason": config.DefaultBlockReason,
	}, paginationData(page, pages)))
}

type blockForm struct {
	IP     string `validate:"required,ip"`
	Reason string `validate:"max=200"`
}

// HandleAdminBlockIP adds a single address to the blocklist.
func HandleAdminBlockIP(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminBlockIP")
	back := adminURL(app, "blocked-ips/")
	form := blockForm{
		IP:     strings.TrimSpace(r.FormValue("ip_address")),
		Reason: strings.TrimSpace(r.FormValue("reason")),
	}
	if err := validate.Struct(form); err != nil {
		redirectWithFlash(w, r, back, errorFlashes(validationMessages(err, map[string]string{"IP": "IP address", "Reason": "reason"}))...)
		return
	}

	ip := utils.NormalizeIP(form.IP)
	admin := currentUser(r)
	created, err := app.DB().BlockIP(admin.ID, ip, form.Reason)
	if err != nil {
		logger.Error("Failed to block IP", "ip", ip, "error", err)
		redirectWithFlash(w, r, back, flashError("Could not block the address."))
		return
	}
	if !created {
		redirectWithFlash(w, r, back, flashInfo(fmt.Sprintf("%s is already blocked.", ip)))
		return
	}
	logger.Info("IP blocked", "ip", ip, "admin_id", admin.ID)
	redirectWithFlash(w, r, back, flashSuccess(fmt.Sprintf("%s blocked.", ip)))
}

// HandleAdminUnblockIPs lifts the selected blocklist entries.
func HandleAdminUnblockIPs(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminUnblockIPs")
	back := withQuery(adminURL(app, "blocked-ips/"), r.FormValue("q"))
	ids := formIDs(r, "selected")
	if len(ids) == 0 {
		redirectWithFlash(w, r, back, flashWarning("No entries selected."))
		return
	}
	n, err := app.DB().UnblockIPs(currentUser(r).ID, ids)
	if err != nil {
		logger.Error("Failed to unblock IPs", "error", err)
		redirectWithFlash(w, r, back, flashError("Could not lift the selected blocks."))
		return
	}
	redirectWithFlash(w, r, back, flashSuccess(fmt.Sprintf("%d IP block(s) lifted.", n)))
}

// HandleAdminUsers lists accounts.
func HandleAdminUsers(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminUsers")
	total, err := app.DB().CountUsers()
	if err != nil {
		logger.Error("Failed to count users", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load users.")
		return
	}
	pages := totalPages(total, config.AdminPageSize)
	page := pageParam(r, pages)
	users, err := app.DB().ListUsers(page, config.AdminPageSize)
	if err != nil {
		logger.Error("Failed to list users", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load users.")
		return
	}
	render(w, r, app, http.StatusOK, "admin_users.html", merge(map[string]any{
		"Title": "Users",
		"Users": users,
		"Total": total,
	}, paginationData(page, pages)))
}

// HandleAdminToggleUser flips the superuser, staff or active flag.
func HandleAdminToggleUser(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminToggleUser")
	back := adminURL(app, "users/")
	id, ok := idParam(r)
	if !ok {
		renderError(w, r, app, http.StatusNotFound, "User not found.")
		return
	}
	flag := r.FormValue("flag")
	admin := currentUser(r)
	if id == admin.ID && flag != "staff" {
		redirectWithFlash(w, r, back, flashError("You cannot change that flag on your own account."))
		return
	}
	err := app.DB().ToggleUserFlag(admin.ID, id, flag)
	switch {
	case errors.Is(err, database.ErrNotFound):
		renderError(w, r, app, http.StatusNotFound, "User not found.")
		return
	case err != nil:
		logger.Error("Failed to toggle user flag", "user_id", id, "flag", flag, "error", err)
		redirectWithFlash(w, r, back, flashError("Could not update the user."))
		return
	}
	redirectWithFlash(w, r, back, flashSuccess("User updated."))
}

// HandleAdminDeleteUser removes an account and all of its posts.
func HandleAdminDeleteUser(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminDeleteUser")
	back := adminURL(app, "users/")
	id, ok := idParam(r)
	if !ok {
		renderError(w, r, app, http.StatusNotFound, "User not found.")
		return
	}
	admin := currentUser(r)
	if id == admin.ID {
		redirectWithFlash(w, r, back, flashError("You cannot delete your own account."))
		return
	}
	posts, files, err := app.DB().DeleteUser(admin.ID, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		renderError(w, r, app, http.StatusNotFound, "User not found.")
		return
	case err != nil:
		logger.Error("Failed to delete user", "user_id", id, "error", err)
		redirectWithFlash(w, r, back, flashError("Could not delete the user."))
		return
	}
	removeFiles(app, files)
	redirectWithFlash(w, r, back, flashSuccess(fmt.Sprintf("1 user(s) and %d post(s) deleted.", posts)))
}

// HandleAdminCategories lists categories with their post counts.
func HandleAdminCategories(w http.ResponseWriter, r *http.Request, app App) {
	categories, err := app.DB().ListCategories()
	if err != nil {
		app.Logger().Error("Failed to list categories", "handler", "HandleAdminCategories", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load categories.")
		return
	}
	render(w, r, app, http.StatusOK, "admin_categories.html", map[string]any{
		"Title":      "Categories",
		"Categories": categories,
	})
}

type categoryForm struct {
	Name string `validate:"required,max=50"`
	Slug string `validate:"required,max=50"`
}

// readCategoryForm derives the slug from the name when none is given.
func readCategoryForm(r *http.Request) (categoryForm, error) {
	form := categoryForm{
		Name: strings.TrimSpace(r.FormValue("name")),
		Slug: utils.Slugify(r.FormValue("slug")),
	}
	if form.Slug == "" {
		form.Slug = utils.Slugify(form.Name)
	}
	return form, validate.Struct(form)
}

var categoryLabels = map[string]string{"Name": "name", "Slug": "slug"}

// HandleAdminCreateCategory adds a category.
func HandleAdminCreateCategory(w http.ResponseWriter, r *http.Request, app App) {
	back := adminURL(app, "categories/")
	form, err := readCategoryForm(r)
	if err != nil {
		redirectWithFlash(w, r, back, errorFlashes(validationMessages(err, categoryLabels))...)
		return
	}
	_, err = app.DB().CreateCategory(currentUser(r).ID, form.Name, form.Slug)
	switch {
	case errors.Is(err, database.ErrCategoryExists):
		redirectWithFlash(w, r, back, flashError("A category with that name or slug already exists."))
		return
	case err != nil:
		app.Logger().Error("Failed to create category", "handler", "HandleAdminCreateCategory", "error", err)
		redirectWithFlash(w, r, back, flashError("Could not create the category."))
		return
	}
	redirectWithFlash(w, r, back, flashSuccess(fmt.Sprintf("Category %q created.", form.Name)))
}

// HandleAdminUpdateCategory renames a category.
func HandleAdminUpdateCategory(w http.ResponseWriter, r *http.Request, app App) {
	back := adminURL(app, "categories/")
	id, ok := idParam(r)
	if !ok {
		renderError(w, r, app, http.StatusNotFound, "Category not found.")
		return
	}
	form, err := readCategoryForm(r)
	if err != nil {
		redirectWithFlash(w, r, back, errorFlashes(validationMessages(err, categoryLabels))...)
		return
	}
	err = app.DB().UpdateCategory(currentUser(r).ID, id, form.Name, form.Slug)
	switch {
	case errors.Is(err, database.ErrNotFound):
		renderError(w, r, app, http.StatusNotFound, "Category not found.")
		return
	case errors.Is(err, database.ErrCategoryExists):
		redirectWithFlash(w, r, back, flashError("A category with that name or slug already exists."))
		return
	case err != nil:
		app.Logger().Error("Failed to update category", "handler", "HandleAdminUpdateCategory", "error", err)
		redirectWithFlash(w, r, back, flashError("Could not update the category."))
		return
	}
	redirectWithFlash(w, r, back, flashSuccess("Category updated."))
}

// HandleAdminDeleteCategory removes a category together with its posts.
func HandleAdminDeleteCategory(w http.ResponseWriter, r *http.Request, app App) {
	back := adminURL(app, "categories/")
	id, ok := idParam(r)
	if !ok {
		renderError(w, r, app, http.StatusNotFound, "Category not found.")
		return
	}
	files, err := app.DB().DeleteCategory(currentUser(r).ID, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		renderError(w, r, app, http.StatusNotFound, "Category not found.")
		return
	case err != nil:
		app.Logger().Error("Failed to delete category", "handler", "HandleAdminDeleteCategory", "error", err)
		redirectWithFlash(w, r, back, flashError("Could not delete the category."))
		return
	}
	removeFiles(app, files)
	redirectWithFlash(w, r, back, flashSuccess("Category deleted."))
}

// HandleAdminPosts lists posts with search and category filters.
func HandleAdminPosts(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminPosts")
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	filter := database.PostFilter{Search: q}
	if c, err := strconv.ParseInt(r.URL.Query().Get("category"), 10, 64); err == nil {
		filter.CategoryID = c
	}
	total, err := app.DB().CountPosts(filter)
	if err != nil {
		logger.Error("Failed to count posts", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load posts.")
		return
	}
	pages := totalPages(total, config.AdminPageSize)
	page := pageParam(r, pages)
	posts, err := app.DB().ListPosts(filter, page, config.AdminPageSize)
	if err != nil {
		logger.Error("Failed to list posts", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load posts.")
		return
	}
	categories, err := app.DB().ListCategories()
	if err != nil {
		logger.Error("Failed to list categories", "error", err)
	}
	render(w, r, app, http.StatusOK, "admin_posts.html", merge(map[string]any{
		"Title":      "Posts",
		"Posts":      posts,
		"Categories": categories,
		"Query":      q,
		"CategoryID": filter.CategoryID,
		"Total":      total,
	}, paginationData(page, pages)))
}

// HandleAdminTogglePin pins or unpins a post.
func HandleAdminTogglePin(w http.ResponseWriter, r *http.Request, app App) {
	back := adminURL(app, "posts/")
	id, ok := idParam(r)
	if !ok {
		renderError(w, r, app, http.StatusNotFound, "Post not found.")
		return
	}
	err := app.DB().TogglePin(currentUser(r).ID, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		renderError(w, r, app, http.StatusNotFound, "Post not found.")
		return
	case err != nil:
		app.Logger().Error("Failed to toggle pin", "handler", "HandleAdminTogglePin", "post_id", id, "error", err)
		redirectWithFlash(w, r, back, flashError("Could not update the post."))
		return
	}
	redirectWithFlash(w, r, back, flashSuccess("Post updated."))
}

// HandleAdminDeletePost removes a post and its attachments.
func HandleAdminDeletePost(w http.ResponseWriter, r *http.Request, app App) {
	back := adminURL(app, "posts/")
	id, ok := idParam(r)
	if !ok {
		renderError(w, r, app, http.StatusNotFound, "Post not found.")
		return
	}
	files, err := app.DB().DeletePost(currentUser(r).ID, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		renderError(w, r, app, http.StatusNotFound, "Post not found.")
		return
	case err != nil:
		app.Logger().Error("Failed to delete post", "handler", "HandleAdminDeletePost", "post_id", id, "error", err)
		redirectWithFlash(w, r, back, flashError("Could not delete the post."))
		return
	}
	removeFiles(app, files)
	redirectWithFlash(w, r, back, flashSuccess("Post deleted."))
}

// HandleAdminAttachments lists stored attachments.
func HandleAdminAttachments(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminAttachments")
	total, err := app.DB().CountAttachments()
	if err != nil {
		logger.Error("Failed to count attachments", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load attachments.")
		return
	}
	pages := totalPages(total, config.AdminPageSize)
	page := pageParam(r, pages)
	list, err := app.DB().ListAttachments(page, config.AdminPageSize)
	if err != nil {
		logger.Error("Failed to list attachments", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load attachments.")
		return
	}
	render(w, r, app, http.StatusOK, "admin_attachments.html", merge(map[string]any{
		"Title":       "Attachments",
		"Attachments": list,
		"Total":       total,
	}, paginationData(page, pages)))
}

// HandleAdminDeleteAttachment removes one attachment and its files.
func HandleAdminDeleteAttachment(w http.ResponseWriter, r *http.Request, app App) {
	back := adminURL(app, "attachments/")
	id, ok := idParam(r)
	if !ok {
		renderError(w, r, app, http.StatusNotFound, "Attachment not found.")
		return
	}
	files, err := app.DB().DeleteAttachment(currentUser(r).ID, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		renderError(w, r, app, http.StatusNotFound, "Attachment not found.")
		return
	case err != nil:
		app.Logger().Error("Failed to delete attachment", "handler", "HandleAdminDeleteAttachment", "attachment_id", id, "error", err)
		redirectWithFlash(w, r, back, flashError("Could not delete the attachment."))
		return
	}
	removeFiles(app, files)
	redirectWithFlash(w, r, back, flashSuccess("Attachment deleted."))
}

// HandleAdminAnnouncements lists every announcement.
func HandleAdminAnnouncements(w http.ResponseWriter, r *http.Request, app App) {
	list, err := app.DB().ListAnnouncements(0)
	if err != nil {
		app.Logger().Error("Failed to list announcements", "handler", "HandleAdminAnnouncements", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not load announcements.")
		return
	}
	render(w, r, app, http.StatusOK, "admin_announcements.html", map[string]any{
		"Title":         "Announcements",
		"Announcements": list,
	})
}

// HandleAdminDeleteAnnouncement removes an announcement.
func HandleAdminDeleteAnnouncement(w http.ResponseWriter, r *http.Request, app App) {
	back := adminURL(app, "announcements/")
	id, ok := idParam(r)
	if !ok {
		renderError(w, r, app, http.StatusNotFound, "Announcement not found.")
		return
	}
	err := app.DB().DeleteAnnouncement(currentUser(r).ID, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		renderError(w, r, app, http.StatusNotFound, "Announcement not found.")
		return
	case err != nil:
		app.Logger().Error("Failed to delete announcement", "handler", "HandleAdminDeleteAnnouncement", "error", err)
		redirectWithFlash(w, r, back, flashError("Could not delete the announcement."))
		return
	}
	redirectWithFlash(w, r, back, flashSuccess("Announcement deleted."))
}

// HandleAdminLog shows the admin action log.
func HandleAdminLog(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminLog")
	total, err := app.DB().CountAdminActions()
	if err != nil {
		logger.Error("Failed to count admin actions", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Failed to retrieve log.")
		return
	}
	pages := totalPages(total, config.AdminPageSize)
	page := pageParam(r, pages)
	actions, err := app.DB().ListAdminActions(page, config.AdminPageSize)
	if err != nil {
		logger.Error("Failed to list admin actions", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Failed to retrieve log.")
		return
	}
	render(w, r, app, http.StatusOK, "admin_log.html", merge(map[string]any{
		"Title":   "Admin log",
		"Actions": actions,
	}, paginationData(page, pages)))
}

// HandleAdminBackup writes an online copy of the database to the backup dir.
func HandleAdminBackup(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleAdminBackup")
	back := adminURL(app, "")
	backupPath, err := app.DB().BackupDatabase(app.Settings().BackupDir)
	if err != nil {
		logger.Error("Failed to create database backup", "error", err)
		redirectWithFlash(w, r, back, flashError("Failed to create database backup."))
		return
	}
	logger.Info("Database backup created successfully", "path", backupPath)

	tx, err := app.DB().DB.Begin()
	if err != nil {
		logger.Error("Failed to begin transaction for backup log", "error", err)
		redirectWithFlash(w, r, back, flashSuccess("Backup written to "+backupPath))
		return
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			logger.Error("Failed to rollback transaction", "error", err)
		}
	}()
	if err := database.LogAdminAction(tx, currentUser(r).ID, "database_backup", 0, backupPath); err != nil {
		logger.Error("Failed to log backup", "error", err)
	} else if err := tx.Commit(); err != nil {
		logger.Error("Failed to commit backup log", "error", err)
	}
	redirectWithFlash(w, r, back, flashSuccess("Backup written to "+backupPath))
}
