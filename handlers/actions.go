// nightboard/handlers/actions.go
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Import gif decoder
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"nightboard/attachments"
	"nightboard/config"
	"nightboard/database"
	"nightboard/models"
	"nightboard/utils"

	"github.com/disintegration/imaging"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"
)

type postForm struct {
	Title   string `validate:"max=200"`
	Content string
}

type announcementForm struct {
	Title   string `validate:"required,max=200"`
	Content string `validate:"required"`
}

var postLabels = map[string]string{"Title": "title", "Content": "content"}

func renderPostForm(w http.ResponseWriter, r *http.Request, app App, status int, category *models.Category, input *models.FormInput, flashes ...Flash) {
	data := map[string]any{
		"Title":    "New post",
		"Category": category,
	}
	if category == nil {
		categories, err := app.DB().ListCategories()
		if err != nil {
			app.Logger().Error("Failed to list categories", "error", err)
		}
		data["Categories"] = categories
	}
	if input != nil {
		data["FormInput"] = input
	}
	if len(flashes) > 0 {
		data["Flashes"] = flashes
	}
	render(w, r, app, status, "post_form.html", data)
}

// HandleCreatePost serves both /create/ (category picked in the form) and
// /posts/{slug}/create/ (category fixed by the URL).
func HandleCreatePost(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleCreatePost")
	user := currentUser(r)

	var fixed *models.Category
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
		fixed = c
	}

	if r.Method != http.MethodPost {
		renderPostForm(w, r, app, http.StatusOK, fixed, &models.FormInput{CategoryID: r.URL.Query().Get("category")})
		return
	}

	if err := r.ParseMultipartForm(config.MaxMemoryUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		logger.Warn("Form parsing error", "error", err)
		renderPostForm(w, r, app, http.StatusBadRequest, fixed, nil, flashError("The upload could not be read. Please try again."))
		return
	}

	form := postForm{
		Title:   strings.TrimSpace(r.FormValue("title")),
		Content: r.FormValue("content"),
	}
	input := &models.FormInput{Title: form.Title, Content: form.Content, CategoryID: r.FormValue("category")}
	if err := validate.Struct(form); err != nil {
		renderPostForm(w, r, app, http.StatusBadRequest, fixed, input, errorFlashes(validationMessages(err, postLabels))...)
		return
	}
	if form.Title == "" {
		form.Title = config.DefaultPostTitle
	}

	category := fixed
	if category == nil {
		if input.CategoryID == "" {
			renderPostForm(w, r, app, http.StatusBadRequest, nil, input, flashError("Please select a category."))
			return
		}
		id, err := strconv.ParseInt(input.CategoryID, 10, 64)
		if err != nil {
			renderError(w, r, app, http.StatusNotFound, "Category not found.")
			return
		}
		c, err := app.DB().GetCategory(id)
		if errors.Is(err, database.ErrNotFound) {
			renderError(w, r, app, http.StatusNotFound, "Category not found.")
			return
		}
		if err != nil {
			logger.Error("Failed to load category", "category_id", id, "error", err)
			renderError(w, r, app, http.StatusInternalServerError, "Could not load category.")
			return
		}
		category = c
	}

	postID, err := app.DB().CreatePost(form.Title, form.Content, category.ID, user.ID)
	if err != nil {
		logger.Error("Failed to create post", "error", err)
		renderPostForm(w, r, app, http.StatusInternalServerError, fixed, input, flashError("An error occurred while creating the post."))
		return
	}
	postsCreated.Inc()
	logger.Info("Post created", "post_id", postID, "category", category.Slug, "user_id", user.ID)

	var files []*multipart.FileHeader
	if r.MultipartForm != nil {
		files = r.MultipartForm.File["files"]
	}
	uploaded, failed := saveAttachments(r.Context(), app, logger, postID, files)

	var flashes []Flash
	if uploaded > 0 {
		flashes = append(flashes, flashSuccess(fmt.Sprintf("Post created! (%d files uploaded)", uploaded)))
	} else {
		flashes = append(flashes, flashSuccess("Post created."))
	}
	if len(failed) > 0 {
		flashes = append(flashes, flashWarning("Some files could not be uploaded: "+strings.Join(failed, ", ")))
	}
	redirectWithFlash(w, r, fmt.Sprintf("/post/%d/", postID), flashes...)
}

// saveAttachments stores each uploaded file against postID. A failing file
// is logged and reported back by name; the rest are still processed.
func saveAttachments(ctx context.Context, app App, logger *slog.Logger, postID int64, files []*multipart.FileHeader) (int, []string) {
	var (
		uploaded int
		failed   []string
	)
	now := utils.GetSQLTime()
	for _, fh := range files {
		if fh.Size == 0 {
			continue
		}
		if err := saveAttachment(ctx, app, postID, fh, now); err != nil {
			attachmentFailures.Inc()
			logger.Error("Failed to store attachment", "post_id", postID, "filename", fh.Filename, "size", fh.Size, "error", err)
			failed = append(failed, attachments.SafeName(fh.Filename))
			continue
		}
		attachmentsUploaded.WithLabelValues(attachments.Classify(fh.Filename).String()).Inc()
		uploaded++
	}
	return uploaded, failed
}

func saveAttachment(ctx context.Context, app App, postID int64, fh *multipart.FileHeader, now time.Time) error {
	if fh.Size > config.MaxFileSize {
		return fmt.Errorf("file is %s, larger than the %s limit", attachments.HumanSize(fh.Size), attachments.HumanSize(config.MaxFileSize))
	}
	name := utils.Truncate(filepath.Base(strings.ReplaceAll(fh.Filename, "\\", "/")), config.MaxFilenameLen)

	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	key := attachments.StorageKey(now, uuid.New().String()[:8], name)
	stored, err := app.Storage().SaveFile(ctx, key, f, fh.Size, attachments.ContentType(name))
	if err != nil {
		return fmt.Errorf("save file: %w", err)
	}

	a := &models.Attachment{
		PostID:           postID,
		Path:             stored,
		StorageKey:       key,
		OriginalFilename: name,
		FileSize:         fh.Size,
		UploadedAt:       now,
	}
	if attachments.IsImage(name) {
		if thumb, err := storeThumbnail(ctx, app, key, f); err != nil {
			app.Logger().Warn("Thumbnail skipped", "key", key, "error", err)
		} else {
			a.ThumbnailPath.String, a.ThumbnailPath.Valid = thumb, true
		}
	}

	if err := app.DB().AddAttachment(a); err != nil {
		cleanup := []string{stored}
		if a.ThumbnailPath.Valid {
			cleanup = append(cleanup, a.ThumbnailPath.String)
		}
		removeFiles(app, cleanup)
		return err
	}
	return nil
}

// storeThumbnail writes a JPEG preview next to key and returns its path.
func storeThumbnail(ctx context.Context, app App, key string, src io.ReadSeeker) (string, error) {
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	buf, err := makeThumbnail(src)
	if err != nil {
		return "", err
	}
	thumbKey := strings.TrimSuffix(key, path.Ext(key)) + "_thumb.jpg"
	return app.Storage().SaveFile(ctx, thumbKey, buf, int64(buf.Len()), "image/jpeg")
}

func makeThumbnail(src io.ReadSeeker) (*bytes.Buffer, error) {
	cfg, _, err := image.DecodeConfig(src)
	if err != nil {
		return nil, fmt.Errorf("unsupported image: %w", err)
	}
	if cfg.Width > config.MaxThumbnailSide || cfg.Height > config.MaxThumbnailSide {
		return nil, fmt.Errorf("image dimensions %dx%d too large", cfg.Width, cfg.Height)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	thumb := imaging.Fit(img, config.ThumbnailWidth, config.ThumbnailHeight, imaging.Lanczos)
	buf := new(bytes.Buffer)
	if err := imaging.Encode(buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf, nil
}

// HandleCreateAnnouncement lets a superuser publish an announcement.
func HandleCreateAnnouncement(w http.ResponseWriter, r *http.Request, app App) {
	logger := app.Logger().With("handler", "HandleCreateAnnouncement")
	if r.Method != http.MethodPost {
		render(w, r, app, http.StatusOK, "announcement_form.html", map[string]any{"Title": "New announcement"})
		return
	}

	form := announcementForm{
		Title:   strings.TrimSpace(r.FormValue("title")),
		Content: strings.TrimSpace(r.FormValue("content")),
	}
	if err := validate.Struct(form); err != nil {
		render(w, r, app, http.StatusBadRequest, "announcement_form.html", map[string]any{
			"Title":     "New announcement",
			"FormInput": &models.FormInput{Title: form.Title, Content: form.Content},
			"Flashes":   errorFlashes(validationMessages(err, postLabels)),
		})
		return
	}

	user := currentUser(r)
	id, err := app.DB().CreateAnnouncement(form.Title, form.Content, user.ID)
	if err != nil {
		logger.Error("Failed to create announcement", "error", err)
		renderError(w, r, app, http.StatusInternalServerError, "Could not save the announcement.")
		return
	}
	logger.Info("Announcement posted", "announcement_id", id, "user_id", user.ID)
	redirectWithFlash(w, r, "/", flashSuccess("Announcement posted."))
}
