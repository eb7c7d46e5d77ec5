// nightboard/handlers/render.go

package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"nightboard/attachments"
	"nightboard/config"
	"nightboard/models"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates *template.Template

var funcMap = template.FuncMap{
	"formatTime": func(t time.Time) string { return t.Local().Format("2006-01-02 15:04") },
	"formatISO":  func(t time.Time) string { return t.Format(time.RFC3339) },
	"timeAgo":    humanize.Time,
	"markdown":   renderMarkdown,
	"fileKind":   func(name string) string { return attachments.Classify(name).String() },
	"fileIcon":   func(name string) string { return attachments.Icon(attachments.Classify(name)) },
	"kindLabel":  func(name string) string { return attachments.Classify(name).Label() },
	"humanSize":  attachments.HumanSize,
	"isImage":    attachments.IsImage,
	"isVideo":    attachments.IsVideo,
	"truncate": func(max int, s string) string {
		runes := []rune(s)
		if len(runes) > max {
			return string(runes[:max]) + "..."
		}
		return s
	},
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
	"dict": func(values ...any) (map[string]any, error) {
		if len(values)%2 != 0 {
			return nil, fmt.Errorf("invalid dict call")
		}
		dict := make(map[string]any, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict keys must be strings")
			}
			dict[key] = values[i+1]
		}
		return dict, nil
	},
}

// LoadTemplates parses the embedded HTML templates.
func LoadTemplates() error {
	t, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	templates = t
	return nil
}

// render executes contentTmpl into the layout. Pending flash messages are
// consumed here and shown ahead of any passed in data["Flashes"].
func render(w http.ResponseWriter, r *http.Request, app App, status int, contentTmpl string, data map[string]any) {
	if data == nil {
		data = make(map[string]any)
	}
	logger := app.Logger().With("template", contentTmpl)

	data["SiteName"] = config.SiteName
	data["AppVersion"] = config.AppVersion
	data["AdminPath"] = app.Settings().AdminPath
	data["MaxFileSizeMB"] = config.MaxFileSize / 1024 / 1024
	data["CurrentUser"] = currentUser(r)
	if csrfToken, ok := r.Context().Value(CSRFTokenKey).(string); ok {
		data["csrfToken"] = csrfToken
	}
	flashes := popFlashes(w, r)
	if extra, ok := data["Flashes"].([]Flash); ok {
		flashes = append(flashes, extra...)
	}
	data["Flashes"] = flashes
	if _, ok := data["FormInput"]; !ok {
		data["FormInput"] = &models.FormInput{}
	}

	contentBuf := new(bytes.Buffer)
	if err := templates.ExecuteTemplate(contentBuf, contentTmpl, data); err != nil {
		logger.Error("Error rendering content template", "error", err)
		http.Error(w, "Failed to render page content", http.StatusInternalServerError)
		return
	}
	data["Content"] = template.HTML(contentBuf.String())

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.ExecuteTemplate(w, "layout.html", data); err != nil {
		logger.Error("Error rendering layout template", "error", err)
	}
}

// renderError shows a plain error page with the given status.
func renderError(w http.ResponseWriter, r *http.Request, app App, status int, message string) {
	render(w, r, app, status, "error.html", map[string]any{
		"Title":   http.StatusText(status),
		"Status":  status,
		"Message": message,
	})
}
