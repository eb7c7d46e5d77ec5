// Package attachments maps uploaded filenames to display categories and
// storage locations. Everything here is a pure function of its inputs.
package attachments

import (
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Kind is the display category of an attachment.
type Kind string

const (
	KindImage        Kind = "image"
	KindVideo        Kind = "video"
	KindAudio        Kind = "audio"
	KindPDF          Kind = "pdf"
	KindText         Kind = "text"
	KindDocument     Kind = "document"
	KindSpreadsheet  Kind = "spreadsheet"
	KindPresentation Kind = "presentation"
	KindArchive      Kind = "archive"
	KindExecutable   Kind = "executable"
	KindCode         Kind = "code"
	KindFile         Kind = "file"
)

var kindsByExt = buildIndex(map[Kind][]string{
	KindImage:        {".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".svg", ".ico", ".tiff", ".tif"},
	KindVideo:        {".mp4", ".avi", ".mov", ".webm", ".mkv", ".flv", ".wmv", ".m4v", ".3gp", ".ogv"},
	KindAudio:        {".mp3", ".wav", ".ogg", ".m4a", ".aac", ".flac", ".wma"},
	KindPDF:          {".pdf"},
	KindText:         {".txt", ".md", ".log", ".cfg", ".ini", ".conf"},
	KindDocument:     {".doc", ".docx"},
	KindSpreadsheet:  {".xls", ".xlsx"},
	KindPresentation: {".ppt", ".pptx"},
	KindArchive:      {".zip", ".rar", ".7z", ".tar", ".gz", ".bz2", ".xz"},
	KindExecutable:   {".exe", ".msi", ".deb", ".rpm", ".dmg", ".app"},
	KindCode:         {".py", ".js", ".html", ".css", ".php", ".java", ".cpp", ".c", ".h", ".json", ".xml", ".sql"},
})

// The storage folder table is narrower than the display table: files land in
// "others" even when they classify as something more specific.
var foldersByExt = buildIndex(map[string][]string{
	"images":      {".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".svg"},
	"videos":      {".mp4", ".avi", ".mov", ".webm", ".mkv", ".flv", ".wmv"},
	"audio":       {".mp3", ".wav", ".ogg", ".m4a", ".aac", ".flac"},
	"documents":   {".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx"},
	"archives":    {".zip", ".rar", ".7z", ".tar", ".gz"},
	"executables": {".exe", ".msi", ".deb", ".rpm"},
	"code":        {".py", ".js", ".html", ".css", ".php", ".java", ".cpp", ".c", ".h"},
})

const defaultFolder = "others"

var icons = map[Kind]string{
	KindImage:        "🖼️",
	KindVideo:        "🎬",
	KindAudio:        "🎵",
	KindPDF:          "📄",
	KindText:         "📝",
	KindDocument:     "📄",
	KindSpreadsheet:  "📊",
	KindPresentation: "📽️",
	KindArchive:      "📦",
	KindExecutable:   "⚙️",
	KindCode:         "💻",
	KindFile:         "📎",
}

func buildIndex[K comparable](groups map[K][]string) map[string]K {
	idx := make(map[string]K)
	for k, exts := range groups {
		for _, ext := range exts {
			idx[ext] = k
		}
	}
	return idx
}

// Ext returns the lower-cased extension of name, including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// Classify returns the display category for a filename.
func Classify(name string) Kind {
	if k, ok := kindsByExt[Ext(name)]; ok {
		return k
	}
	return KindFile
}

// Folder returns the storage subfolder for a filename.
func Folder(name string) string {
	if f, ok := foldersByExt[Ext(name)]; ok {
		return f
	}
	return defaultFolder
}

// StorageKey builds uploads/<folder>/<YYYY>/<MM>/<DD>/<prefix>_<name>.
// The prefix keeps two uploads of the same name on the same day apart.
func StorageKey(now time.Time, prefix, name string) string {
	safe := SafeName(name)
	if prefix != "" {
		safe = prefix + "_" + safe
	}
	return path.Join("uploads", Folder(name), now.Format("2006"), now.Format("01"), now.Format("02"), safe)
}

// SafeName strips directories and characters that are awkward in object keys.
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

// IsImage reports whether a filename classifies as an image.
func IsImage(name string) bool { return Classify(name) == KindImage }

// IsVideo reports whether a filename classifies as a video.
func IsVideo(name string) bool { return Classify(name) == KindVideo }

// Icon returns the display glyph for a category.
func Icon(k Kind) string {
	if icon, ok := icons[k]; ok {
		return icon
	}
	return icons[KindFile]
}

var sizeUnits = []string{"B", "KB", "MB", "GB", "TB"}

// HumanSize formats a byte count for display with 1024-based steps and one
// decimal, e.g. "1.5 KB".
func HumanSize(size int64) string {
	if size <= 0 {
		return "0 B"
	}
	v := float64(size)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + " " + sizeUnits[i]
}

// ContentType guesses the MIME type from the extension.
func ContentType(name string) string {
	if ct := mime.TypeByExtension(Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Label is the upper-cased kind, as shown in admin listings.
func (k Kind) Label() string {
	return strings.ToUpper(string(k))
}

func (k Kind) String() string { return string(k) }

// Describe renders "name (kind, size)" for log lines and summaries.
func Describe(name string, size int64) string {
	return fmt.Sprintf("%s (%s, %s)", name, Classify(name), HumanSize(size))
}
