package attachments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		name     string
		filename string
		expected Kind
	}{
		{"PNG", "photo.png", KindImage},
		{"Upper case extension", "PHOTO.JPEG", KindImage},
		{"TIFF only classifies", "scan.tif", KindImage},
		{"Video", "clip.webm", KindVideo},
		{"Audio", "song.flac", KindAudio},
		{"PDF", "paper.pdf", KindPDF},
		{"Text", "notes.md", KindText},
		{"Word", "report.docx", KindDocument},
		{"Excel", "sheet.xls", KindSpreadsheet},
		{"Slides", "deck.pptx", KindPresentation},
		{"Zip", "bundle.zip", KindArchive},
		{"Tarball keeps last extension", "src.tar.gz", KindArchive},
		{"Installer", "setup.msi", KindExecutable},
		{"Python", "script.py", KindCode},
		{"JSON", "data.json", KindCode},
		{"No extension", "Makefile", KindFile},
		{"Unknown", "thing.xyz", KindFile},
		{"Dotfile", ".bashrc", KindFile},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.filename))
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	for _, name := range []string{"a.png", "b.py", "c.zip"} {
		first := Classify(name)
		for i := 0; i < 50; i++ {
			assert.Equal(t, first, Classify(name))
		}
	}
	assert.Equal(t, KindImage, Classify(".png"))
	assert.Equal(t, KindCode, Classify(".py"))
	assert.Equal(t, KindArchive, Classify(".zip"))
}

func TestFolder(t *testing.T) {
	testCases := []struct {
		filename string
		expected string
	}{
		{"a.jpg", "images"},
		{"a.ico", "others"},
		{"a.mp4", "videos"},
		{"a.m4v", "others"},
		{"a.wav", "audio"},
		{"a.pdf", "documents"},
		{"a.xlsx", "documents"},
		{"a.7z", "archives"},
		{"a.bz2", "others"},
		{"a.deb", "executables"},
		{"a.c", "code"},
		{"a.json", "others"},
		{"a.txt", "others"},
	}
	for _, tc := range testCases {
		t.Run(tc.filename, func(t *testing.T) {
			assert.Equal(t, tc.expected, Folder(tc.filename))
		})
	}
}

func TestStorageKey(t *testing.T) {
	now := time.Date(2025, 7, 27, 13, 0, 0, 0, time.UTC)

	assert.Equal(t, "uploads/code/2025/07/27/ab12_dasd.py", StorageKey(now, "ab12", "dasd.py"))
	assert.Equal(t, "uploads/images/2025/07/27/x_my_cat.png", StorageKey(now, "x", "my cat.png"))
	assert.Equal(t, "uploads/others/2025/07/27/passwd", StorageKey(now, "", "../../etc/passwd"))
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "report_final.pdf", SafeName("report final.pdf"))
	assert.Equal(t, "evil.sh", SafeName(`C:\Users\me\evil.sh`))
	assert.Equal(t, "file", SafeName("..."))
	assert.Equal(t, "사진.png", SafeName("사진.png"))
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsImage("x.gif"))
	assert.False(t, IsImage("x.mp4"))
	assert.True(t, IsVideo("x.mp4"))
	assert.Equal(t, "💻", Icon(KindCode))
	assert.Equal(t, "📎", Icon(Kind("bogus")))
	assert.Equal(t, "0 B", HumanSize(0))
	assert.Equal(t, "1.0 KB", HumanSize(1024))
	assert.Equal(t, "10.0 B", HumanSize(10))
	assert.Equal(t, "1.5 KB", HumanSize(1536))
	assert.Equal(t, "500.0 MB", HumanSize(500*1024*1024))
	assert.Equal(t, "2.0 TB", HumanSize(2<<40))
	assert.Equal(t, "2048.0 TB", HumanSize(2<<50))
	assert.Equal(t, "image/png", ContentType("a.PNG"))
	assert.Equal(t, "application/octet-stream", ContentType("a.unknownext"))
	assert.Equal(t, "ARCHIVE", KindArchive.Label())
}
