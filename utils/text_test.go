package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"General", "general"},
		{"Q&A  Corner", "q-a-corner"},
		{"Café Crème", "cafe-creme"},
		{"  --Hello--  ", "hello"},
		{"자유게시판", "자유게시판"},
		{"!!!", ""},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Slugify(tc.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héllo", Truncate("héllo world", 5))
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "", Truncate("x", 0))
}
