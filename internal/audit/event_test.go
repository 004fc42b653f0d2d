package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	assert := assert.New(t)

	a := Fingerprint("you are an idiot")
	b := Fingerprint("you are an idiot")
	c := Fingerprint("you are an idiot!")

	assert.Equal(a, b, "same input must give same digest")
	assert.NotEqual(a, c)
	assert.Len(a, 64) // hex-encoded SHA-256
}

func TestExcerpt(t *testing.T) {
	assert := assert.New(t)

	short := "short excerpt"
	assert.Equal(short, Excerpt(short))

	long := strings.Repeat("a", MaxExcerptLen+50)
	assert.Len(Excerpt(long), MaxExcerptLen)

	// Рубим по рунам: многобайтовый текст не должен ломаться на границе
	cyrillic := strings.Repeat("ж", MaxExcerptLen+10)
	got := Excerpt(cyrillic)
	assert.Equal(MaxExcerptLen, len([]rune(got)))
	assert.Equal(strings.Repeat("ж", MaxExcerptLen), got)
}
