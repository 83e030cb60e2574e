package document

import (
	"regexp"
	"strings"

	"documate/internal/models"
)

var (
	markdownRe = regexp.MustCompile(models.MarkdownRegex)
	bulletRe   = regexp.MustCompile(models.BulletRegex)
)

// CleanText removes markdown emphasis (**) and heading (##) markers. Removal
// repeats until none are left, since dropping "##" from "*##*" leaves "**".
func CleanText(text string) string {
	for markdownRe.MatchString(text) {
		text = markdownRe.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

// CleanBullet is CleanText plus removal of one leading bullet marker.
func CleanBullet(line string) string {
	return bulletRe.ReplaceAllString(CleanText(line), "")
}
