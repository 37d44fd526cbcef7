package archive

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/hook-system/hook/internal/models"
)

// Top-level folders of a submission archive
const (
	RootCurrentYear   = "CurrentYear"
	RootPreviousYears = "PreviousYears"
	RootExclusions    = "Exclusions"
)

var ErrInvalidLayout = errors.New("invalid archive layout")

var extensions = map[string]models.Language{
	".c":    models.LanguageC,
	".h":    models.LanguageC,
	".cpp":  models.LanguageC,
	".hpp":  models.LanguageC,
	".java": models.LanguageJava,
}

// Member is an archive path classified by the layout rules
type Member struct {
	Path     string
	Owner    string
	Type     models.FileType
	Language models.Language
}

// LanguageOf returns the language family of a file name.
func LanguageOf(name string) (models.Language, bool) {
	lang, ok := extensions[strings.ToLower(path.Ext(name))]
	return lang, ok
}

// ParsePath classifies an archive member path.
//
// ok is false for members that are not part of the comparison: other roots
// and unsupported extensions. Student files must live in a student folder
// whose name ends with _<owner>; anything else is ErrInvalidLayout.
func ParsePath(name string) (m Member, ok bool, err error) {
	clean := path.Clean(strings.TrimPrefix(toSlash(name), "./"))
	parts := strings.Split(clean, "/")

	lang, known := LanguageOf(clean)
	if !known || len(parts) < 2 {
		return Member{}, false, nil
	}

	m = Member{Path: clean, Language: lang}
	switch parts[0] {
	case RootExclusions:
		m.Type = models.FileTypeWhitelist
		return m, true, nil
	case RootCurrentYear:
		m.Type = models.FileTypeCurrentYear
	case RootPreviousYears:
		m.Type = models.FileTypePreviousYear
	default:
		return Member{}, false, nil
	}

	if len(parts) < 3 {
		return Member{}, false, fmt.Errorf("%w: %s is not inside a student folder", ErrInvalidLayout, clean)
	}

	folder := parts[1]
	m.Owner = folder[strings.LastIndex(folder, "_")+1:]
	if m.Owner == "" {
		return Member{}, false, fmt.Errorf("%w: student folder %q has no owner token", ErrInvalidLayout, folder)
	}
	return m, true, nil
}

func toSlash(name string) string {
	return strings.ReplaceAll(name, "\\", "/")
}
