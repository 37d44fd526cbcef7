package preprocess

import (
	"github.com/hook-system/hook/internal/models"
	"github.com/rs/zerolog/log"
)

// Standardize normalizes every file into a comparison-friendly token stream.
// The output has one entry per input, in input order. A file that fails to
// lex keeps the tokens read before the error and is marked Partial.
func Standardize(files []*models.SubmittedFile) []*models.StandardizedFile {
	out := make([]*models.StandardizedFile, 0, len(files))
	for _, f := range files {
		std := StandardizeFile(f)
		if std.Partial {
			log.Warn().
				Str("file", f.Path).
				Str("owner", f.Owner).
				Str("error", std.LexError).
				Int("tokens", len(std.Tokens)).
				Msg("File only partially standardized")
		}
		out = append(out, std)
	}
	return out
}

// StandardizeFile normalizes a single file according to its language.
func StandardizeFile(f *models.SubmittedFile) *models.StandardizedFile {
	raw, lexErr := lex(f.Content, f.Language == models.LanguageJava)
	keywords := keywordsFor(f.Language)

	std := &models.StandardizedFile{
		Source:   f,
		Tokens:   make([]string, 0, len(raw)),
		Lines:    make([]int, 0, len(raw)),
		Partial:  lexErr != "",
		LexError: lexErr,
	}

	for i, tok := range raw {
		text := tok.text
		if tok.ident && !keywords[text] {
			text = PlaceholderVariable
			if i+1 < len(raw) && raw[i+1].text == "(" {
				text = PlaceholderFunction
			}
		}
		std.Tokens = append(std.Tokens, text)
		std.Lines = append(std.Lines, tok.line)
	}

	return std
}
