package moderation

import (
	"bufio"
	"embed"
	"fmt"
	"io/fs"
	"strings"

	"github.com/samber/lo"

	"chat-house/errors"
)

//go:embed censored/*.txt
var wordFiles embed.FS

// EmbeddedWords loads the censored word lists shipped with the binary.
// Lines are trimmed, comments (#) and blanks dropped, duplicates folded.
func EmbeddedWords() ([]string, error) {
	var words []string
	err := fs.WalkDir(wordFiles, "censored", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		file, err := wordFiles.Open(path)
		if err != nil {
			return fmt.Errorf("opening word list %s: %w", path, err)
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			words = append(words, strings.ToLower(word))
		}
		return scanner.Err()
	})
	if err != nil {
		return nil, err
	}
	words = lo.Uniq(words)
	if len(words) == 0 {
		return nil, errors.ErrEmptyWords
	}
	return words, nil
}
