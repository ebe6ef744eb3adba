// Package runtime drives group sessions: it classifies incoming lines,
// applies them to the Group they target and owns the shared group
// registry. It contains no transport or presentation logic.
package runtime

import (
	"strings"

	"github.com/samber/lo"

	"chat-house/domain"
)

// Classify maps one raw input line to a routing intent. It is pure:
// no group state is consulted and no text is delivered.
//
//	@r1,r2 text  direct message to r1 and r2
//	-e1,e2 text  broadcast excluding e1 and e2
//	!cmd args    administrative command
//	(empty)      implicit quit
//	anything     plain broadcast
func Classify(line string) domain.Intent {
	if strings.TrimSpace(line) == "" {
		return domain.QuitIntent{}
	}
	switch line[0] {
	case '@':
		names, text := splitPayload(line[1:])
		return domain.DirectIntent{Receivers: names, Text: text}
	case '-':
		names, text := splitPayload(line[1:])
		return domain.ExceptIntent{Excluded: names, Text: text}
	case '!':
		word, arg, _ := strings.Cut(line[1:], " ")
		verb, ok := domain.ParseAdminVerb(word)
		if !ok {
			return domain.AdminIntent{Verb: domain.VerbUnknown}
		}
		if verb == domain.VerbQuit {
			return domain.QuitIntent{}
		}
		return domain.AdminIntent{Verb: verb, Arg: strings.TrimSpace(arg)}
	}
	return domain.BroadcastIntent{Text: line}
}

// splitPayload splits "<comma-separated names> <text>" into its parts.
func splitPayload(payload string) ([]string, string) {
	head, text, _ := strings.Cut(payload, " ")
	return SplitNames(head), strings.TrimSpace(text)
}

// SplitNames parses a comma-separated identity list, trimming whitespace
// and dropping empty entries.
func SplitNames(csv string) []string {
	return lo.FilterMap(strings.Split(csv, ","), func(name string, _ int) (string, bool) {
		name = strings.TrimSpace(name)
		return name, name != ""
	})
}
