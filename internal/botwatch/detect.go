package botwatch

import (
	"regexp"
	"sort"
	"strings"

	"github.com/you/eternalmod/internal/telegram"
)

var mentionRe = regexp.MustCompile(`(?i)@([a-zA-Z0-9_]{5,32}(?:_?bot|_?robot))\b`)

// Candidates returns the lower-cased bot handles a message exposes: a bot
// sender, a forward from a bot, @mentions of bot-like handles and hidden
// forward names that look like a bot.
func Candidates(msg *telegram.Message) []string {
	if msg == nil || msg.From == nil {
		return nil
	}
	set := make(map[string]struct{})
	add := func(name string) {
		name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "@"))
		if name != "" {
			set[name] = struct{}{}
		}
	}

	if msg.From.IsBot && msg.From.Username != "" {
		add(msg.From.Username)
	}

	forwarded := msg.ForwardFrom
	if forwarded == nil && msg.ForwardOrigin != nil {
		forwarded = msg.ForwardOrigin.SenderUser
	}
	if forwarded != nil && forwarded.IsBot && forwarded.Username != "" {
		add(forwarded.Username)
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		add(m[1])
	}

	hidden := msg.ForwardSenderName
	if hidden == "" && msg.ForwardOrigin != nil {
		hidden = msg.ForwardOrigin.SenderUserName
	}
	if pseudo, ok := hiddenBotName(hidden); ok {
		add(pseudo)
	}

	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func hiddenBotName(name string) (string, bool) {
	lower := strings.ToLower(name)
	if !strings.Contains(lower, "bot") {
		return "", false
	}
	pseudo := strings.ReplaceAll(strings.ReplaceAll(lower, " ", "_"), ".", "")
	if strings.HasSuffix(pseudo, "bot") {
		return pseudo, true
	}
	return "", false
}

// Key is the ledger key for a handle.
func Key(handle string) string {
	return "bot_" + strings.ToLower(handle)
}

// Display renders a ledger key as an @handle.
func Display(key string) string {
	return "@" + strings.TrimPrefix(strings.TrimPrefix(key, "bot_"), "mention_")
}
