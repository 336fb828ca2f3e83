package tui

import (
	"strings"
)

// SendsOnEnter reports whether a plain Enter submits the message.
// Wide terminals send on Enter; narrow ones keep Enter for new lines.
func SendsOnEnter(width, desktopMinWidth int) bool {
	return width >= desktopMinWidth
}

func isSendKey(key string, sendOnEnter bool) bool {
	if sendOnEnter {
		return key == "enter"
	}
	return key == "alt+enter"
}

func isNewlineKey(key string, sendOnEnter bool) bool {
	if sendOnEnter {
		return key == "alt+enter"
	}
	return key == "enter"
}

// slashCommand is a parsed "/name arg" line typed into the chat input
type slashCommand struct {
	name string
	arg  string
}

func parseSlash(input string) (slashCommand, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") || strings.HasPrefix(input, "//") {
		return slashCommand{}, false
	}
	name, arg, _ := strings.Cut(input[1:], " ")
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return slashCommand{}, false
	}
	return slashCommand{name: name, arg: strings.TrimSpace(arg)}, true
}

const helpText = "/profile  /password  /theme  /users [query]  /messages [user id]  /settings  /reload  /logout  /quit  ·  pgup/pgdown scroll"
