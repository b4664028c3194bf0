package bot

import (
	"strings"
	"unicode/utf8"
)

// TelegramMessageLimit: максимальная длина одного сообщения Telegram.
const TelegramMessageLimit = 4096

// SplitMessage режет текст на куски не длиннее limit символов.
// Режем по последнему переводу строки, если его нет, по пробелу, иначе жёстко.
func SplitMessage(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	for utf8.RuneCountInString(text) > limit {
		window := string([]rune(text)[:limit])

		cut := strings.LastIndex(window, "\n")
		if cut <= 0 {
			cut = strings.LastIndex(window, " ")
		}
		if cut <= 0 {
			cut = len(window)
		}

		chunks = append(chunks, strings.TrimRight(text[:cut], " \n"))
		text = strings.TrimLeft(text[cut:], " \n")
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
