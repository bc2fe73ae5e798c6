package whatsapp

import (
	"strconv"
	"strings"
)

// Kind is what an inbound message asks the bot to do.
type Kind string

const (
	KindUpload      Kind = "upload"
	KindUnsupported Kind = "unsupported_media"
	KindHelp        Kind = "help"
	KindReset       Kind = "reset"
	KindAsk         Kind = "ask"
	KindWelcome     Kind = "welcome"
)

// Message is one inbound Twilio webhook delivery.
type Message struct {
	From             string
	Body             string
	NumMedia         int
	MediaURL         string
	MediaContentType string
}

var (
	helpWords  = map[string]struct{}{"help": {}, "start": {}, "hello": {}, "hi": {}}
	resetWords = map[string]struct{}{"new": {}, "reset": {}, "clear": {}}
)

// Classify decides how the bot handles m. Media wins over text.
func Classify(m Message) Kind {
	if m.MediaURL != "" && (m.NumMedia > 0 || m.MediaContentType != "") {
		if strings.Contains(strings.ToLower(m.MediaContentType), "pdf") {
			return KindUpload
		}
		return KindUnsupported
	}
	body := strings.ToLower(strings.TrimSpace(m.Body))
	if body == "" {
		return KindWelcome
	}
	if _, ok := helpWords[body]; ok {
		return KindHelp
	}
	if _, ok := resetWords[body]; ok {
		return KindReset
	}
	return KindAsk
}

// parseNumMedia reads Twilio's NumMedia field, treating junk as zero.
func parseNumMedia(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
