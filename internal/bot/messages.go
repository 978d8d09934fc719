package bot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"docbot/internal/domain"
)

const (
	msgWelcome          = "Hi! I can generate documents for you. Commands:"
	msgUnknownCommand   = "Unknown command. Send /help for the list."
	msgSendPhoto        = "Send a photo for /%s."
	msgUseCommandFirst  = "Use /%s first."
	msgGenerateFirst    = "Use a generate command first."
	msgPhotoFirst       = "Send a photo first."
	msgNoPhotoNeeded    = "/%s does not take a photo."
	msgPhotoUnavailable = "Could not read your photo, please send it again."
	msgInvalidParams    = "Invalid parameters: "
	msgCancelled        = "Cancelled."
	msgNothingToCancel  = "Nothing to cancel."
	msgProcessing       = "Processing, please wait..."
	msgDeliveryFailed   = "The document is ready but could not be sent. Please try again."
)

// failureText is the user-facing summary for a failed flow. Details stay in
// the log.
func failureText(err error) string {
	switch {
	case errors.Is(err, domain.ErrSubmit), errors.Is(err, domain.ErrPayment):
		return "Generation failed: API access or balance issue."
	case errors.Is(err, domain.ErrTimeout):
		return "Generation timed out. Please try again later."
	case errors.Is(err, domain.ErrRemoteTask):
		return "Generation failed: the service rejected the request."
	case errors.Is(err, domain.ErrDownload):
		return "Generation finished but the result could not be downloaded."
	default:
		return "Generation failed. Please try again later."
	}
}

// outcome labels a finished flow for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return "done"
	case errors.Is(err, domain.ErrSubmit):
		return "submit_failed"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrRemoteTask):
		return "remote_failed"
	case errors.Is(err, domain.ErrPayment):
		return "payment_failed"
	case errors.Is(err, domain.ErrDownload):
		return "download_failed"
	default:
		return "failed"
	}
}

func paramsPrompt(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Now send /params KEY=value ... to set the fields.")
	if len(keys) > 0 {
		b.WriteString(" Current values:")
		for _, k := range keys {
			fmt.Fprintf(&b, "\n%s=%s", k, fields[k])
		}
	}
	return b.String()
}
