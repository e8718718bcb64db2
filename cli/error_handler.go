package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/booth/errors"
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	w := h.Out
	prefix := errorStyle.Render("Error:")
	var details map[string]interface{}
	if be, ok := err.(*errors.BoothError); ok {
		details = be.Details
	}

	switch errors.GetCode(err) {
	case errors.ErrCodeDaemonNotRunning:
		fmt.Fprintf(w, "%s boothd is not running\n", prefix)
		fmt.Fprintln(w, mutedStyle.Render("Start it with 'boothd start'."))

	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(w, "%s configuration file not found: %v\n", prefix, details["path"])

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(w, "%s invalid configuration\n  %v\n", prefix, err)
		fmt.Fprintln(w, mutedStyle.Render("Check it with 'boothd config validate'."))

	case errors.ErrCodeSessionNotFound:
		if details["expired"] == true {
			fmt.Fprintf(w, "%s session '%v' has expired\n", prefix, details["session_id"])
		} else {
			fmt.Fprintf(w, "%s session '%v' not found\n", prefix, details["session_id"])
		}

	case errors.ErrCodePermissionDenied:
		fmt.Fprintf(w, "%s wrong admin PIN\n", prefix)

	default:
		fmt.Fprintf(w, "%s %v\n", prefix, err)
	}

	if h.Verbose {
		if be, ok := err.(*errors.BoothError); ok {
			fmt.Fprintf(w, "\nError details:\n%s\n", be.ToJSON())
		}
	}
	return err
}
