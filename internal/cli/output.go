package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/pkordes/goat-attendance/internal/domain"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed, color.Bold)
)

// printError writes err to w with a short classification in front.
func printError(w io.Writer, err error) {
	label := "ERROR"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		label = "INVALID"
	case errors.Is(err, domain.ErrConnection):
		label = "UNREACHABLE"
	case errors.Is(err, domain.ErrNotFound):
		label = "NOT FOUND"
	}
	fmt.Fprintf(w, "%s %v\n", errColor.Sprint(label), err)
}
