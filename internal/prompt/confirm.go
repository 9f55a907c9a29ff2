// Package prompt provides interactive terminal prompts.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrInterrupted is returned when the user presses Ctrl+C.
var ErrInterrupted = errors.New("interrupted")

// Confirm asks the user for yes/no confirmation in the terminal. Empty answer
// means no.
func Confirm(label string) (bool, error) {
	return confirm(promptui.Prompt{
		Label:     label + " [y/N]",
		IsConfirm: true,
	})
}

// ConfirmFrom is the same as Confirm but reads answer from in and writes the
// prompt to out.
func ConfirmFrom(in io.ReadCloser, out io.WriteCloser, label string) (bool, error) {
	return confirm(promptui.Prompt{
		Label:     label + " [y/N]",
		IsConfirm: true,
		Stdin:     in,
		Stdout:    out,
	})
}

func confirm(p promptui.Prompt) (bool, error) {
	return answer(p.Run())
}

func answer(result string, err error) (bool, error) {
	if err != nil {
		switch {
		case errors.Is(err, promptui.ErrInterrupt), errors.Is(err, promptui.ErrEOF):
			return false, ErrInterrupted
		case errors.Is(err, promptui.ErrAbort):
			// promptui returns ErrAbort for any answer but "y"
			return false, nil
		default:
			return false, fmt.Errorf("read answer: %w", err)
		}
	}

	result = strings.ToLower(strings.TrimSpace(result))

	return result == "y" || result == "yes", nil
}

// Always returns confirmation function which agrees without asking.
func Always(string) (bool, error) {
	return true, nil
}

// Password asks the user for the secret without echoing it.
func Password(label string) (string, error) {
	p := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}

	res, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
			return "", ErrInterrupted
		}
		return "", fmt.Errorf("read password: %w", err)
	}

	return res, nil
}
