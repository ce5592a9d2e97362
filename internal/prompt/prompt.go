// Package prompt collects a document id from the user.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/starford/paperlink/internal/apperr"
	"github.com/starford/paperlink/internal/parser"
)

// Title is shown above the input.
const Title = "Enter DocumentId"

// ParseDocumentID validates user input as a non-negative decimal integer
// and returns its canonical decimal form ("007" becomes "7").
func ParseDocumentID(input string) (string, error) {
	s := strings.TrimSpace(input)
	if !parser.IsDocumentID(s) {
		return "", fmt.Errorf("prompt: %q is not a number: %w", input, apperr.ErrValidation)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return "", fmt.Errorf("prompt: %q is out of range: %w", input, apperr.ErrValidation)
	}
	return strconv.FormatUint(n, 10), nil
}

// Prompter asks for a document id on a line-oriented terminal.
type Prompter struct {
	In  io.Reader
	Out io.Writer
}

// Ask writes the prompt, reads one line and validates it. It returns
// ctx.Err() if ctx is cancelled before a line arrives.
func (p Prompter) Ask(ctx context.Context) (string, error) {
	if _, err := fmt.Fprintf(p.Out, "%s: ", Title); err != nil {
		return "", err
	}

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		if errors.Is(err, io.EOF) && line != "" {
			err = nil
		}
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-ch:
		if a.err != nil {
			return "", fmt.Errorf("prompt: read input: %w", a.err)
		}
		return ParseDocumentID(a.line)
	}
}
