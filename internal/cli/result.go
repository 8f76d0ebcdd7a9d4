package cli

import (
	"fmt"
	"io"
)

type detail struct {
	key   string
	value any
}

// Result is a single-message outcome, such as a cursor reset.
// Created via Output.Result().
type Result struct {
	out     *Output
	meta    Meta
	message string
	details []detail
}

// With adds a detail. Details render in the order they were added.
func (r *Result) With(key string, value any) *Result {
	r.details = append(r.details, detail{key, value})
	return r
}

// Render outputs the result in the configured format.
func (r *Result) Render() error {
	return r.out.Render(r)
}

// Meta returns the metadata.
func (r *Result) Meta() Meta {
	return r.meta
}

// RenderText writes the message and details.
func (r *Result) RenderText(w io.Writer) error {
	if _, err := fmt.Fprintln(w, r.message); err != nil {
		return err
	}

	width := 0
	for _, d := range r.details {
		width = max(width, len(d.key)+1)
	}
	for _, d := range r.details {
		if _, err := fmt.Fprintf(w, "  %-*s  %s\n", width, d.key+":", display(d.value)); err != nil {
			return err
		}
	}
	return nil
}

// RenderJSON returns message and details as object.
func (r *Result) RenderJSON() any {
	result := make(map[string]any, len(r.details)+1)
	result["message"] = r.message
	for _, d := range r.details {
		result[toJSONKey(d.key)] = d.value
	}
	return result
}

// RenderMarkdown writes the result in markdown.
func (r *Result) RenderMarkdown(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "**%s**\n\n", r.message); err != nil {
		return err
	}
	for _, d := range r.details {
		if _, err := fmt.Fprintf(w, "- **%s:** %s\n", d.key, escapeMarkdown(display(d.value))); err != nil {
			return err
		}
	}
	return nil
}

// Error is a structured error result.
// Created via Output.Error().
type Error struct {
	out     *Output
	meta    Meta
	err     error
	code    string
	details []detail
}

// WithCode sets an error code.
func (e *Error) WithCode(code string) *Error {
	e.code = code
	return e
}

// With adds a detail.
func (e *Error) With(key string, value any) *Error {
	e.details = append(e.details, detail{key, value})
	return e
}

// Render outputs the error in the configured format.
func (e *Error) Render() error {
	return e.out.Render(e)
}

// Meta returns the metadata.
func (e *Error) Meta() Meta {
	return e.meta
}

func (e *Error) title() string {
	if e.code != "" {
		return fmt.Sprintf("Error [%s]", e.code)
	}
	return "Error"
}

// RenderText writes the error.
func (e *Error) RenderText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%s: %v\n", e.title(), e.err); err != nil {
		return err
	}
	for _, d := range e.details {
		if _, err := fmt.Fprintf(w, "  %s: %s\n", d.key, display(d.value)); err != nil {
			return err
		}
	}
	return nil
}

// RenderJSON returns error as object.
func (e *Error) RenderJSON() any {
	result := map[string]any{
		"error": e.err.Error(),
	}
	if e.code != "" {
		result["code"] = e.code
	}
	for _, d := range e.details {
		result[toJSONKey(d.key)] = d.value
	}
	return result
}

// RenderMarkdown writes the error in markdown.
func (e *Error) RenderMarkdown(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "> **%s:** %v\n", e.title(), e.err); err != nil {
		return err
	}
	if len(e.details) > 0 {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	for _, d := range e.details {
		if _, err := fmt.Fprintf(w, "- %s: %s\n", d.key, escapeMarkdown(display(d.value))); err != nil {
			return err
		}
	}
	return nil
}
