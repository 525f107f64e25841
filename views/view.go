package views

import (
	"context"
	"strings"

	"github.com/a-h/templ"
)

//go:generate templ generate

// Render produces the Telegram HTML text of a component. Telegram keeps
// whitespace, so the blanks templ leaves at line ends are dropped.
func Render(ctx context.Context, component templ.Component) (string, error) {
	var sb strings.Builder
	if err := component.Render(ctx, &sb); err != nil {
		return "", err
	}
	lines := strings.Split(sb.String(), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
