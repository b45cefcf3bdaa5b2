package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/zylofm/internal/models"
	"github.com/desertthunder/zylofm/internal/shared"
)

var (
	_ list.Item = mixItem{}
	_ list.Item = requestItem{}
)

// mixItem wraps [models.Mix] to implement [list.Item].
type mixItem struct {
	mix *models.Mix
}

func (i mixItem) FilterValue() string { return i.mix.Title + " " + i.mix.DJName }
func (i mixItem) Title() string       { return i.mix.Title }
func (i mixItem) Description() string {
	parts := []string{valueOr(i.mix.DJName, "unknown DJ")}
	if i.mix.GenreName != "" {
		parts = append(parts, i.mix.GenreName)
	}
	parts = append(parts, shared.FormatDuration(i.mix.DurationSeconds), i.mix.CreatedAt.Format("2006-01-02"))
	return strings.Join(parts, " • ")
}

// requestItem wraps [models.DJRequest] to implement [list.Item].
type requestItem struct {
	req *models.DJRequest
}

func (i requestItem) FilterValue() string { return i.req.UserName + " " + i.req.UserEmail }
func (i requestItem) Title() string {
	return fmt.Sprintf("%s <%s>", valueOr(i.req.UserName, "unnamed"), i.req.UserEmail)
}
func (i requestItem) Description() string {
	desc := valueOr(i.req.Message, "no message")
	if i.req.PortfolioURL != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.req.PortfolioURL)
	}
	return desc
}

func valueOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
