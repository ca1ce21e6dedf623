package usecase

import (
	"strings"

	"NewsForwarder/internal/domain"
)

// Action is the behaviour selected by an inline control.
type Action int

const (
	ActionForward Action = iota + 1
	ActionForwardSocial
	ActionShorts
)

const (
	forwardSocialPrefix = "forward_vk_"
	forwardPrefix       = "forward_"
	shortsPrefix        = "create_shorts_"
)

// Control is a decoded callback payload.
type Control struct {
	Action Action
	ID     string
}

// ParseControl routes a callback payload. forward_vk_ is checked before
// forward_ since the latter is a prefix of it.
func ParseControl(data string) (Control, bool) {
	prefixes := []struct {
		prefix string
		action Action
	}{
		{forwardSocialPrefix, ActionForwardSocial},
		{forwardPrefix, ActionForward},
		{shortsPrefix, ActionShorts},
	}
	for _, p := range prefixes {
		if rest, ok := strings.CutPrefix(data, p.prefix); ok {
			return Control{Action: p.action, ID: domain.NormalizeID(rest)}, true
		}
	}
	return Control{}, false
}

// Keyboard builds the three controls attached to every published article.
func Keyboard(id string, category domain.Category) domain.Keyboard {
	forwardText := "Переслать"
	if category == domain.CategoryFashion {
		forwardText = "Переслать в Fashion"
	}
	return domain.Keyboard{{
		{Text: forwardText, CallbackData: forwardPrefix + id},
		{Text: "Переслать и Опубликовать в VK", CallbackData: forwardSocialPrefix + id},
		{Text: "Создать Shorts", CallbackData: shortsPrefix + id},
	}}
}

func (a Action) String() string {
	switch a {
	case ActionForward:
		return "forward"
	case ActionForwardSocial:
		return "forward_social"
	case ActionShorts:
		return "shorts"
	}
	return "unknown"
}
