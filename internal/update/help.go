package update

import (
	"fmt"

	"github.com/sandeepkv93/dailyd/internal/views"
)

func (m Model) renderHelpView() string {
	var plain []string
	for _, group := range m.Keys.FullHelp() {
		for _, b := range group {
			h := b.Help()
			plain = append(plain, fmt.Sprintf("- %s: %s", h.Key, h.Desc))
		}
	}
	plain = append(plain, "", m.renderPending())
	return views.RenderHelpPanel(views.HelpPanelData{
		Bindings: plain,
		HelpView: m.helpModel.View(m.Keys),
	})
}
