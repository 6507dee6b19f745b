package replacement

import (
	"fmt"
	"time"
)

// Template and container ids shared with the ad replacer.
const (
	ContainerID        = "adfriend-templates-container"
	QuoteTemplateID    = "quote-template"
	ReminderTemplateID = "reminder-template"
)

// TemplatesHTML returns the two <template> elements placed inside the
// hidden container. The reminder header is stamped with now as HH:MM.
func TemplatesHTML(now time.Time) string {
	return fmt.Sprintf(`<template id="%s"><div class="motivation-box"><div class="quote-content"><p class="quote-text"></p><p class="quote-author"></p></div></div></template>`+
		`<template id="%s"><div class="reminder-box"><div class="reminder-header"><span class="reminder-title">Daily Reminders</span><span class="reminder-timestamp">%s</span></div><div class="reminder-list-container"><div class="reminder-list"></div></div></div></template>`,
		QuoteTemplateID, ReminderTemplateID, now.Format("15:04"))
}
