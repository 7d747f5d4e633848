// File: internal/controller/messages.go
package controller

import "fmt"

// Feedback texts shown in the widget's status node. The empty-set message
// links out to the collaborator's assignment screen; everything else is plain
// text.
const (
	feedbackLoading         = "Loading available options…"
	feedbackControlsMissing = "The dependent options could not be found on this page. Reload and try again."
)

func feedbackSynced(count int) string {
	if count == 1 {
		return "1 option auto-checked for this selection."
	}
	return fmt.Sprintf("%d options auto-checked for this selection.", count)
}

func feedbackEmpty(assignURL string) string {
	if assignURL == "" {
		return "No options are available for this selection. Assign some first."
	}
	return fmt.Sprintf(
		`No options are available for this selection. <a href="%s">Assign options</a> first.`,
		assignURL,
	)
}
