// Package filter implements the message eligibility rules applied to each
// search page.
package filter

import "clearcord/internal/model"

// Rules configures which of the author's messages are excluded from
// processing. Excluded messages still count toward cursor advancement.
type Rules struct {
	// SkipPinned excludes pinned messages.
	SkipPinned bool
	// SkipMarked excludes messages whose content equals MarkerText.
	SkipMarked bool
	// MarkerText is the exact content matched by SkipMarked.
	MarkerText string
}

// Partition splits a page of search result groups into the author's hits
// and the subset eligible for action. Ordering within the page is preserved
// (newest first, as delivered).
func Partition(groups [][]model.Message, authorID string, rules Rules) (allHits, eligible []model.Message) {
	for _, group := range groups {
		for _, msg := range group {
			if !msg.Hit || msg.Author.ID != authorID {
				continue
			}
			allHits = append(allHits, msg)
			if rules.SkipPinned && msg.Pinned {
				continue
			}
			if rules.SkipMarked && msg.Content == rules.MarkerText {
				continue
			}
			eligible = append(eligible, msg)
		}
	}
	return allHits, eligible
}

// OldestHit returns the smallest snowflake among all hit entries in the
// page, regardless of author, and whether any hit exists.
func OldestHit(groups [][]model.Message) (model.Snowflake, bool) {
	var oldest model.Snowflake
	found := false
	for _, group := range groups {
		for _, msg := range group {
			if !msg.Hit {
				continue
			}
			if !found || msg.ID < oldest {
				oldest = msg.ID
				found = true
			}
		}
	}
	return oldest, found
}

// OldestID returns the smallest snowflake in msgs. msgs must not be empty.
func OldestID(msgs []model.Message) model.Snowflake {
	oldest := msgs[0].ID
	for _, m := range msgs[1:] {
		if m.ID < oldest {
			oldest = m.ID
		}
	}
	return oldest
}
