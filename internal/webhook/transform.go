package webhook

import "github.com/gosnap/gosnap/internal/feedback"

// transformItem maps one widget feedback record into the store's
// creation input. The widget has no concept of intent or severity, so
// they are fixed to "fix" and "suggestion"; everything else it captured
// is folded verbatim into the metadata bundle. The widget's own ID
// becomes the external correlation ID so later update/delete events can
// re-address the record.
func transformItem(item *Item, page Page) feedback.CreateFeedbackInput {
	viewport := page.Viewport
	meta := &feedback.Metadata{
		StepNumber: item.StepNumber,
		PageCoords: &feedback.PageCoords{X: item.PageX, Y: item.PageY},
		AreaData:   item.AreaData,
		IsAreaOnly: item.IsAreaOnly,
		Viewport:   &viewport,
	}

	input := feedback.CreateFeedbackInput{
		Comment:    item.Content,
		PageURL:    page.URL,
		Element:    item.Selector,
		ExternalID: item.ID,
		Intent:     feedback.IntentFix,
		Severity:   feedback.SeveritySuggestion,
		Metadata:   meta,
	}

	if el := item.Element; el != nil {
		input.ElementPath = el.ElementPath
		meta.BoundingBox = el.BoundingBox
		meta.Accessibility = el.Accessibility
		meta.ElementDescription = el.ElementDescription
		meta.FullPath = el.FullPath
	}

	for _, el := range item.Elements {
		meta.Elements = append(meta.Elements, feedback.RelatedElement{
			Selector:           el.Selector,
			TagName:            el.TagName,
			ElementPath:        el.ElementPath,
			ElementDescription: el.ElementDescription,
			BoundingBox:        el.BoundingBox,
		})
	}

	return input
}
