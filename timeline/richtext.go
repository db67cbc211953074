package timeline

import (
	"html"
	"sort"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
)

// renderFacets converts a post's text plus its facet annotations into HTML.
// Facet indices address UTF-8 byte offsets. Ranges are processed in ascending
// ByteStart order; a facet with an empty or inverted range, a range outside
// the text, or a range overlapping an earlier one is skipped. Literal text is
// HTML-escaped.
func renderFacets(text string, facets []*appbsky.RichtextFacet) string {
	if len(facets) == 0 {
		return html.EscapeString(text)
	}

	sorted := make([]*appbsky.RichtextFacet, 0, len(facets))
	for _, facet := range facets {
		if facet != nil && facet.Index != nil {
			sorted = append(sorted, facet)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index.ByteStart < sorted[j].Index.ByteStart
	})

	raw := []byte(text)
	var out []byte
	var cursor int64
	for _, facet := range sorted {
		start, end := facet.Index.ByteStart, facet.Index.ByteEnd
		if start < cursor || end <= start || end > int64(len(raw)) {
			continue
		}
		out = append(out, html.EscapeString(string(raw[cursor:start]))...)
		segment := html.EscapeString(string(raw[start:end]))
		if target := facetTarget(facet); target != "" {
			out = append(out, `<a href="`+html.EscapeString(target)+`">`+segment+`</a>`...)
		} else {
			out = append(out, segment...)
		}
		cursor = end
	}
	out = append(out, html.EscapeString(string(raw[cursor:]))...)
	return string(out)
}

// facetTarget picks the link destination of a facet's first recognized
// feature: an explicit link URI, a mentioned profile, or a hashtag search.
func facetTarget(facet *appbsky.RichtextFacet) string {
	for _, feature := range facet.Features {
		if feature == nil {
			continue
		}
		switch {
		case feature.RichtextFacet_Link != nil:
			return feature.RichtextFacet_Link.Uri
		case feature.RichtextFacet_Mention != nil:
			return "https://bsky.app/profile/" + feature.RichtextFacet_Mention.Did
		case feature.RichtextFacet_Tag != nil:
			return "https://bsky.app/hashtag/" + feature.RichtextFacet_Tag.Tag
		}
	}
	return ""
}
