package provider

import (
	"strings"

	"github.com/ckoons/argo-sub001/memory"
)

// augmentPrompt builds the fixed-shape context block spec §4.A step 1
// describes, prepending it to prompt when d is non-nil. With no digest
// bound, prompt passes through unchanged.
func augmentPrompt(d *memory.Digest, prompt string) string {
	if d == nil {
		return prompt
	}

	var b strings.Builder
	if notes := d.SunsetNotes(); notes != "" {
		b.WriteString("## Previous Session Summary\n")
		b.WriteString(notes)
		b.WriteString("\n\n")
	}
	if brief := d.SunriseBrief(); brief != "" {
		b.WriteString("## Session Context\n")
		b.WriteString(brief)
		b.WriteString("\n\n")
	}
	if crumbs := d.Breadcrumbs(); len(crumbs) > 0 {
		b.WriteString("## Progress Breadcrumbs\n")
		for _, c := range crumbs {
			b.WriteString("- ")
			b.WriteString(c)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if items := d.RelevantItems(10); len(items) > 0 {
		b.WriteString("## Relevant Context\n")
		for _, it := range items {
			b.WriteString("- [")
			b.WriteString(string(it.Type))
			b.WriteString("] ")
			b.Write(it.Content)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("## Current Task\n")
	b.WriteString(prompt)
	return b.String()
}
