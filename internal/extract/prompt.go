package extract

import "strings"

// BuildInstruction composes the fixed extraction instruction. The wording is
// deliberately stable across runs; only the attachment hints vary with what
// the renderer produced for this document.
func BuildInstruction(hasText, hasImages bool) string {
	given := []string{}
	if hasText {
		given = append(given, "- the text extracted from a PDF invoice")
	}
	if hasImages {
		given = append(given, "- one image per page of the invoice")
	}

	parts := []string{
		"You are an expert assistant.",
		"You are given:",
		strings.Join(given, "\n"),
		"Your task:",
		"- extract the relevant invoice information",
	}
	if hasText && hasImages {
		parts = append(parts, "- compare the extracted text with the images to validate correctness")
	}
	parts = append(parts,
		"- call the function "+FunctionName+" with the extracted values",
		"Do not hallucinate values. If a value is not visible on the invoice, do not invent it.",
	)
	return strings.Join(parts, "\n")
}

// BuildUserText packages the instruction together with the document's text
// layer, when one exists.
func BuildUserText(instruction, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return instruction
	}
	return instruction + "\n\n" + text
}
