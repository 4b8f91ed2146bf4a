// Copyright (c) 2026 Khaled Abbas
//
// This source code is licensed under the Business Source License 1.1.
//
// Change Date: 4 years after the first public release of this version.
// Change License: MIT
//
// On the Change Date, this version of the code automatically converts
// to the MIT License. Prior to that date, use is subject to the
// Additional Use Grant. See the LICENSE file for details.

package generator

import (
	"fmt"
	"strings"

	"codeforge/src/model"
)

// Attachment data URIs can be megabytes; prompts carry a reference, not the payload.
const attachmentPreviewLen = 100

func attachmentsSection(title string, attachments []model.Attachment) string {
	if len(attachments) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n\n## %s\n", title)
	for _, att := range attachments {
		preview := att.URL
		if len(preview) > attachmentPreviewLen {
			preview = preview[:attachmentPreviewLen] + "..."
		}
		fmt.Fprintf(&b, "- **%s**: %s\n", att.Name, preview)
	}
	return b.String()
}

func checksSection(title, intro string, checks []string) string {
	if len(checks) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n\n## %s\n%s\n", title, intro)
	for i, check := range checks {
		fmt.Fprintf(&b, "%d. %s\n", i+1, check)
	}
	return b.String()
}

func buildAppPrompt(brief string, checks []string, attachments []model.Attachment) string {
	return fmt.Sprintf(`You are an expert web developer building a complete web application.

## TASK BRIEF
%s%s%s

## REQUIREMENTS

1. **Single File**: The entire application must be one self-contained HTML file
2. **No Build Step**: Use only inline CSS/JavaScript or CDN links
3. **Complete**: Every feature in the brief must work without further edits
4. **Pass All Checks**: The code must satisfy every evaluation check listed above
5. **Use Attachments**: Reference the attached files where the brief calls for them

## OUTPUT FORMAT

Provide ONLY the complete HTML code. Do not include explanations.
Start directly with:
`+"```html"+`
<!DOCTYPE html>
<html lang="en">
...
`+"```"+`

Now generate the complete HTML code.`,
		brief,
		attachmentsSection("ATTACHMENTS", attachments),
		checksSection("EVALUATION CHECKS", "The code must pass:", checks))
}

func buildReadmePrompt(brief string, checks []string) string {
	return fmt.Sprintf(`Write a README.md for a single-file web application.

## APPLICATION BRIEF
%s%s

## README INSTRUCTIONS

1. **Title and Summary**: Name the application and describe what it does
2. **Features**: List the implemented features
3. **Usage**: Explain how to open and use the application
4. **Professional Tone**: Ensure clarity and completeness

## OUTPUT FORMAT

Provide ONLY the complete markdown content. Start directly with:
`+"```markdown"+`
# Project Title
...
`+"```"+`

Generate the README.md now.`,
		brief,
		checksSection("FEATURES TO DOCUMENT", "The application provides:", checks))
}

func revisionAppPrompt(existingHTML, newBrief string, newChecks []string, newAttachments []model.Attachment) string {
	return fmt.Sprintf(`You are an expert web developer tasked with updating an existing application.

## EXISTING CODE (Round 1)
`+"```html"+`
%s
`+"```"+`

## NEW REQUIREMENTS (Round 2)
%s%s%s

## REVISION INSTRUCTIONS

1. **Preserve Existing Functionality**: Keep all features from Round 1 working
2. **Add New Features**: Implement the new requirements from the brief
3. **Maintain Code Quality**: Ensure clean, well-commented code
4. **Update Inline**: Modify the existing HTML structure rather than rewriting from scratch
5. **Test Compatibility**: Ensure new features don't break existing ones
6. **Keep Single File**: Maintain the single-file HTML structure

## WHAT TO PRESERVE

- Existing UI elements and their IDs/classes
- Original functionality and behavior
- Existing CDN links
- Overall application structure

## OUTPUT FORMAT

Provide ONLY the complete UPDATED HTML code. Do not include explanations.
Start directly with:
`+"```html"+`
<!DOCTYPE html>
<html lang="en">
...
`+"```"+`

The updated code must be a complete, working application that includes BOTH the original features AND the new requirements.

Now generate the complete updated HTML code.`,
		existingHTML,
		newBrief,
		attachmentsSection("NEW ATTACHMENTS", newAttachments),
		checksSection("NEW EVALUATION CHECKS", "The updated code must pass:", newChecks))
}

func revisionReadmePrompt(existingReadme, newBrief string, newChecks []string) string {
	return fmt.Sprintf(`Update the existing README.md to reflect new features added in Round 2.

## EXISTING README
`+"```markdown"+`
%s
`+"```"+`

## NEW FEATURES (Round 2)
%s%s

## UPDATE INSTRUCTIONS

1. **Preserve Existing Content**: Keep all Round 1 information
2. **Add New Features**: Update the Features section with Round 2 additions
3. **Update Usage**: Extend usage instructions for new functionality
4. **Maintain Structure**: Keep the same section organization

## OUTPUT FORMAT

Provide ONLY the complete UPDATED markdown content. Start directly with:
`+"```markdown"+`
# Project Title
...
`+"```"+`

Generate the updated README.md now.`,
		existingReadme,
		newBrief,
		checksSection("NEW CHECKS", "New features added:", newChecks))
}
