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

import "strings"

// ValidStructure reports whether generated HTML carries the expected
// opening and closing structural markers. Not a parser; it exists to catch
// grossly truncated or malformed model output before it is published.
func ValidStructure(html string) bool {
	doc := strings.ToLower(html)

	hasOpening := strings.Contains(doc, "<!doctype html") || strings.Contains(doc, "<html")
	hasClosing := strings.Contains(doc, "</html>")

	return hasOpening && hasClosing
}
