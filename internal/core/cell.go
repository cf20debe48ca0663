package core

import "strings"

// SpreadsheetText returns free text safe to place in a spreadsheet cell.
// Text a spreadsheet would read as a formula gets a leading apostrophe.
func SpreadsheetText(s string) string {
	if s != "" && strings.ContainsRune("=+-@\t\r", rune(s[0])) {
		return "'" + s
	}
	return s
}
