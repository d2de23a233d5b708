package watcher

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Category groups dropped files by what kind of handling they likely need.
type Category string

const (
	CategoryDocument    Category = "document"
	CategorySpreadsheet Category = "spreadsheet"
	CategoryImage       Category = "image"
	CategoryArchive     Category = "archive"
	CategoryData        Category = "data"
	CategoryOther       Category = "other"
)

var extCategories = map[string]Category{
	".pdf":  CategoryDocument,
	".doc":  CategoryDocument,
	".docx": CategoryDocument,
	".txt":  CategoryDocument,
	".md":   CategoryDocument,
	".rtf":  CategoryDocument,

	".xls":  CategorySpreadsheet,
	".xlsx": CategorySpreadsheet,
	".csv":  CategorySpreadsheet,

	".png":  CategoryImage,
	".jpg":  CategoryImage,
	".jpeg": CategoryImage,
	".gif":  CategoryImage,
	".webp": CategoryImage,

	".zip": CategoryArchive,
	".tar": CategoryArchive,
	".gz":  CategoryArchive,
	".7z":  CategoryArchive,

	".json": CategoryData,
	".yaml": CategoryData,
	".yml":  CategoryData,
	".xml":  CategoryData,
}

// Categorize maps a file name to a Category by extension.
func Categorize(name string) Category {
	if cat, ok := extCategories[strings.ToLower(filepath.Ext(name))]; ok {
		return cat
	}
	return CategoryOther
}

var suggestedActions = map[Category][]string{
	CategoryDocument: {
		"Read and summarize the document",
		"Extract any action items or deadlines",
		"File under the appropriate project",
	},
	CategorySpreadsheet: {
		"Review the data for anomalies",
		"Summarize totals and trends",
	},
	CategoryImage: {
		"Describe the image contents",
		"Check whether it relates to an open task",
	},
	CategoryArchive: {
		"List the archive contents",
		"Extract only if the contents are expected",
	},
	CategoryData: {
		"Validate the structure",
		"Summarize the payload",
	},
	CategoryOther: {
		"Inspect the file and determine what it is",
	},
}

// SuggestedActions returns a handling checklist for a category.
func SuggestedActions(cat Category) []string {
	return suggestedActions[cat]
}

// DescribeFile renders the standard record body for a dropped file:
// provenance, category, and a suggested-actions checklist.
func DescribeFile(name string, size int64, detected time.Time, note string) string {
	cat := Categorize(name)

	var b strings.Builder
	fmt.Fprintf(&b, "# New File: %s\n\n", name)
	fmt.Fprintf(&b, "- Category: %s\n", cat)
	fmt.Fprintf(&b, "- Size: %d bytes\n", size)
	fmt.Fprintf(&b, "- Detected: %s\n", detected.UTC().Format(time.RFC3339))
	if note != "" {
		fmt.Fprintf(&b, "- Note: %s\n", note)
	}
	b.WriteString("\n## Suggested Actions\n\n")
	for _, action := range SuggestedActions(cat) {
		fmt.Fprintf(&b, "- [ ] %s\n", action)
	}
	return b.String()
}
