package service

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"todolist/internal/model"
)

// tagLocale orders tag names the way the UI's primary audience expects.
var tagLocale = language.Make("zh-CN")

// sortTags orders tags by name under tagLocale collation, then by id.
// A collator is not safe for concurrent use, so one is built per call.
func sortTags(tags []model.Tag) {
	c := collate.New(tagLocale)
	sort.SliceStable(tags, func(i, j int) bool {
		if cmp := c.CompareString(tags[i].Name, tags[j].Name); cmp != 0 {
			return cmp < 0
		}
		return tags[i].ID.String() < tags[j].ID.String()
	})
}

func sortTagsWithCount(tags []model.TagWithCount) {
	c := collate.New(tagLocale)
	sort.SliceStable(tags, func(i, j int) bool {
		if cmp := c.CompareString(tags[i].Name, tags[j].Name); cmp != 0 {
			return cmp < 0
		}
		return tags[i].ID.String() < tags[j].ID.String()
	})
}
