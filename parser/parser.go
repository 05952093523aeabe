package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-harvest-apps/models"
	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned for bodies that are not well-formed JSON.
var ErrInvalidJSON = errors.New("parser: invalid json")

// ExtractBundleID returns the token following "id=" in link, up to the next '&'.
func ExtractBundleID(link string) (string, bool) {
	i := strings.Index(link, "id=")
	if i < 0 {
		return "", false
	}
	rest := link[i+len("id="):]
	if end := strings.IndexByte(rest, '&'); end >= 0 {
		rest = rest[:end]
	}
	if rest == "" {
		return "", false
	}
	return rest, true
}

// ExtractBundleIDs applies ExtractBundleID to every item on a page, skipping links without one.
func ExtractBundleIDs(page *models.SearchPage) []string {
	if page == nil {
		return nil
	}
	ids := make([]string, 0, len(page.Items))
	for _, item := range page.Items {
		if id, ok := ExtractBundleID(item.Link); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// ParseSearchPage decodes a search API response body. A body without "items" is a valid empty page.
func ParseSearchPage(body []byte) (*models.SearchPage, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}

	page := &models.SearchPage{
		TotalResults: gjson.GetBytes(body, "searchInformation.totalResults").Int(),
	}
	items := gjson.GetBytes(body, "items")
	if !items.Exists() {
		return page, nil
	}
	if !items.IsArray() {
		return nil, fmt.Errorf("parser: 'items' is %s, not an array", items.Type)
	}

	for _, item := range items.Array() {
		page.Items = append(page.Items, models.SearchItem{
			Title: item.Get("title").String(),
			Link:  item.Get("link").String(),
		})
	}
	return page, nil
}

// ExtractField returns the string value at path in a JSON document.
// The boolean is false when the field is absent, null or not a string.
func ExtractField(body []byte, path string) (string, bool, error) {
	if !gjson.ValidBytes(body) {
		return "", false, ErrInvalidJSON
	}
	value := gjson.GetBytes(body, path)
	if value.Type != gjson.String {
		return "", false, nil
	}
	return value.String(), true, nil
}

// NormalizeEmail trims value and rejects it when empty or equal to placeholder.
func NormalizeEmail(value, placeholder string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	if placeholder != "" && strings.EqualFold(value, placeholder) {
		return "", false
	}
	return value, true
}
