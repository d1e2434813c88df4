package capture

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/flowdeck/flowdeck/pkg/storage"
)

const categoriesKey = "app_categories"

// Category is the triage bucket a captured notification lands in.
type Category string

const (
	CategoryWork     Category = "Work"
	CategorySocial   Category = "Social"
	CategoryPersonal Category = "Personal"
)

// knownApps seeds first-time assignments; anything unknown defaults to
// Personal until the user reassigns it.
var knownApps = map[string]Category{
	"slack":     CategoryWork,
	"gmail":     CategoryWork,
	"outlook":   CategoryWork,
	"teams":     CategoryWork,
	"jira":      CategoryWork,
	"calendar":  CategoryWork,
	"instagram": CategorySocial,
	"facebook":  CategorySocial,
	"twitter":   CategorySocial,
	"x":         CategorySocial,
	"linkedin":  CategorySocial,
	"whatsapp":  CategorySocial,
}

// categories is the persisted app→category assignment cache. Explicit
// user assignments override the seeded defaults and survive restarts.
type categories struct {
	Apps map[string]Category `json:"apps"`
}

func loadCategories(kv storage.Store) categories {
	c := categories{Apps: make(map[string]Category)}
	data, err := kv.Get(categoriesKey)
	if err != nil {
		return c
	}
	if err := json.Unmarshal(data, &c); err != nil || c.Apps == nil {
		c.Apps = make(map[string]Category)
	}
	return c
}

func (c categories) save(kv storage.Store) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return kv.Put(categoriesKey, data)
}

func (c categories) lookup(app string) (Category, bool) {
	cat, ok := c.Apps[normalizeApp(app)]
	return cat, ok
}

func normalizeApp(app string) string {
	return strings.ToLower(app)
}

func defaultCategory(app string) Category {
	if cat, ok := knownApps[strings.ToLower(app)]; ok {
		return cat
	}
	return CategoryPersonal
}

func validCategory(cat Category) bool {
	switch cat {
	case CategoryWork, CategorySocial, CategoryPersonal:
		return true
	}
	return false
}

// ErrBadCategory is returned by Assign for an unknown category name.
var ErrBadCategory = errors.New("capture: unknown category")
