package importer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// CategoryRule maps a set of keywords to a category name. Rules are ordered;
// the first rule with a matching keyword wins regardless of how many later
// rules would also match.
type CategoryRule struct {
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// RuleTable is an ordered keyword classifier for line item and descriptor
// text.
type RuleTable struct {
	rules []CategoryRule
}

// DefaultRules returns the built-in rule table used when no external rules
// file is configured.
func DefaultRules() []CategoryRule {
	return []CategoryRule{
		{Category: "Food & Beverages", Keywords: []string{
			"coffee", "tea", "snack", "chocolate", "candy", "drink", "water",
			"juice", "soda", "beer", "wine", "food", "protein", "vitamin",
		}},
		{Category: "Health & Personal Care", Keywords: []string{
			"shampoo", "soap", "toothpaste", "toothbrush", "deodorant",
			"lotion", "cream", "razor", "medicine", "supplement", "mask",
			"sanitizer",
		}},
		{Category: "Home & Kitchen", Keywords: []string{
			"kitchen", "cookware", "pan", "pot", "knife", "plate", "bowl",
			"towel", "sheet", "pillow", "blanket", "lamp", "furniture",
			"storage", "organizer", "cleaner", "detergent",
		}},
		{Category: "Electronics", Keywords: []string{
			"cable", "charger", "battery", "headphone", "earbud", "speaker",
			"mouse", "keyboard", "monitor", "laptop", "phone", "tablet",
			"camera", "usb", "hdmi", "adapter", "ssd", "memory",
		}},
		{Category: "Office Supplies", Keywords: []string{
			"pen", "pencil", "notebook", "paper", "stapler", "tape", "folder",
			"binder", "envelope", "marker", "desk",
		}},
		{Category: "Clothing & Accessories", Keywords: []string{
			"shirt", "pants", "jacket", "shoes", "socks", "hat", "belt",
			"gloves", "scarf", "dress", "jeans", "sweater", "watch", "bag",
			"wallet", "sunglasses",
		}},
		{Category: "Toys & Games", Keywords: []string{
			"toy", "game", "puzzle", "lego", "doll", "board game",
			"playing cards",
		}},
		{Category: "Books", Keywords: []string{
			"book", "novel", "textbook", "magazine", "comic",
		}},
	}
}

// NewRuleTable builds a classifier over an ordered rule slice. Keywords are
// folded to lower case once at construction.
func NewRuleTable(rules []CategoryRule) *RuleTable {
	folded := make([]CategoryRule, 0, len(rules))
	for _, r := range rules {
		keywords := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		folded = append(folded, CategoryRule{Category: r.Category, Keywords: keywords})
	}
	return &RuleTable{rules: folded}
}

// LoadRuleTable reads an ordered rule table from a JSON file, falling back
// to the built-in rules when path is empty.
func LoadRuleTable(path string) (*RuleTable, error) {
	if path == "" {
		return NewRuleTable(DefaultRules()), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read category rules: %w", err)
	}

	var rules []CategoryRule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse category rules: %w", err)
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("category rules file %s contains no rules", path)
	}

	return NewRuleTable(rules), nil
}

// Classify returns the category of the first rule whose keyword appears in
// the text, or "" when nothing matches. Matching is case-insensitive
// substring containment.
func (t *RuleTable) Classify(text string) string {
	folded := strings.ToLower(text)
	for _, rule := range t.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(folded, kw) {
				return rule.Category
			}
		}
	}
	return ""
}

// Categories returns the rule categories in table order
func (t *RuleTable) Categories() []string {
	out := make([]string, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r.Category)
	}
	return out
}
